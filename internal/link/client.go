package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vessel-svr/internal/geo"
	"vessel-svr/internal/observability"
)

var (
	// ErrMissingAPIKey es un error de configuración: sin clave no hay stream.
	ErrMissingAPIKey = errors.New("link: AIS stream API key not configured")
	ErrClosed        = errors.New("link: manager closed")
)

const writeTimeout = 5 * time.Second

// FrameHandler recibe cada frame del socket vigente, en orden de llegada.
// Se invoca con el lock del manager tomado: no debe bloquear ni llamar al Manager.
type FrameHandler func(payload any)

type Options struct {
	URL         string
	APIKey      string
	Kinds       []string
	DialTimeout time.Duration
	Dialer      *websocket.Dialer
	Logger      *slog.Logger

	OnFrame FrameHandler
	// OnReset vacía el store al cambiar de bbox; devuelve cuántos registros había.
	OnReset func() int
	// OnState se invoca en cada transición (con el lock tomado).
	OnState func(State)
}

// subscription es el handshake que se envía al abrir el socket.
type subscription struct {
	APIKey             string         `json:"APIKey"`
	BoundingBoxes      [][][2]float64 `json:"BoundingBoxes"`
	FilterMessageTypes []string       `json:"FilterMessageTypes,omitempty"`
}

// Manager mantiene como máximo un socket hacia el stream por bbox. No hay loop
// de reconexión: Ensure reconecta de forma perezosa en la siguiente consulta.
type Manager struct {
	opts   Options
	dialer *websocket.Dialer
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       State
	target      geo.BBox
	conn        *websocket.Conn
	dialing     bool
	cancelDial  context.CancelFunc
	closed      bool
	lastConnect time.Time
	lastMessage time.Time
	lastError   string
	connects    int
}

func New(opts Options) *Manager {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: opts.DialTimeout}
	}
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Manager{
		opts:   opts,
		dialer: dialer,
		logger: lg.With("component", "link"),
		now:    time.Now,
	}
}

// -------------------------------------------------------------------
//                       CICLO DE CONEXIÓN
// -------------------------------------------------------------------

// Ensure garantiza un socket para bbox. Si bbox cambió, cierra el socket
// actual y vacía el store antes de reconectar. Un Ensure concurrente con un
// dial en curso (o con el socket abierto) no abre un segundo socket.
func (m *Manager) Ensure(ctx context.Context, bbox geo.BBox) error {
	if m.opts.APIKey == "" {
		return ErrMissingAPIKey
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.target != bbox {
		if !m.target.IsZero() {
			m.invalidateLocked("bbox_change")
		}
		m.target = bbox
	}
	if m.dialing || m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	m.dialing = true
	m.cancelDial = cancel
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	conn, err := m.dial(dialCtx, bbox)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialing = false
	m.cancelDial = nil

	if err != nil {
		observability.StreamConnectErrors.Inc()
		m.lastError = err.Error()
		if m.state == StateConnecting {
			m.setStateLocked(StateDisconnected)
		}
		m.logger.Warn("link: dial failed", "url", m.opts.URL, "err", err)
		return err
	}
	if m.closed || m.target != bbox || m.state != StateConnecting {
		// la bbox cambió durante el dial: este socket ya no sirve
		_ = conn.Close()
		return nil
	}

	m.conn = conn
	m.lastConnect = m.now()
	m.lastError = ""
	m.connects++
	m.setStateLocked(StateOpen)
	observability.StreamConnects.Inc()
	m.logger.Info("link: connected", "remote", conn.RemoteAddr().String(), "bbox", bbox.Corners())

	go m.readLoop(conn)
	return nil
}

func (m *Manager) dial(ctx context.Context, bbox geo.BBox) (*websocket.Conn, error) {
	conn, resp, err := m.dialer.DialContext(ctx, m.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", m.opts.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", m.opts.URL, err)
	}

	sub := subscription{
		APIKey:             m.opts.APIKey,
		BoundingBoxes:      [][][2]float64{bbox.Corners()},
		FilterMessageTypes: m.opts.Kinds,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send subscription: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})
	return conn, nil
}

// invalidateLocked cierra el socket (o cancela el dial) y vacía el store.
// Requiere m.mu tomado.
func (m *Manager) invalidateLocked(reason string) {
	if m.cancelDial != nil {
		m.cancelDial()
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
		observability.StreamDisconnects.WithLabelValues(reason).Inc()
	}
	m.setStateLocked(StateDisconnected)
	if m.opts.OnReset != nil {
		n := m.opts.OnReset()
		observability.StoreResets.Inc()
		m.logger.Info("link: subscription region changed, store cleared", "reason", reason, "cleared", n)
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.opts.OnState != nil {
		m.opts.OnState(s)
	}
}

// -------------------------------------------------------------------
//                           LECTURA
// -------------------------------------------------------------------

func (m *Manager) readLoop(c *websocket.Conn) {
	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			m.clearConn(c, err)
			return
		}
		var payload any
		switch mt {
		case websocket.TextMessage:
			payload = string(data)
		case websocket.BinaryMessage:
			payload = data
		default:
			continue
		}
		m.dispatch(c, payload)
	}
}

// dispatch sólo acepta frames del socket registrado: tras un cambio de bbox
// los frames en vuelo del socket viejo se descartan.
func (m *Manager) dispatch(c *websocket.Conn, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != c {
		observability.FramesDiscarded.WithLabelValues("stale").Inc()
		return
	}
	m.lastMessage = m.now()
	observability.FramesRecv.Inc()
	if m.opts.OnFrame != nil {
		m.opts.OnFrame(payload)
	}
}

func (m *Manager) clearConn(c *websocket.Conn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = c.Close()
	if m.conn != c {
		return
	}
	m.conn = nil
	m.lastError = err.Error()
	m.setStateLocked(StateDisconnected)
	reason := "error"
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		reason = "remote_close"
	}
	observability.StreamDisconnects.WithLabelValues(reason).Inc()
	m.logger.Warn("link: connection closed, will reconnect on next query", "err", err)
}

// -------------------------------------------------------------------
//                        ESTADO OBSERVABLE
// -------------------------------------------------------------------

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Diagnostics() Diagnostics {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	d := Diagnostics{
		State:          m.state.String(),
		Live:           m.state == StateOpen,
		LastConnectISO: formatISO(m.lastConnect),
		LastMessageISO: formatISO(m.lastMessage),
		LastMessageAgo: ago(m.lastMessage, now),
		LastError:      m.lastError,
		Connects:       m.connects,
	}
	if !m.target.IsZero() {
		d.BoundingBox = m.target.Corners()
	}
	return d
}

// Close cierra el socket y rechaza conexiones posteriores. No vacía el store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.cancelDial != nil {
		m.cancelDial()
	}
	if m.conn != nil {
		_ = m.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
			time.Now().Add(time.Second))
		_ = m.conn.Close()
		m.conn = nil
		observability.StreamDisconnects.WithLabelValues("shutdown").Inc()
	}
	m.setStateLocked(StateDisconnected)
	return nil
}
