package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"vessel-svr/internal/codec"
	"vessel-svr/internal/observability"
	"vessel-svr/internal/tracker"
	"vessel-svr/internal/utilities"
)

const (
	defaultQueueSize = 1024
	publishTimeout   = 3 * time.Second
)

// Sink recibe copias de los registros ya aplicados al store.
type Sink interface {
	Name() string
	Publish(ctx context.Context, v tracker.TrackedVessel) error
}

type Options struct {
	Sinks     []Sink
	QueueSize int
	// RawLogDir, si no está vacío, guarda cada frame crudo en un log diario.
	RawLogDir string
	Logger    *slog.Logger
}

// Dispatcher es el único escritor del store: decodifica cada frame y aplica
// la actualización. La publicación a sinks va por una cola acotada.
type Dispatcher struct {
	decoder *codec.Decoder
	store   *tracker.Store
	sinks   []Sink
	queue   chan tracker.TrackedVessel
	rawDir  string
	logger  *slog.Logger
}

func New(dec *codec.Decoder, store *tracker.Store, opts Options) *Dispatcher {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Dispatcher{
		decoder: dec,
		store:   store,
		sinks:   opts.Sinks,
		queue:   make(chan tracker.TrackedVessel, size),
		rawDir:  opts.RawLogDir,
		logger:  lg.With("component", "dispatcher"),
	}
}

// HandleFrame procesa un frame del socket vigente. Nunca falla: lo que no se
// decodifica se descarta en silencio.
func (d *Dispatcher) HandleFrame(payload any) {
	if d.rawDir != "" {
		if text, ok := codec.ToText(payload); ok {
			if err := utilities.CreateLog(d.rawDir, "AISFRAMES", text); err != nil {
				d.logger.Debug("raw frame log failed", "err", err)
			}
		}
	}

	rec := d.decoder.Decode(payload)
	switch rec.Kind {
	case codec.KindPosition:
		v, ok := d.store.ApplyPosition(rec.MMSI, rec.Lat, rec.Lon, rec.SOG, rec.COG, rec.Timestamp)
		if !ok {
			return
		}
		if rec.IMO != "" || rec.Name != "" {
			v, _ = d.store.ApplyStatic(rec.MMSI, rec.IMO, rec.Name)
		}
		observability.UpdatesApplied.WithLabelValues(rec.Kind.String()).Inc()
		d.enqueue(v)
	case codec.KindStatic:
		v, ok := d.store.ApplyStatic(rec.MMSI, rec.IMO, rec.Name)
		if !ok {
			return
		}
		observability.UpdatesApplied.WithLabelValues(rec.Kind.String()).Inc()
		if v.HasPosition {
			d.enqueue(v)
		}
	default:
		observability.FramesDiscarded.WithLabelValues("ignored").Inc()
	}
}

func (d *Dispatcher) enqueue(v tracker.TrackedVessel) {
	if len(d.sinks) == 0 {
		return
	}
	select {
	case d.queue <- v:
	default:
		observability.SinkDropped.Inc()
	}
}

// Run drena la cola hacia los sinks hasta que ctx se cancela.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-d.queue:
			d.publish(ctx, v)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, v tracker.TrackedVessel) {
	for _, s := range d.sinks {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := s.Publish(pctx, v)
		cancel()
		if err != nil {
			observability.SinkErrors.WithLabelValues(s.Name()).Inc()
			d.logger.Warn("sink publish failed", "sink", s.Name(), "mmsi", v.MMSI, "err", err)
		}
	}
}
