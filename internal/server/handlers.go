package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vessel-svr/internal/config"
	"vessel-svr/internal/geo"
	"vessel-svr/internal/link"
	"vessel-svr/internal/moves"
	"vessel-svr/internal/snapshot"
	"vessel-svr/internal/tracker"
)

const (
	defaultBack  = 6 * time.Hour
	defaultAhead = 48 * time.Hour
)

// Diagnoser expone el estado del link.
type Diagnoser interface {
	Diagnostics() link.Diagnostics
}

// Persisted busca la última fila guardada de un buque (Redis).
type Persisted interface {
	Get(ctx context.Context, mmsi, imo string) (tracker.TrackedVessel, bool, error)
}

// MovesFeed descarga los movimientos programados.
type MovesFeed interface {
	Fetch(ctx context.Context) ([]moves.Move, error)
	Location() *time.Location
}

type Deps struct {
	Builder   *snapshot.Builder
	Store     *tracker.Store
	Link      Diagnoser
	Presets   *config.Presets
	Moves     MovesFeed
	Persisted Persisted
	Logger    *slog.Logger
}

type API struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

type errorBody struct {
	Error       string            `json:"error"`
	Diagnostics *link.Diagnostics `json:"diagnostics,omitempty"`
}

func New(deps Deps) *API {
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &API{deps: deps, logger: lg.With("component", "http"), now: time.Now}
}

// Handler arma el router de la API.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/vessels", a.handleVessels)
		r.Get("/vessels/{key}", a.handleVessel)
		r.Get("/moves", a.handleMoves)
		r.Get("/presets", a.handlePresets)
		r.Get("/health", a.handleHealth)
	})
	return r
}

func (a *API) handleVessels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := snapshot.Query{Preset: q.Get("preset")}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			a.fail(w, http.StatusBadRequest, "limit must be a positive integer", false)
			return
		}
		query.Limit = n
	}
	if s := q.Get("maxAgeSeconds"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			a.fail(w, http.StatusBadRequest, "maxAgeSeconds must be a non-negative integer", false)
			return
		}
		query.MaxAge = time.Duration(n) * time.Second
	}

	res, err := a.deps.Builder.Build(r.Context(), query)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, snapshot.ErrUnknownPreset):
			status = http.StatusNotFound
		case errors.Is(err, link.ErrMissingAPIKey), errors.Is(err, link.ErrClosed):
			status = http.StatusServiceUnavailable
		}
		a.logger.Warn("snapshot failed", "preset", query.Preset, "err", err)
		d := res.ConnectionDiagnostics
		writeJSON(w, status, errorBody{Error: err.Error(), Diagnostics: &d})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type vesselBody struct {
	Source     string     `json:"source"`
	Vessel     vesselView `json:"vessel"`
	DistanceMi *float64   `json:"distanceMi,omitempty"`
	Preset     string     `json:"preset,omitempty"`
}

// vesselView omite lat/lon mientras sólo se conocen datos estáticos.
type vesselView struct {
	MMSI        string   `json:"mmsi"`
	IMO         string   `json:"imo,omitempty"`
	Name        string   `json:"name,omitempty"`
	HasPosition bool     `json:"hasPosition"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	SOG         *float64 `json:"sog,omitempty"`
	COG         *float64 `json:"cog,omitempty"`
	LastSeenISO string   `json:"lastSeenISO,omitempty"`
}

func viewOf(v tracker.TrackedVessel) vesselView {
	out := vesselView{
		MMSI:        v.MMSI,
		IMO:         v.IMO,
		Name:        v.Name,
		HasPosition: v.HasPosition,
		SOG:         v.SOG,
		COG:         v.COG,
		LastSeenISO: v.LastSeenISO,
	}
	if v.HasPosition {
		lat, lon := v.Lat, v.Lon
		out.Lat, out.Lon = &lat, &lon
	}
	return out
}

func (a *API) handleVessel(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	preset, ok := a.deps.Presets.Get(r.URL.Query().Get("preset"))
	if !ok {
		a.fail(w, http.StatusNotFound, "unknown preset", false)
		return
	}

	if v, ok := a.deps.Store.Lookup(key); ok {
		body := vesselBody{Source: "live", Vessel: viewOf(v), Preset: preset.Name}
		if v.HasPosition {
			d := geo.DistanceMiles(preset.Reference, geo.Point{Lat: v.Lat, Lon: v.Lon})
			body.DistanceMi = &d
		}
		writeJSON(w, http.StatusOK, body)
		return
	}

	if a.deps.Persisted != nil {
		mmsi, imo := splitKey(key)
		if mmsi != "" || imo != "" {
			v, found, err := a.deps.Persisted.Get(r.Context(), mmsi, imo)
			if err != nil {
				a.logger.Warn("persisted lookup failed", "key", key, "err", err)
			} else if found {
				writeJSON(w, http.StatusOK, vesselBody{Source: "persisted", Vessel: viewOf(v)})
				return
			}
		}
	}
	a.fail(w, http.StatusNotFound, "vessel not tracked", true)
}

// splitKey separa "mmsi:<9>", "imo:<7>" o un número solo.
func splitKey(key string) (mmsi, imo string) {
	key = strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasPrefix(key, tracker.PrefixMMSI):
		mmsi = strings.TrimPrefix(key, tracker.PrefixMMSI)
	case strings.HasPrefix(key, tracker.PrefixIMO):
		imo = strings.TrimPrefix(key, tracker.PrefixIMO)
	case len(key) == 9:
		mmsi = key
	case len(key) == 7:
		imo = key
	}
	if len(mmsi) != 9 {
		mmsi = ""
	}
	if len(imo) != 7 {
		imo = ""
	}
	return mmsi, imo
}

type movesBody struct {
	Preset string            `json:"preset"`
	From   string            `json:"from"`
	To     string            `json:"to"`
	Count  int               `json:"count"`
	Moves  []moves.Annotated `json:"moves"`
}

func (a *API) handleMoves(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	back, err := durationParam(q.Get("back"), defaultBack)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "back: "+err.Error(), false)
		return
	}
	ahead, err := durationParam(q.Get("ahead"), defaultAhead)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "ahead: "+err.Error(), false)
		return
	}
	preset, ok := a.deps.Presets.Get(q.Get("preset"))
	if !ok {
		a.fail(w, http.StatusNotFound, "unknown preset", false)
		return
	}
	if a.deps.Moves == nil {
		a.fail(w, http.StatusServiceUnavailable, moves.ErrNoFeed.Error(), false)
		return
	}

	list, err := a.deps.Moves.Fetch(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, moves.ErrNoFeed) {
			status = http.StatusServiceUnavailable
		}
		a.logger.Warn("moves feed failed", "err", err)
		a.fail(w, status, err.Error(), false)
		return
	}

	now := a.now()
	loc := a.deps.Moves.Location()
	annotated := moves.Annotate(moves.Window(list, now, back, ahead), a.deps.Store, preset.Reference, loc, now)
	writeJSON(w, http.StatusOK, movesBody{
		Preset: preset.Name,
		From:   now.Add(-back).In(loc).Format(time.RFC3339),
		To:     now.Add(ahead).In(loc).Format(time.RFC3339),
		Count:  len(annotated),
		Moves:  annotated,
	})
}

func durationParam(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("must not be negative")
	}
	return d, nil
}

type presetsBody struct {
	Default string          `json:"default"`
	Presets []config.Preset `json:"presets"`
}

func (a *API) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, presetsBody{Default: a.deps.Presets.Default, Presets: a.deps.Presets.All()})
}

type healthBody struct {
	Status      string           `json:"status"`
	Tracked     int              `json:"tracked"`
	Diagnostics link.Diagnostics `json:"diagnostics"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	d := a.deps.Link.Diagnostics()
	status := "ok"
	if !d.Live {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthBody{Status: status, Tracked: a.deps.Store.Len(), Diagnostics: d})
}

func (a *API) fail(w http.ResponseWriter, status int, msg string, withDiagnostics bool) {
	body := errorBody{Error: msg}
	if withDiagnostics && a.deps.Link != nil {
		d := a.deps.Link.Diagnostics()
		body.Diagnostics = &d
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
