package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"vessel-svr/internal/config"
	"vessel-svr/internal/geo"
	"vessel-svr/internal/link"
	"vessel-svr/internal/observability"
	"vessel-svr/internal/tracker"
)

const (
	DefaultLimit     = 200
	geohashPrecision = 7
)

var (
	ErrUnknownPreset = errors.New("snapshot: unknown preset")
	ErrInternal      = errors.New("snapshot: build failed")
)

// Connector es la parte del link que necesita el builder.
type Connector interface {
	Ensure(ctx context.Context, bbox geo.BBox) error
	Diagnostics() link.Diagnostics
}

// Source entrega los buques rastreados (una entrada por registro canónico).
type Source interface {
	Snapshot() []tracker.TrackedVessel
}

type Vessel struct {
	MMSI        string   `json:"mmsi"`
	IMO         string   `json:"imo,omitempty"`
	Name        string   `json:"name,omitempty"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	SOG         *float64 `json:"sog,omitempty"`
	COG         *float64 `json:"cog,omitempty"`
	LastSeenISO string   `json:"lastSeenISO"`
	DistanceMi  float64  `json:"distanceMi"`
	BearingDeg  float64  `json:"bearingDeg"`
	Geohash     string   `json:"geohash"`
}

type Result struct {
	Preset                string           `json:"preset"`
	ReferencePoint        geo.Point        `json:"referencePoint"`
	BoundingBox           [][2]float64     `json:"boundingBox"`
	ConnectionDiagnostics link.Diagnostics `json:"connectionDiagnostics"`
	Count                 int              `json:"count"`
	Vessels               []Vessel         `json:"vessels"`
}

type Query struct {
	Preset string
	Limit  int
	// MaxAge excluye buques sin posición reciente; cero desactiva el filtro.
	MaxAge time.Duration
}

type Builder struct {
	presets *config.Presets
	conn    Connector
	store   Source
	limit   int
	logger  *slog.Logger
	now     func() time.Time
}

func NewBuilder(presets *config.Presets, conn Connector, store Source, limit int, logger *slog.Logger) *Builder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		presets: presets,
		conn:    conn,
		store:   store,
		limit:   limit,
		logger:  logger.With("component", "snapshot"),
		now:     time.Now,
	}
}

// Build resuelve el preset, asegura el link para su bbox y devuelve los
// buques ordenados por distancia al punto de referencia. Nunca espera frames:
// sin socket devuelve lo que haya en el store. En error, el Result lleva
// igualmente los diagnósticos del link.
func (b *Builder) Build(ctx context.Context, q Query) (res Result, err error) {
	start := time.Now()
	defer observability.ObserveSnapshotLatency(start)

	preset, ok := b.presets.Get(q.Preset)
	if !ok {
		return Result{ConnectionDiagnostics: b.conn.Diagnostics()},
			fmt.Errorf("%w: %q", ErrUnknownPreset, q.Preset)
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("snapshot panic", "preset", preset.Name, "panic", r)
			res = Result{
				Preset:                preset.Name,
				ReferencePoint:        preset.Reference,
				BoundingBox:           preset.BBox.Corners(),
				ConnectionDiagnostics: b.conn.Diagnostics(),
			}
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	if err := b.conn.Ensure(ctx, preset.BBox); err != nil {
		if errors.Is(err, link.ErrMissingAPIKey) || errors.Is(err, link.ErrClosed) {
			return Result{
				Preset:                preset.Name,
				ReferencePoint:        preset.Reference,
				BoundingBox:           preset.BBox.Corners(),
				ConnectionDiagnostics: b.conn.Diagnostics(),
			}, err
		}
		// fallo de transporte: se responde con datos viejos y el error en diagnósticos
		b.logger.Warn("stream connect failed, serving cached vessels", "preset", preset.Name, "err", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = b.limit
	}
	vessels := b.rank(preset.Reference, q.MaxAge)
	observability.TrackedVessels.Set(float64(len(vessels)))
	if len(vessels) > limit {
		vessels = vessels[:limit]
	}

	return Result{
		Preset:                preset.Name,
		ReferencePoint:        preset.Reference,
		BoundingBox:           preset.BBox.Corners(),
		ConnectionDiagnostics: b.conn.Diagnostics(),
		Count:                 len(vessels),
		Vessels:               vessels,
	}, nil
}

func (b *Builder) rank(ref geo.Point, maxAge time.Duration) []Vessel {
	tracked := b.store.Snapshot()
	cutoff := time.Time{}
	if maxAge > 0 {
		cutoff = b.now().Add(-maxAge)
	}

	out := make([]Vessel, 0, len(tracked))
	for _, v := range tracked {
		if !cutoff.IsZero() && v.LastSeen.Before(cutoff) {
			continue
		}
		p := geo.Point{Lat: v.Lat, Lon: v.Lon}
		out = append(out, Vessel{
			MMSI:        v.MMSI,
			IMO:         v.IMO,
			Name:        v.Name,
			Lat:         v.Lat,
			Lon:         v.Lon,
			SOG:         v.SOG,
			COG:         v.COG,
			LastSeenISO: v.LastSeenISO,
			DistanceMi:  geo.DistanceMiles(ref, p),
			BearingDeg:  geo.BearingDeg(ref, p),
			Geohash:     geo.Geohash(p, geohashPrecision),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMi != out[j].DistanceMi {
			return out[i].DistanceMi < out[j].DistanceMi
		}
		return out[i].MMSI < out[j].MMSI
	})
	return out
}

// Preset expone la resolución de presets al resto del servicio.
func (b *Builder) Preset(name string) (config.Preset, bool) { return b.presets.Get(name) }
