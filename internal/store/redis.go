package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"vessel-svr/internal/geo"
	"vessel-svr/internal/tracker"
)

const (
	// GeoKey es el índice geoespacial de los buques persistidos.
	GeoKey        = "vessels:geo"
	vesselPrefix  = "vessel:"
	imoPrefix     = "vessel:imo:"
	geohashDigits = 7
)

// Redis persiste la última fila de cada buque (auditoría). El core no
// depende de esto: un fallo aquí sólo se cuenta y se registra.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(ctx context.Context, addr string, db int, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (r *Redis) Name() string { return "redis" }

// Publish guarda la fila en vessel:<mmsi> y la posición en vessels:geo.
func (r *Redis) Publish(ctx context.Context, v tracker.TrackedVessel) error {
	key := vesselPrefix + v.MMSI
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, vesselFields(v))
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	pipe.GeoAdd(ctx, GeoKey, &redis.GeoLocation{Name: v.MMSI, Longitude: v.Lon, Latitude: v.Lat})
	if v.IMO != "" {
		pipe.Set(ctx, imoPrefix+v.IMO, v.MMSI, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis persist %s: %w", key, err)
	}
	return nil
}

// Get devuelve la última fila persistida de un MMSI (o de un IMO vía su índice).
func (r *Redis) Get(ctx context.Context, mmsi, imo string) (tracker.TrackedVessel, bool, error) {
	if mmsi == "" && imo != "" {
		m, err := r.rdb.Get(ctx, imoPrefix+imo).Result()
		if errors.Is(err, redis.Nil) {
			return tracker.TrackedVessel{}, false, nil
		}
		if err != nil {
			return tracker.TrackedVessel{}, false, err
		}
		mmsi = m
	}
	vals, err := r.rdb.HGetAll(ctx, vesselPrefix+mmsi).Result()
	if err != nil {
		return tracker.TrackedVessel{}, false, err
	}
	if len(vals) == 0 {
		return tracker.TrackedVessel{}, false, nil
	}
	return vesselFromFields(vals), true, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func vesselFields(v tracker.TrackedVessel) map[string]any {
	f := map[string]any{
		"mmsi":        v.MMSI,
		"lat":         strconv.FormatFloat(v.Lat, 'f', -1, 64),
		"lon":         strconv.FormatFloat(v.Lon, 'f', -1, 64),
		"lastSeenISO": v.LastSeenISO,
		"geohash":     geo.Geohash(geo.Point{Lat: v.Lat, Lon: v.Lon}, geohashDigits),
	}
	if v.IMO != "" {
		f["imo"] = v.IMO
	}
	if v.Name != "" {
		f["name"] = v.Name
	}
	if v.SOG != nil {
		f["sog"] = strconv.FormatFloat(*v.SOG, 'f', -1, 64)
	}
	if v.COG != nil {
		f["cog"] = strconv.FormatFloat(*v.COG, 'f', -1, 64)
	}
	return f
}

func vesselFromFields(vals map[string]string) tracker.TrackedVessel {
	v := tracker.TrackedVessel{
		MMSI:        vals["mmsi"],
		IMO:         vals["imo"],
		Name:        vals["name"],
		LastSeenISO: vals["lastSeenISO"],
	}
	v.Lat, _ = strconv.ParseFloat(vals["lat"], 64)
	v.Lon, _ = strconv.ParseFloat(vals["lon"], 64)
	if s, ok := vals["sog"]; ok {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			v.SOG = &n
		}
	}
	if s, ok := vals["cog"]; ok {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			v.COG = &n
		}
	}
	if t, err := time.Parse(tracker.ISOLayout, v.LastSeenISO); err == nil {
		v.LastSeen = t
		v.HasPosition = true
	}
	return v
}
