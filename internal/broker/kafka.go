package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"vessel-svr/internal/geo"
	"vessel-svr/internal/tracker"
)

// update es el mensaje publicado por cada actualización aplicada.
type update struct {
	MMSI        string   `json:"mmsi"`
	IMO         string   `json:"imo,omitempty"`
	Name        string   `json:"name,omitempty"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	SOG         *float64 `json:"sog,omitempty"`
	COG         *float64 `json:"cog,omitempty"`
	LastSeenISO string   `json:"lastSeenISO"`
	Geohash     string   `json:"geohash"`
}

// Kafka publica actualizaciones keyed por MMSI, así un mismo buque cae
// siempre en la misma partición y conserva el orden.
type Kafka struct {
	w *kafka.Writer
}

func NewKafka(broker, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, v tracker.TrackedVessel) error {
	msg, err := encode(v)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, msg)
}

func (k *Kafka) Close() error { return k.w.Close() }

func encode(v tracker.TrackedVessel) (kafka.Message, error) {
	body, err := json.Marshal(update{
		MMSI:        v.MMSI,
		IMO:         v.IMO,
		Name:        v.Name,
		Lat:         v.Lat,
		Lon:         v.Lon,
		SOG:         v.SOG,
		COG:         v.COG,
		LastSeenISO: v.LastSeenISO,
		Geohash:     geo.Geohash(geo.Point{Lat: v.Lat, Lon: v.Lon}, 7),
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(v.MMSI), Value: body, Time: v.LastSeen}, nil
}
