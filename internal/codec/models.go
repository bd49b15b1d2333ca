package codec

import "time"

// Kind discrimina el resultado de decodificar un frame.
type Kind int

const (
	KindUnknown  Kind = iota // frame ignorado
	KindPosition             // requiere lat/lon válidos
	KindStatic               // requiere MMSI
)

func (k Kind) String() string {
	switch k {
	case KindPosition:
		return "position"
	case KindStatic:
		return "static"
	default:
		return "unknown"
	}
}

// Record es la vista normalizada de un frame AIS.
type Record struct {
	Kind        Kind      `json:"kind"`
	MessageType string    `json:"message_type,omitempty"`
	MMSI        string    `json:"mmsi"`
	IMO         string    `json:"imo,omitempty"`
	Name        string    `json:"name,omitempty"`
	Lat         float64   `json:"lat,omitempty"`
	Lon         float64   `json:"lon,omitempty"`
	SOG         *float64  `json:"sog,omitempty"`
	COG         *float64  `json:"cog,omitempty"`
	Timestamp   time.Time `json:"ts"`
}

// Ignored indica si el frame no produjo ninguna actualización útil.
func (r Record) Ignored() bool { return r.Kind == KindUnknown }
