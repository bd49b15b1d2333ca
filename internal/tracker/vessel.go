package tracker

import "time"

// ISOLayout es el formato de LastSeenISO.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// TrackedVessel es el último estado conocido de un buque, indexado por MMSI.
type TrackedVessel struct {
	MMSI        string    `json:"mmsi"`
	IMO         string    `json:"imo,omitempty"`
	Name        string    `json:"name,omitempty"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	SOG         *float64  `json:"sog,omitempty"`
	COG         *float64  `json:"cog,omitempty"`
	LastSeen    time.Time `json:"-"`
	LastSeenISO string    `json:"lastSeenISO,omitempty"`

	// HasPosition es false mientras sólo se conocen datos estáticos.
	HasPosition bool `json:"-"`
}

func (v *TrackedVessel) clone() TrackedVessel {
	out := *v
	if v.SOG != nil {
		sog := *v.SOG
		out.SOG = &sog
	}
	if v.COG != nil {
		cog := *v.COG
		out.COG = &cog
	}
	return out
}
