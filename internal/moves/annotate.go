package moves

import (
	"time"

	"github.com/dustin/go-humanize"

	"vessel-svr/internal/geo"
	"vessel-svr/internal/tracker"
)

const displayLayout = "2006-01-02 15:04 MST"

// Lookup resuelve un buque en el tracker en vivo.
type Lookup interface {
	ByIMO(imo string) (tracker.TrackedVessel, bool)
	ByMMSI(mmsi string) (tracker.TrackedVessel, bool)
}

// Annotated es un movimiento con tiempos formateados y, si el buque está en
// el tracker, su posición en vivo.
type Annotated struct {
	Move
	ETAText     string   `json:"eta,omitempty"`
	ETDText     string   `json:"etd,omitempty"`
	ATAText     string   `json:"ata,omitempty"`
	ATDText     string   `json:"atd,omitempty"`
	Tracked     bool     `json:"tracked"`
	LiveMMSI    string   `json:"liveMmsi,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	DistanceMi  *float64 `json:"distanceMi,omitempty"`
	LastSeenISO string   `json:"lastSeenISO,omitempty"`
	LastSeenAgo string   `json:"lastSeenAgo,omitempty"`
}

// Annotate une cada movimiento con el tracker, por IMO y luego por MMSI.
func Annotate(list []Move, live Lookup, ref geo.Point, loc *time.Location, now time.Time) []Annotated {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]Annotated, 0, len(list))
	for _, m := range list {
		a := Annotated{
			Move:    m,
			ETAText: format(m.ETA, loc),
			ETDText: format(m.ETD, loc),
			ATAText: format(m.ATA, loc),
			ATDText: format(m.ATD, loc),
		}
		if v, ok := find(live, m); ok && v.HasPosition {
			d := geo.DistanceMiles(ref, geo.Point{Lat: v.Lat, Lon: v.Lon})
			lat, lon := v.Lat, v.Lon
			a.Tracked = true
			a.LiveMMSI = v.MMSI
			a.Lat, a.Lon = &lat, &lon
			a.DistanceMi = &d
			a.LastSeenISO = v.LastSeenISO
			a.LastSeenAgo = humanize.RelTime(v.LastSeen, now, "ago", "from now")
		}
		out = append(out, a)
	}
	return out
}

func find(live Lookup, m Move) (tracker.TrackedVessel, bool) {
	if live == nil {
		return tracker.TrackedVessel{}, false
	}
	if m.IMO != "" {
		if v, ok := live.ByIMO(m.IMO); ok {
			return v, true
		}
	}
	if m.MMSI != "" {
		return live.ByMMSI(m.MMSI)
	}
	return tracker.TrackedVessel{}, false
}

func format(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(displayLayout)
}
