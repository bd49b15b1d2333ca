package moves

import (
	"sort"
	"strings"
	"time"
)

// MoveType clasifica un movimiento programado del puerto.
type MoveType string

const (
	Arrival   MoveType = "ARR"
	Departure MoveType = "DEP"
	Shift     MoveType = "SHIFT"
)

// Move es un registro del feed de la autoridad portuaria. Los tiempos ausentes
// o no parseables quedan en nil.
type Move struct {
	VesselName string     `json:"vesselName" validate:"required"`
	IMO        string     `json:"imo,omitempty" validate:"omitempty,len=7,numeric"`
	MMSI       string     `json:"mmsi,omitempty" validate:"omitempty,len=9,numeric"`
	Type       MoveType   `json:"moveType" validate:"oneof=ARR DEP SHIFT"`
	ETA        *time.Time `json:"-"`
	ETD        *time.Time `json:"-"`
	ATA        *time.Time `json:"-"`
	ATD        *time.Time `json:"-"`
	Berth      string     `json:"berth,omitempty"`
}

// RelevantTime es el instante que ubica el movimiento en la ventana: para
// llegadas ATA o ETA, para el resto ATD o ETD. Lo real gana a lo estimado.
func (m Move) RelevantTime() (time.Time, bool) {
	actual, estimated := m.ATD, m.ETD
	if m.Type == Arrival {
		actual, estimated = m.ATA, m.ETA
	}
	if actual != nil {
		return *actual, true
	}
	if estimated != nil {
		return *estimated, true
	}
	return time.Time{}, false
}

func parseMoveType(s string) (MoveType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ARR", "ARRIVAL", "A", "IN":
		return Arrival, true
	case "DEP", "DEPARTURE", "D", "OUT":
		return Departure, true
	case "SHIFT", "SHF", "S", "MOVE":
		return Shift, true
	}
	return "", false
}

// Window conserva los movimientos cuyo tiempo relevante cae en
// [now-back, now+ahead], ordenados de forma ascendente.
func Window(moves []Move, now time.Time, back, ahead time.Duration) []Move {
	from, to := now.Add(-back), now.Add(ahead)
	out := make([]Move, 0, len(moves))
	for _, m := range moves {
		t, ok := m.RelevantTime()
		if !ok || t.Before(from) || t.After(to) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := out[i].RelevantTime()
		tj, _ := out[j].RelevantTime()
		return ti.Before(tj)
	})
	return out
}
