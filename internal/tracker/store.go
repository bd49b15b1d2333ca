package tracker

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Prefijos de clave para Lookup.
const (
	PrefixMMSI = "mmsi:"
	PrefixIMO  = "imo:"
)

// Store es el mapa en memoria de buques rastreados. Cada buque vive en un único
// registro canónico (id interno); los índices MMSI→id e IMO→id resuelven al
// mismo registro, así que no hay copias que mantener sincronizadas.
//
// Se asume un único escritor (el link); las lecturas concurrentes ven el valor
// anterior o el nuevo de cada registro, nunca uno a medias.
type Store struct {
	mu      sync.RWMutex
	nextID  uint64
	records map[uint64]*TrackedVessel
	byMMSI  map[string]uint64
	byIMO   map[string]uint64
}

func New() *Store {
	return &Store{
		records: make(map[uint64]*TrackedVessel),
		byMMSI:  make(map[string]uint64),
		byIMO:   make(map[string]uint64),
	}
}

// recordFor devuelve (o crea) el registro canónico de un MMSI. Requiere s.mu tomado.
func (s *Store) recordFor(mmsi string) *TrackedVessel {
	if id, ok := s.byMMSI[mmsi]; ok {
		return s.records[id]
	}
	s.nextID++
	rec := &TrackedVessel{MMSI: mmsi}
	s.records[s.nextID] = rec
	s.byMMSI[mmsi] = s.nextID
	return rec
}

// ApplyPosition inserta o actualiza la posición de un MMSI. Los campos de
// movimiento ausentes (nil) conservan su valor anterior; el IMO nunca se borra.
func (s *Store) ApplyPosition(mmsi string, lat, lon float64, sog, cog *float64, ts time.Time) (TrackedVessel, bool) {
	if mmsi == "" {
		return TrackedVessel{}, false
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordFor(mmsi)
	rec.Lat, rec.Lon = lat, lon
	if sog != nil {
		v := *sog
		rec.SOG = &v
	}
	if cog != nil {
		v := *cog
		rec.COG = &v
	}
	rec.LastSeen = ts.UTC()
	rec.LastSeenISO = rec.LastSeen.Format(ISOLayout)
	rec.HasPosition = true
	return rec.clone(), true
}

// ApplyStatic registra IMO y/o nombre para un MMSI. Un IMO vacío nunca borra
// uno aprendido antes; un IMO nuevo mueve el índice IMO a este registro.
func (s *Store) ApplyStatic(mmsi, imo, name string) (TrackedVessel, bool) {
	if mmsi == "" {
		return TrackedVessel{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordFor(mmsi)
	if name != "" {
		rec.Name = name
	}
	if imo != "" && imo != rec.IMO {
		id := s.byMMSI[mmsi]
		if rec.IMO != "" && s.byIMO[rec.IMO] == id {
			delete(s.byIMO, rec.IMO)
		}
		if otherID, ok := s.byIMO[imo]; ok && otherID != id {
			// el IMO pasó a otro MMSI (cambio de bandera): gana el último
			if other := s.records[otherID]; other != nil {
				other.IMO = ""
			}
		}
		s.byIMO[imo] = id
		rec.IMO = imo
	}
	return rec.clone(), true
}

// ByMMSI devuelve el registro de un MMSI.
func (s *Store) ByMMSI(mmsi string) (TrackedVessel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byMMSI[mmsi]
	if !ok {
		return TrackedVessel{}, false
	}
	return s.records[id].clone(), true
}

// ByIMO resuelve un IMO por su índice al mismo registro que devuelve ByMMSI.
func (s *Store) ByIMO(imo string) (TrackedVessel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIMO[imo]
	if !ok {
		return TrackedVessel{}, false
	}
	return s.records[id].clone(), true
}

// Lookup acepta "mmsi:<9 dígitos>", "imo:<7 dígitos>" o el número solo.
func (s *Store) Lookup(key string) (TrackedVessel, bool) {
	key = strings.TrimSpace(strings.ToLower(key))
	switch {
	case strings.HasPrefix(key, PrefixMMSI):
		return s.ByMMSI(strings.TrimPrefix(key, PrefixMMSI))
	case strings.HasPrefix(key, PrefixIMO):
		return s.ByIMO(strings.TrimPrefix(key, PrefixIMO))
	case len(key) == 9:
		return s.ByMMSI(key)
	case len(key) == 7:
		return s.ByIMO(key)
	}
	return TrackedVessel{}, false
}

// Snapshot devuelve una copia de los buques con posición conocida, una entrada
// por registro canónico (los índices IMO no se cuentan dos veces).
func (s *Store) Snapshot() []TrackedVessel {
	s.mu.RLock()
	out := make([]TrackedVessel, 0, len(s.records))
	for _, rec := range s.records {
		if rec.HasPosition {
			out = append(out, rec.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out
}

// Len devuelve cuántos registros canónicos hay, incluidos los sólo estáticos.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Reset vacía el store (cambio de región suscrita). Devuelve cuántos registros había.
func (s *Store) Reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = make(map[uint64]*TrackedVessel)
	s.byMMSI = make(map[string]uint64)
	s.byIMO = make(map[string]uint64)
	return n
}
