package tracker

import (
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func TestApplyPositionInsertsExactCoordinates(t *testing.T) {
	s := New()
	got, ok := s.ApplyPosition("366123456", 32.0809, -81.0912, f(5.2), f(180), t0)
	if !ok {
		t.Fatal("ApplyPosition rejected a valid update")
	}
	if got.Lat != 32.0809 || got.Lon != -81.0912 {
		t.Errorf("position = %f,%f", got.Lat, got.Lon)
	}
	if got.LastSeenISO != "2026-10-18T12:00:00.000Z" {
		t.Errorf("LastSeenISO = %q", got.LastSeenISO)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestApplyPositionPartialMerge(t *testing.T) {
	s := New()
	s.ApplyPosition("366123456", 32.0, -81.0, f(5.2), f(180), t0)
	got, _ := s.ApplyPosition("366123456", 32.1, -81.1, nil, nil, t0.Add(time.Minute))

	if got.SOG == nil || *got.SOG != 5.2 {
		t.Errorf("sog = %v, want preserved 5.2", got.SOG)
	}
	if got.COG == nil || *got.COG != 180 {
		t.Errorf("cog = %v, want preserved 180", got.COG)
	}
	if got.Lat != 32.1 || got.Lon != -81.1 {
		t.Errorf("position not updated: %f,%f", got.Lat, got.Lon)
	}

	got, _ = s.ApplyPosition("366123456", 32.2, -81.2, f(0), nil, t0.Add(2*time.Minute))
	if got.SOG == nil || *got.SOG != 0 {
		t.Errorf("sog = %v, want explicit 0", got.SOG)
	}
}

func TestStaticAfterPositionIndexesIMO(t *testing.T) {
	s := New()
	s.ApplyPosition("366123456", 32.0809, -81.0912, f(5.2), f(180), t0)
	s.ApplyStatic("366123456", "9123456", "EVER FAIR")

	byMMSI, ok := s.ByMMSI("366123456")
	if !ok {
		t.Fatal("mmsi lookup failed")
	}
	byIMO, ok := s.ByIMO("9123456")
	if !ok {
		t.Fatal("imo lookup failed")
	}
	if byMMSI.Lat != byIMO.Lat || byMMSI.Lon != byIMO.Lon || *byMMSI.SOG != *byIMO.SOG {
		t.Errorf("mmsi and imo lookups disagree: %+v vs %+v", byMMSI, byIMO)
	}

	// una posición posterior se ve igual por ambos índices
	s.ApplyPosition("366123456", 32.2, -81.2, nil, nil, t0.Add(time.Minute))
	byIMO, _ = s.ByIMO("9123456")
	if byIMO.Lat != 32.2 || byIMO.IMO != "9123456" || byIMO.Name != "EVER FAIR" {
		t.Errorf("imo view not refreshed: %+v", byIMO)
	}

	for _, key := range []string{"mmsi:366123456", "IMO:9123456", "366123456", "9123456"} {
		if v, ok := s.Lookup(key); !ok || v.MMSI != "366123456" {
			t.Errorf("Lookup(%q) = %+v, %v", key, v, ok)
		}
	}
	if _, ok := s.Lookup("imo:0000000"); ok {
		t.Error("unknown imo should not resolve")
	}
}

func TestIMONeverErased(t *testing.T) {
	s := New()
	s.ApplyStatic("366123456", "9123456", "")
	s.ApplyStatic("366123456", "", "NEW NAME")
	s.ApplyPosition("366123456", 32, -81, nil, nil, t0)

	v, _ := s.ByMMSI("366123456")
	if v.IMO != "9123456" {
		t.Errorf("imo = %q, want preserved", v.IMO)
	}
	if v.Name != "NEW NAME" {
		t.Errorf("name = %q", v.Name)
	}
}

func TestIMOMovesToNewMMSI(t *testing.T) {
	s := New()
	s.ApplyStatic("366123456", "9123456", "")
	s.ApplyStatic("538000001", "9123456", "")

	v, ok := s.ByIMO("9123456")
	if !ok || v.MMSI != "538000001" {
		t.Fatalf("imo index = %+v, want latest mmsi", v)
	}
	old, _ := s.ByMMSI("366123456")
	if old.IMO != "" {
		t.Errorf("previous holder still claims imo %q", old.IMO)
	}
}

func TestSnapshotDeduplicatesAndSkipsStaticOnly(t *testing.T) {
	s := New()
	s.ApplyPosition("366123456", 32.0, -81.0, nil, nil, t0)
	s.ApplyStatic("366123456", "9123456", "A")
	s.ApplyStatic("366000002", "9000002", "STATIC ONLY")
	s.ApplyPosition("366000003", 31.9, -80.9, nil, nil, t0)

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d entries, want 2: %+v", len(snap), snap)
	}
	if snap[0].MMSI != "366000003" || snap[1].MMSI != "366123456" {
		t.Errorf("unexpected order %s, %s", snap[0].MMSI, snap[1].MMSI)
	}
}

func TestSnapshotReturnsCopies(t *testing.T) {
	s := New()
	s.ApplyPosition("366123456", 32.0, -81.0, f(1), nil, t0)
	snap := s.Snapshot()
	*snap[0].SOG = 99
	snap[0].Lat = 0

	v, _ := s.ByMMSI("366123456")
	if *v.SOG != 1 || v.Lat != 32.0 {
		t.Errorf("store mutated through snapshot: %+v", v)
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.ApplyPosition("366123456", 32.0, -81.0, nil, nil, t0)
	s.ApplyStatic("366123456", "9123456", "")
	if n := s.Reset(); n != 1 {
		t.Errorf("Reset returned %d, want 1", n)
	}
	if len(s.Snapshot()) != 0 {
		t.Error("snapshot not empty after reset")
	}
	if _, ok := s.ByIMO("9123456"); ok {
		t.Error("imo index survived reset")
	}
}

func TestRejectsEmptyMMSI(t *testing.T) {
	s := New()
	if _, ok := s.ApplyPosition("", 1, 1, nil, nil, t0); ok {
		t.Error("empty mmsi accepted by ApplyPosition")
	}
	if _, ok := s.ApplyStatic("", "9123456", ""); ok {
		t.Error("empty mmsi accepted by ApplyStatic")
	}
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, v := range s.Snapshot() {
					// lat y lon se escriben juntos: nunca deben diferir
					if v.Lat != -v.Lon {
						t.Errorf("torn read: %+v", v)
						return
					}
				}
			}
		}()
	}
	for i := 0; i < 2000; i++ {
		x := float64(i%90) + 0.5
		s.ApplyPosition("366123456", x, -x, nil, nil, t0)
	}
	close(stop)
	wg.Wait()
}
