package snapshot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"vessel-svr/internal/config"
	"vessel-svr/internal/geo"
	"vessel-svr/internal/link"
	"vessel-svr/internal/tracker"
)

// 1° de latitud en millas con el radio del haversine.
const milesPerDegLat = 2 * math.Pi * geo.EarthRadiusMiles / 360

var savannahRef = geo.Point{Lat: 32.0809, Lon: -81.0912}

// fakeConn imita al link: vacía el store cuando cambia la bbox.
type fakeConn struct {
	store   *tracker.Store
	target  geo.BBox
	ensures int
	err     error
}

func (f *fakeConn) Ensure(_ context.Context, bbox geo.BBox) error {
	f.ensures++
	if f.err != nil {
		return f.err
	}
	if !f.target.IsZero() && f.target != bbox {
		f.store.Reset()
	}
	f.target = bbox
	return nil
}

func (f *fakeConn) Diagnostics() link.Diagnostics {
	return link.Diagnostics{State: "OPEN", Live: f.err == nil, Connects: f.ensures}
}

type panickingSource struct{}

func (panickingSource) Snapshot() []tracker.TrackedVessel { panic("corrupt store") }

func newTestBuilder(t *testing.T) (*Builder, *tracker.Store, *fakeConn) {
	t.Helper()
	presets, err := config.NewPresets(config.BuiltinPresets, "savannah")
	if err != nil {
		t.Fatal(err)
	}
	st := tracker.New()
	conn := &fakeConn{store: st}
	return NewBuilder(presets, conn, st, 0, nil), st, conn
}

func ptr(v float64) *float64 { return &v }

func TestVesselAtReferencePoint(t *testing.T) {
	b, st, _ := newTestBuilder(t)
	st.ApplyPosition("366123456", 32.0809, -81.0912, ptr(5.2), ptr(180), time.Now())

	res, err := b.Build(context.Background(), Query{Preset: "savannah"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 1 || len(res.Vessels) != 1 {
		t.Fatalf("count = %d, vessels = %d", res.Count, len(res.Vessels))
	}
	v := res.Vessels[0]
	if v.MMSI != "366123456" || v.DistanceMi > 1e-9 {
		t.Errorf("vessel = %+v", v)
	}
	if v.SOG == nil || *v.SOG != 5.2 || v.COG == nil || *v.COG != 180 {
		t.Errorf("motion = %v %v", v.SOG, v.COG)
	}
	if res.ReferencePoint != savannahRef || len(res.BoundingBox) != 2 {
		t.Errorf("reference = %+v bbox = %v", res.ReferencePoint, res.BoundingBox)
	}
	if v.Geohash != "djwqd8p" {
		t.Errorf("geohash = %q", v.Geohash)
	}
}

func TestDistanceIsComputedFromReference(t *testing.T) {
	b, st, _ := newTestBuilder(t)
	st.ApplyPosition("366000001", 32.0, -81.2, nil, nil, time.Now())

	res, err := b.Build(context.Background(), Query{})
	if err != nil {
		t.Fatal(err)
	}
	want := geo.DistanceMiles(savannahRef, geo.Point{Lat: 32.0, Lon: -81.2})
	if got := res.Vessels[0].DistanceMi; got != want {
		t.Fatalf("distanceMi = %v, want %v", got, want)
	}
	if res.Vessels[0].Lat != 32.0 || res.Vessels[0].Lon != -81.2 {
		t.Fatalf("position altered: %+v", res.Vessels[0])
	}
}

func TestSortedByDistance(t *testing.T) {
	b, st, _ := newTestBuilder(t)
	far := savannahRef.Lat + 2.0/milesPerDegLat
	near := savannahRef.Lat + 0.5/milesPerDegLat
	st.ApplyPosition("366000002", far, savannahRef.Lon, nil, nil, time.Now())
	st.ApplyPosition("366000001", near, savannahRef.Lon, nil, nil, time.Now())

	res, err := b.Build(context.Background(), Query{Preset: "savannah"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Vessels) != 2 {
		t.Fatalf("vessels = %d", len(res.Vessels))
	}
	if res.Vessels[0].MMSI != "366000001" {
		t.Fatalf("first = %s, want the 0.5mi vessel", res.Vessels[0].MMSI)
	}
	if math.Abs(res.Vessels[0].DistanceMi-0.5) > 1e-6 || math.Abs(res.Vessels[1].DistanceMi-2.0) > 1e-6 {
		t.Errorf("distances = %v, %v", res.Vessels[0].DistanceMi, res.Vessels[1].DistanceMi)
	}
	if math.Abs(res.Vessels[0].BearingDeg) > 1e-6 {
		t.Errorf("bearing to a vessel due north = %v", res.Vessels[0].BearingDeg)
	}
}

func TestLimit(t *testing.T) {
	b, st, _ := newTestBuilder(t)
	for i := 0; i < 250; i++ {
		st.ApplyPosition(fmt.Sprintf("3660%05d", i), 32.0+float64(i)*0.001, -81.0, nil, nil, time.Now())
	}

	res, err := b.Build(context.Background(), Query{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != DefaultLimit {
		t.Fatalf("default cap: count = %d", res.Count)
	}
	res, err = b.Build(context.Background(), Query{Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 5 {
		t.Fatalf("explicit cap: count = %d", res.Count)
	}
	for i := 1; i < len(res.Vessels); i++ {
		if res.Vessels[i-1].DistanceMi > res.Vessels[i].DistanceMi {
			t.Fatalf("not sorted at %d", i)
		}
	}
}

func TestPresetChangeClearsVessels(t *testing.T) {
	b, st, _ := newTestBuilder(t)
	st.ApplyPosition("366123456", 32.0809, -81.0912, nil, nil, time.Now())

	if res, _ := b.Build(context.Background(), Query{Preset: "savannah"}); res.Count != 1 {
		t.Fatalf("savannah count = %d", res.Count)
	}
	res, err := b.Build(context.Background(), Query{Preset: "tybee"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 0 {
		t.Fatalf("tybee count = %d, want 0 after region change", res.Count)
	}
}

func TestMaxAge(t *testing.T) {
	b, st, _ := newTestBuilder(t)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	st.ApplyPosition("366000001", 32.08, -81.09, nil, nil, now.Add(-30*time.Second))
	st.ApplyPosition("366000002", 32.09, -81.09, nil, nil, now.Add(-20*time.Minute))

	res, err := b.Build(context.Background(), Query{MaxAge: 5 * time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 1 || res.Vessels[0].MMSI != "366000001" {
		t.Fatalf("vessels = %+v", res.Vessels)
	}
	if st.Len() != 2 {
		t.Fatal("max age filter must not delete records")
	}
}

func TestBuildErrors(t *testing.T) {
	t.Run("unknown preset", func(t *testing.T) {
		b, _, conn := newTestBuilder(t)
		_, err := b.Build(context.Background(), Query{Preset: "atlantis"})
		if !errors.Is(err, ErrUnknownPreset) {
			t.Fatalf("err = %v", err)
		}
		if conn.ensures != 0 {
			t.Fatal("unknown preset must not connect")
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		b, _, conn := newTestBuilder(t)
		conn.err = link.ErrMissingAPIKey
		res, err := b.Build(context.Background(), Query{})
		if !errors.Is(err, link.ErrMissingAPIKey) {
			t.Fatalf("err = %v", err)
		}
		if res.ConnectionDiagnostics.State == "" || res.Preset != "savannah" {
			t.Fatalf("diagnostics missing: %+v", res)
		}
	})

	t.Run("transport error serves cached data", func(t *testing.T) {
		b, st, conn := newTestBuilder(t)
		st.ApplyPosition("366123456", 32.0809, -81.0912, nil, nil, time.Now())
		conn.err = errors.New("dial tcp: connection refused")
		res, err := b.Build(context.Background(), Query{})
		if err != nil {
			t.Fatalf("transport error surfaced: %v", err)
		}
		if res.Count != 1 || res.ConnectionDiagnostics.Live {
			t.Fatalf("result = %+v", res)
		}
	})

	t.Run("panic becomes structured error", func(t *testing.T) {
		presets, _ := config.NewPresets(config.BuiltinPresets, "savannah")
		b := NewBuilder(presets, &fakeConn{store: tracker.New()}, panickingSource{}, 0, nil)
		res, err := b.Build(context.Background(), Query{})
		if !errors.Is(err, ErrInternal) {
			t.Fatalf("err = %v", err)
		}
		if res.ConnectionDiagnostics.State != "OPEN" || res.Preset != "savannah" {
			t.Fatalf("diagnostics missing: %+v", res)
		}
	})
}
