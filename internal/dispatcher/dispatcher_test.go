package dispatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vessel-svr/internal/codec"
	"vessel-svr/internal/tracker"
)

const (
	position = `{"MessageType":"PositionReport","MetaData":{"MMSI":366123456,"ShipName":"EVER FAIR"},` +
		`"Message":{"PositionReport":{"Latitude":32.0809,"Longitude":-81.0912,"Sog":5.2,"Cog":180}}}`
	static = `{"MessageType":"ShipStaticData","MetaData":{"MMSI":366123456},` +
		`"Message":{"ShipStaticData":{"ImoNumber":9123456,"Name":"EVER FAIR"}}}`
	staticOnly = `{"MessageType":"ShipStaticData","MetaData":{"MMSI":366000001},` +
		`"Message":{"ShipStaticData":{"ImoNumber":9000001,"Name":"NO FIX"}}}`
)

type recordingSink struct {
	mu   sync.Mutex
	got  []tracker.TrackedVessel
	fail bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, v tracker.TrackedVessel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, v)
	if s.fail {
		return errors.New("sink down")
	}
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestHandleFrameAppliesUpdates(t *testing.T) {
	st := tracker.New()
	d := New(codec.NewDecoder(), st, Options{})

	d.HandleFrame(position)
	d.HandleFrame([]byte(static))
	d.HandleFrame("not a frame")
	d.HandleFrame(nil)

	byMMSI, ok := st.ByMMSI("366123456")
	if !ok {
		t.Fatal("vessel not tracked")
	}
	if byMMSI.Lat != 32.0809 || byMMSI.Lon != -81.0912 || byMMSI.Name != "EVER FAIR" {
		t.Errorf("record = %+v", byMMSI)
	}
	byIMO, ok := st.ByIMO("9123456")
	if !ok || byIMO.Lat != byMMSI.Lat || byIMO.Lon != byMMSI.Lon {
		t.Errorf("IMO lookup = %+v, %v", byIMO, ok)
	}
	if st.Len() != 1 {
		t.Errorf("Len = %d, want 1", st.Len())
	}
}

func TestSinksReceiveOnlyPositionedVessels(t *testing.T) {
	sink := &recordingSink{}
	d := New(codec.NewDecoder(), tracker.New(), Options{Sinks: []Sink{sink}})

	d.HandleFrame(position)
	d.HandleFrame(static)
	d.HandleFrame(staticOnly)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if sink.count() != 2 {
		t.Fatalf("published %d updates, want 2", sink.count())
	}
	last := sink.got[1]
	if last.IMO != "9123456" || !last.HasPosition {
		t.Errorf("last published = %+v", last)
	}
}

func TestFullQueueDropsInsteadOfBlocking(t *testing.T) {
	sink := &recordingSink{}
	d := New(codec.NewDecoder(), tracker.New(), Options{Sinks: []Sink{sink}, QueueSize: 1})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.HandleFrame(position)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleFrame blocked on a full queue")
	}
	if len(d.queue) != 1 {
		t.Fatalf("queue len = %d, want 1", len(d.queue))
	}
}

func TestSinkErrorsDoNotStopWorker(t *testing.T) {
	bad := &recordingSink{fail: true}
	good := &recordingSink{}
	d := New(codec.NewDecoder(), tracker.New(), Options{Sinks: []Sink{bad, good}})

	d.publish(context.Background(), tracker.TrackedVessel{MMSI: "366123456"})
	if bad.count() != 1 || good.count() != 1 {
		t.Fatalf("bad=%d good=%d, want 1/1", bad.count(), good.count())
	}
}

func TestRawFrameLog(t *testing.T) {
	dir := t.TempDir()
	d := New(codec.NewDecoder(), tracker.New(), Options{RawLogDir: dir})
	d.HandleFrame(position)

	matches, err := filepath.Glob(filepath.Join(dir, "AISFRAMES_*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("raw log files = %v (%v)", matches, err)
	}
	data, _ := os.ReadFile(matches[0])
	if len(data) == 0 {
		t.Fatal("raw log is empty")
	}
}
