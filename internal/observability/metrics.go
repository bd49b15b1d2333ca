package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StreamConnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vessel_stream_connects_total",
		Help: "Conexiones al stream AIS abiertas",
	})
	StreamConnectErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vessel_stream_connect_errors_total",
		Help: "Intentos de conexión al stream AIS fallidos",
	})
	StreamDisconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vessel_stream_disconnects_total",
		Help: "Cierres del stream AIS por motivo",
	}, []string{"reason"})
	FramesRecv = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vessel_frames_received_total",
		Help: "Frames recibidos del socket vigente",
	})
	FramesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vessel_frames_discarded_total",
		Help: "Frames descartados (stale: socket anterior, ignored: no decodificable)",
	}, []string{"reason"})
	UpdatesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vessel_updates_applied_total",
		Help: "Actualizaciones aplicadas al store por tipo",
	}, []string{"kind"})
	StoreResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vessel_store_resets_total",
		Help: "Vaciados del store por cambio de bbox",
	})
	TrackedVessels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vessel_tracked",
		Help: "Buques con posición en el último snapshot",
	})
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vessel_sink_errors_total",
		Help: "Errores al publicar actualizaciones por sink",
	}, []string{"sink"})
	SinkDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vessel_sink_dropped_total",
		Help: "Actualizaciones descartadas con la cola de sinks llena",
	})
	SnapshotLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vessel_snapshot_latency_seconds",
		Help:    "Latencia de construcción de snapshots",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveSnapshotLatency(start time.Time) {
	SnapshotLatency.Observe(time.Since(start).Seconds())
}

// StartMetricsServer sirve /metrics y /healthz hasta que ctx se cancela.
func StartMetricsServer(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
