package observability

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService es el nombre bajo el que se publica el estado del stream AIS.
const HealthService = "vessel.Stream"

// NewHealth crea el servidor de health con el stream en NOT_SERVING.
func NewHealth() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// SetStreamServing refleja el estado del link en el health gRPC.
func SetStreamServing(hs *health.Server, live bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if live {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus(HealthService, st)
}

// ServeHealth sirve grpc.health.v1 en port hasta que ctx se cancela.
func ServeHealth(ctx context.Context, port string, hs *health.Server) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()
	return srv.Serve(lis)
}
