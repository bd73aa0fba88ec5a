package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// Service is the name reported for the intake service in grpc health.
const Service = "triage.Intake"

// NewGRPCServer returns a grpc server exposing the standard health service,
// with keepalive settings for fast death detection of probers.
func NewGRPCServer() (*grpc.Server, *grpchealth.Server) {
	kap := keepalive.ServerParameters{
		MaxConnectionIdle:     2 * time.Minute,
		MaxConnectionAge:      15 * time.Minute,
		MaxConnectionAgeGrace: 30 * time.Second,
		Time:                  30 * time.Second,
		Timeout:               10 * time.Second,
	}
	kasp := keepalive.EnforcementPolicy{
		MinTime:             10 * time.Second,
		PermitWithoutStream: true,
	}
	s := grpc.NewServer(grpc.KeepaliveParams(kap), grpc.KeepaliveEnforcementPolicy(kasp))
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// Reflect runs CheckAll every interval and publishes the result to hs until
// ctx is done. The overall server status and Service move together.
func Reflect(ctx context.Context, c *Checker, hs *grpchealth.Server, interval time.Duration, log zerolog.Logger) {
	apply := func() {
		cctx, cancel := context.WithTimeout(ctx, interval)
		st := c.CheckAll(cctx)
		cancel()
		status := healthpb.HealthCheckResponse_SERVING
		if !st.OK {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			log.Warn().Str("health", st.String()).Msg("dependency check failed")
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(Service, status)
	}
	apply()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			apply()
		}
	}
}
