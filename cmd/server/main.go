package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"triage/assistant/internal/api"
	"triage/assistant/internal/assessment"
	"triage/assistant/internal/config"
	"triage/assistant/internal/dialogue"
	"triage/assistant/internal/health"
	"triage/assistant/internal/intake"
	"triage/assistant/internal/logging"
	"triage/assistant/internal/queue"
	"triage/assistant/internal/record"
	"triage/assistant/internal/store"
	"triage/assistant/internal/tts"
	"triage/assistant/internal/types"
	"triage/assistant/internal/voicews"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat == "console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New()
	hub := voicews.NewHub(logger)
	questions := intake.DefaultQuestions()

	bridgeCfg := voicews.BridgeConfig{
		SpeakTimeout:       cfg.SpeakTimeout(),
		CaptureOpenTimeout: cfg.CaptureOpenTimeout(),
	}
	eleven := tts.NewElevenLabs(cfg, logger)
	if eleven.Configured() {
		bridgeCfg.Synth = eleven
		go func() {
			prompts := make([]string, 0, len(questions))
			for _, q := range questions {
				prompts = append(prompts, q.Prompt)
			}
			n := eleven.Warm(ctx, prompts)
			logger.Info().Int("warmed", n).Int("prompts", len(prompts)).Msg("prompt audio cache")
		}()
	} else {
		logger.Warn().Msg("ELEVENLABS_API_KEY not set, clients will use their own voice")
	}

	var sink record.Sink
	var pinger health.Pinger
	var waiting api.Queue
	if cfg.Redis.Addr != "" {
		client := queue.NewClient(cfg)
		defer client.Close()
		q := queue.NewRedisQueue(client, cfg, logger)
		sink, pinger, waiting = q, q, q
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, patient records are only logged")
		sink = logSink(logger)
	}

	mgr := assessment.NewManager(cfg, st, assessment.HubChannel{Hub: hub, Bridge: bridgeCfg}, sink, dialogue.Options{
		SilenceTimeout: cfg.SilenceTimeout(),
		HardTimeout:    cfg.HardTimeout(),
		MinAnswerRunes: cfg.Dialogue.MinAnswerRunes,
		Questions:      questions,
	}, logger)

	checker := health.NewChecker(cfg, pinger)
	h := api.NewHandlers(mgr, checker, waiting, logger)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.Handle("/metrics", promhttp.Handler())

	wss := voicews.NewServer(cfg, st, hub, logger)
	wss.OnControl = mgr.HandleControl
	wss.OnDisconnect = mgr.HandleDisconnect
	mux.HandleFunc("/ws/client", wss.HandleClientWS)

	// gRPC health on its own port for orchestrator probes
	gs, hs := health.NewGRPCServer()
	go health.Reflect(ctx, checker, hs, 15*time.Second, logger.With().Str("component", "health").Logger())
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		logger.Fatal().Err(err).Str("port", cfg.Server.GRPCPort).Msg("grpc listen")
	}
	go func() {
		logger.Info().Str("addr", lis.Addr().String()).Msg("grpc health listening")
		if err := gs.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("grpc serve")
		}
	}()

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutdown signal received; stopping server...")
		// Abandon live assessments before draining HTTP
		mgr.Shutdown()
		hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSecs)*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		gs.GracefulStop()
	}()

	logger.Info().Str("addr", addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}

// logSink stands in for the queue when Redis is not configured.
func logSink(logger zerolog.Logger) record.Sink {
	log := logger.With().Str("component", "queue").Logger()
	return record.SinkFunc(func(_ context.Context, rec types.PatientRecord) error {
		log.Info().
			Str("patient_id", rec.ID).
			Str("urgency", rec.UrgencyLabel).
			Float64("score", rec.UrgencyScore).
			Msg("patient record")
		return nil
	})
}

func logMiddleware(logger zerolog.Logger, next http.Handler) http.Handler {
	log := logger.With().Str("component", "http").Logger()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("request")
	})
}
