package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicebot/agent/internal/api"
	"voicebot/agent/internal/classifier"
	"voicebot/agent/internal/config"
	"voicebot/agent/internal/confidence"
	"voicebot/agent/internal/logger"
	"voicebot/agent/internal/orchestrator"
	"voicebot/agent/internal/policy"
	"voicebot/agent/internal/report"
	"voicebot/agent/internal/responder"
	"voicebot/agent/internal/session"
	"voicebot/agent/internal/voicews"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Server.LogLevel)

	reports, err := report.NewRepository(cfg.Report.DBPath, logger.Component(log, "report"))
	if err != nil {
		log.WithError(err).Fatal("report store init failed")
	}
	defer reports.Close()

	registry := session.NewRegistry()
	agents := session.NewAgentPool(nil)

	cm := confidence.New(cfg.Confidence.ASRWeight, cfg.Confidence.NLUWeight,
		cfg.Confidence.AmbiguityPenalty, logger.Component(log, "confidence"))

	sev := classifier.NewHTTPSeverity(cfg.Classifier.URL, cfg.Classifier.APIKey, cfg.Classifier.Model,
		time.Duration(cfg.Classifier.TimeoutSecs)*time.Second, logger.Component(log, "classifier"))
	pol := policy.New(cfg.Policy.ConfidenceLimit, cfg.Policy.MaxAmbiguity, cfg.Policy.CacheSize,
		sev, time.Duration(cfg.Classifier.TimeoutSecs)*time.Second, logger.Component(log, "policy"))

	gen := responder.NewHTTPGenerator(cfg.Responder.URL, cfg.Responder.APIKey, cfg.Responder.Model,
		time.Duration(cfg.Responder.TimeoutSecs)*time.Second, logger.Component(log, "responder"))

	engine := orchestrator.New(cm, pol, gen, agents, orchestrator.Prompts{
		Clarification: cfg.Call.Clarification,
		Apology:       cfg.Call.Apology,
		Goodbye:       cfg.Call.Goodbye,
	}, cfg.Call.ContextTurns, time.Duration(cfg.Responder.TimeoutSecs)*time.Second,
		logger.Component(log, "orchestrator"))

	h := api.NewHandlers(cfg, registry, reports, logger.Component(log, "api"))
	wss := voicews.NewServer(cfg, registry, engine, classifier.NewLexicalIntent(), reports,
		logger.Component(log, "voicews"))

	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws/voice", wss.HandleVoiceWS)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info("shutdown signal received; stopping server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.WithField("addr", addr).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("server error")
		os.Exit(1)
	}
}
