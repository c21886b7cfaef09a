// Command ava-server runs AVA's real-time ingress: the widget websocket
// endpoint (§4.21), the dashboard Socket.IO push (§4.21), and the admin/
// export REST API (§4.20), all driven by one internal/session.Manager.
// Grounded on the teacher's cmd/server/main.go (construct every
// microservice, hand them to one api.Server, Start(port)) generalized to
// AVA's three-surface HTTP mux, with cmd/ava-jobs's cobra + config.Get() +
// bootstrap.Open + signal-handling shape kept for consistency across AVA's
// own binaries.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ava/internal/api"
	"ava/internal/bootstrap"
	"ava/internal/broadcast"
	"ava/internal/config"
	"ava/internal/dashboard"
	"ava/internal/drift"
	"ava/internal/generative"
	"ava/internal/mswim"
	"ava/internal/outcome"
	"ava/internal/rollout"
	"ava/internal/session"
	"ava/internal/shadow"
	"ava/internal/variant"
	"ava/internal/webhooks"
	"ava/internal/widget"
)

func main() {
	root := &cobra.Command{
		Use:   "ava-server",
		Short: "Run AVA's widget/dashboard/admin HTTP and WebSocket surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	if err := root.Execute(); err != nil {
		slog.Error("ava-server: fatal", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg := config.Get()

	stores, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	registry := webhooks.NewRegistry()
	dispatcher := webhooks.NewDispatcher(registry, 4)
	defer dispatcher.Shutdown()

	hub := broadcast.NewHub()

	var genClient generative.Client
	if cfg.Generative.Addr != "" {
		client, closeFn, dialErr := generative.Dial(cfg.Generative.Addr)
		if dialErr != nil {
			return dialErr
		}
		defer closeFn()
		genClient = client
	} else {
		genClient = &generative.MockClient{}
	}

	configLoader := config.NewScoringConfigLoader(stores.ScoringConfigs, cacheTTL(cfg))
	engine := mswim.NewEngine()
	shadowEvaluator := shadow.NewEvaluator(engine)
	variantResolver := variant.NewResolver(stores.Rollouts, stores.Experiments)

	mgr := session.NewManager(session.Deps{
		Sessions:          stores.Sessions,
		Events:            stores.Events,
		Evaluations:       stores.Evaluations,
		Interventions:     stores.Interventions,
		ShadowComparisons: stores.ShadowComparisons,

		ConfigLoader: configLoader,
		Generative:   genClient,
		Engine:       engine,
		Shadow:       shadowEvaluator,
		Broadcast:    hub,
		Variants:     variantResolver,

		BatchIntervalMs:       cfg.Session.BatchIntervalMs,
		BatchMaxEvents:        cfg.Session.BatchMaxEvents,
		MaxContextEvents:      cfg.Session.MaxContextEvents,
		DefaultEvalEngine:     cfg.Session.EvalEngine,
		AutoEngineCooldownSec: cfg.Session.AutoEngineCooldownSec,
		ShadowEnabled:         cfg.Shadow.Enabled,
	})

	outcomeRecorder := outcome.NewRecorder(stores.Interventions, stores.Evaluations, stores.TrainingDatapoints)

	driftDetector := drift.NewDetector(stores.ShadowComparisons, stores.Interventions, stores.DriftSnapshots, stores.DriftAlerts)
	driftDetector.Thresholds = cfg.Drift.DriftThresholds
	driftDetector.Emitter = dispatcher

	rolloutController := rollout.NewController(stores.Rollouts, stores.Experiments, stores.ScoringConfigs)
	rolloutController.Emitter = dispatcher

	widgetServer := widget.NewServer(stores.Sessions, mgr, outcomeRecorder, hub)
	dashboardServer := dashboard.NewServer(hub)
	dashboardServer.Start()
	defer dashboardServer.Stop()

	apiServer := api.NewServer(stores.ScoringConfigs, stores.Experiments, stores.Rollouts,
		stores.DriftAlerts, stores.TrainingDatapoints, rolloutController, driftDetector)
	apiServer.Emitter = dispatcher

	mux := http.NewServeMux()
	mux.Handle("/widget", http.HandlerFunc(widgetServer.ServeWS))
	mux.Handle("/socket.io/", dashboardServer.Handler())
	mux.Handle("/", apiServer.Router())

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ava-server: listening", "addr", srv.Addr, "env", cfg.Server.Env)
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("ava-server: received signal, shutting down", "signal", sig)
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// cacheTTL returns the entry TTL for the in-process ScoringConfigLoader:
// cfg.Cache.TTLSec when set, otherwise 30s.
func cacheTTL(cfg *config.Config) time.Duration {
	if cfg.Cache.TTLSec > 0 {
		return time.Duration(cfg.Cache.TTLSec) * time.Second
	}
	return 30 * time.Second
}
