package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/darrentmorgan/singura-sub007/internal/api"
	"github.com/darrentmorgan/singura-sub007/internal/server"
	"github.com/darrentmorgan/singura-sub007/pkg/config"
	"github.com/darrentmorgan/singura-sub007/pkg/correlation"
	"github.com/darrentmorgan/singura-sub007/pkg/detection"
	"github.com/darrentmorgan/singura-sub007/pkg/detection/detectors"
	"github.com/darrentmorgan/singura-sub007/pkg/evaluation"
	"github.com/darrentmorgan/singura-sub007/pkg/logger"
)

const serviceVersion = "1.0.0"

func main() {
	var (
		configFile = flag.String("config", "", "Path to configuration file (YAML or JSON)")
		logLevel   = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("singura-detection v%s\n", serviceVersion)
		os.Exit(0)
	}

	cfg := config.Default()
	loader := config.NewLoader("SINGURA")
	if err := loader.Load(*configFile, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLogLevel(cfg.Logging.Level),
		Format:  logger.ParseLogFormat(cfg.Logging.Format),
		Output:  os.Stdout,
		Service: "singura-detection",
		Version: serviceVersion,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	detectionMetrics := detection.NewMetrics(registry)

	notifier, natsConn, err := buildNotifier(cfg, log)
	if err != nil {
		log.Error("Failed to connect NATS notifier: %v", err)
		os.Exit(1)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	service := detection.NewService(&detection.ServiceConfig{
		MinConfidence: cfg.Detection.MinConfidence,
		MaxConcurrent: cfg.Detection.MaxConcurrent,
		Timeout:       cfg.Detection.Timeout,
	}, notifier, detectionMetrics, log)

	registered := []detection.Detector{
		detectors.NewVelocityDetector(cfg.Detection.Velocity),
		detectors.NewBatchOperationDetector(cfg.Detection.Batch),
		detectors.NewPermissionEscalationDetector(cfg.Detection.Escalation),
		detectors.NewAIOAuthDetector(),
	}
	for _, d := range registered {
		if err := service.RegisterDetector(d); err != nil {
			log.Error("Failed to register detector %s: %v", d.GetName(), err)
			os.Exit(1)
		}
	}

	engine, err := correlation.NewEngine(cfg.Correlation, log)
	if err != nil {
		log.Error("Failed to create correlation engine: %v", err)
		os.Exit(1)
	}

	metricsService := evaluation.NewMetricsService()
	baselines, err := evaluation.NewBaselineManager(cfg.Evaluation.BaselineDir, cfg.Evaluation.BaselineHistory, log)
	if err != nil {
		log.Error("Failed to create baseline manager: %v", err)
		os.Exit(1)
	}
	tracker := evaluation.NewMisclassificationTracker(metricsService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Evaluation.SnapshotCron != "" {
		source := evaluation.NewDirectorySource(cfg.Evaluation.LabeledDataDir)
		scheduler := evaluation.NewScheduler(metricsService, baselines, source, log)
		versions := make(map[string]string, len(registered))
		for _, d := range registered {
			versions[d.GetName()] = d.GetVersion()
		}
		if err := scheduler.Schedule(cfg.Evaluation.SnapshotCron, versions); err != nil {
			log.Error("Failed to schedule evaluation snapshots: %v", err)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	httpServer := server.New(&cfg.Server, log, registry, server.Controllers{
		Detection:  api.NewDetectionController(service, engine),
		Evaluation: api.NewEvaluationController(metricsService, baselines, tracker),
	})

	if err := httpServer.Start(ctx); err != nil {
		log.Error("Server exited with error: %v", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		log.Warn("Detection service shutdown: %v", err)
	}
}

// buildNotifier wires the finding side-channel. An empty NATS URL means
// findings stay local to the API responses.
func buildNotifier(cfg *config.Config, log *logger.Logger) (detection.Notifier, *nats.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil, nil
	}

	conn, err := nats.Connect(cfg.NATS.URL,
		nats.Name("singura-detection"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, err
	}

	notifier, err := detection.NewNATSNotifier(conn, cfg.NATS.Subject, log)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return notifier, conn, nil
}
