package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lob/config"
	"lob/infra/kafka"
	"lob/jobs/broadcaster"
	"lob/metrics"
	"lob/sim"
	"lob/snapshot"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Metrics ----------------

	var met *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		met = metrics.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	// ---------------- Snapshot archive ----------------

	var archive *snapshot.Archive
	if cfg.ArchiveDir != "" {
		archive, err = snapshot.OpenArchive(cfg.ArchiveDir)
		if err != nil {
			log.Fatal("open archive", zap.Error(err))
		}
		defer archive.Close()
	}

	// ---------------- Engine ----------------

	engine := sim.New(cfg, met, archive, log)

	// ---------------- Kafka (optional) ----------------

	if len(cfg.KafkaBrokers) > 0 {
		bc, err := broadcaster.New(cfg.KafkaBrokers, cfg.FillTopic, cfg.Symbol, log.Named("broadcaster"))
		if err != nil {
			log.Fatal("connect broadcaster", zap.Error(err))
		}
		bcCtx, bcCancel := context.WithCancel(context.Background())
		bc.Start(bcCtx)
		engine.AddFillSink(bc.Publish)
		defer func() {
			bcCancel()
			if err := bc.Close(); err != nil {
				log.Warn("close broadcaster", zap.Error(err))
			}
			sent, dropped := bc.Stats()
			log.Info("broadcaster stats", zap.Uint64("sent", sent), zap.Uint64("dropped", dropped))
		}()

		quotes := kafka.NewProducer(cfg.KafkaBrokers, cfg.QuoteTopic)
		defer quotes.Close()
		go publishQuotes(ctx, quotes, engine, log)
	}

	// ---------------- Run ----------------

	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal("simulation", zap.Error(err))
	}

	fmt.Println(engine.Report())

	if cfg.ExportDir != "" {
		if err := engine.Export(cfg.ExportDir); err != nil {
			log.Error("export", zap.Error(err))
		} else {
			log.Info("exported run data", zap.String("dir", cfg.ExportDir))
		}
	}
}

// publishQuotes pushes the top of book to Kafka until ctx is done.
func publishQuotes(ctx context.Context, p *kafka.Producer, engine *sim.Engine, log *zap.Logger) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PublishQuote(ctx, engine.Book()); err != nil {
				log.Warn("publish quote", zap.Error(err))
			}
		}
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
