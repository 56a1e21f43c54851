// Command tagd runs a tag-engine instance behind an HTTP surface: a
// Prometheus /metrics endpoint and a plaintext /snapshot endpoint serving
// spec.md §6's tab-separated stream format. It owns no transport for
// Open/Receive/Send/Control themselves — those are a library surface
// (package tagengine) for an embedder to wire into its own RPC layer, per
// spec.md §1's "syscall/ABI layer is deliberately out of scope."
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"tagengine"
	"tagengine/internal/config"
	"tagengine/internal/logging"
	"tagengine/internal/snapshotfmt"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	flags := pflag.NewFlagSet("tagd", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a HUJSON configuration overlay")
	scrapeInterval := flags.Duration("scrape-interval", 2*time.Second, "how often to refresh the metrics collector from a snapshot")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	log := logging.New(logging.Config{Level: logging.LevelInfo, Format: logging.FormatJSON})

	cfg, err := config.Load(*configPath, &log)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return 1
	}
	log = logging.New(logging.Config{Level: logging.Level(cfg.LogLevel), Format: logging.Format(cfg.LogFormat)})
	cfg.LogConfig(log)

	engine := tagengine.New(tagengine.Config{
		MaxInstances:   cfg.MaxInstances,
		MaxMessageSize: cfg.MaxMessageSize,
		Logger:         &log,
	})

	registry := prometheus.NewRegistry()
	collector := snapshotfmt.NewCollector(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := tagengine.WriteSnapshotStream(w, engine.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("failed writing snapshot response")
		}
	})

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go refreshMetrics(ctx, engine, collector, *scrapeInterval)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("tagd listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("tagd server exited")
			return 1
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
			return 1
		}
	}
	return 0
}

func refreshMetrics(ctx context.Context, engine *tagengine.Engine, collector *snapshotfmt.Collector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			records := engine.Snapshot()
			converted := make([]snapshotfmt.Record, len(records))
			for i, r := range records {
				converted[i] = snapshotfmt.Record{
					Slot:             r.Slot,
					Key:              r.Key,
					Level:            r.Level,
					WaitingReceivers: r.WaitingReceivers,
				}
			}
			delivered, discarded := engine.SendStats()
			collector.Update(converted, delivered, discarded)
		}
	}
}
