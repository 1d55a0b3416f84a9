package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanonone/pcgcluster/pkg/pipeline"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n  pcgex run -config pipeline.yaml [-metrics-addr :9100]\n  pcgex schema\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "schema":
		b, err := pipeline.Schema()
		if err != nil {
			log.Fatalf("Cannot build config schema: %v", err)
		}
		fmt.Println(string(b))

	case "run":
		fs := flag.NewFlagSet("run", flag.ExitOnError)
		configPath := fs.String("config", "pipeline.yaml", "Path of the pipeline YAML file")
		metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100) while running")
		fs.Parse(os.Args[2:])

		if err := run(*configPath, *metricsAddr); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}

	default:
		usage()
		os.Exit(2)
	}
}

func run(configPath, metricsAddr string) error {
	cfg, err := pipeline.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	// Ctrl+C cancels the running node; its outputs are discarded.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	inputs, err := pipeline.LoadInputs(ctx, cfg)
	if err != nil {
		return err
	}
	outputs, err := p.Run(ctx, inputs)
	if err != nil {
		return err
	}
	return p.Save(outputs)
}
