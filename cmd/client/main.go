// Package main is the Kongtze terminal client: an interactive shell over
// the Kongtze REST API with a persisted login session.
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/kongtze/internal/client/api"
	"github.com/atinyakov/kongtze/internal/client/auth"
	"github.com/atinyakov/kongtze/internal/client/storage"
	"github.com/atinyakov/kongtze/internal/client/transport"
	"github.com/atinyakov/kongtze/internal/config"
	"github.com/atinyakov/kongtze/internal/logger"
)

var (
	version   string
	buildDate string
)

// main parses configuration, restores the saved session and starts the shell.
func main() {
	showVer := flag.Bool("version", false, "show build version and date")

	opts, err := config.Parse()
	if err != nil {
		log.Fatal(err)
	}
	if *showVer {
		fmt.Printf("Kongtze Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	lg := logger.New()
	defer func() { _ = lg.Log.Sync() }()
	if err := lg.Init(opts.LogLevel); err != nil {
		log.Fatal(err)
	}
	zapLogger := lg.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := storage.Open(ctx, storage.Options{
		Driver:        opts.Storage.Driver,
		Path:          opts.Storage.Path,
		DSN:           opts.Storage.DSN,
		RedisAddr:     opts.Storage.RedisAddr,
		RedisPassword: opts.Storage.RedisPassword,
		RedisDB:       opts.Storage.RedisDB,
		Secret:        opts.Storage.Secret,
	})
	if err != nil {
		zapLogger.Fatal("cannot open storage", zap.String("driver", opts.Storage.Driver), zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	client, err := newTransport(opts, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot configure transport", zap.Error(err))
	}
	a := api.New(client)

	manager := auth.NewManager(a.Auth, store, zapLogger)
	manager.Start(ctx)
	select {
	case <-manager.Ready():
	case <-ctx.Done():
		return
	}
	if st := manager.State(); st.IsAuthenticated {
		fmt.Printf("Welcome back, %s.\n", st.User.Name)
	}

	newShell(os.Stdin, os.Stdout, a, manager, zapLogger).run(ctx)
}

// newTransport builds the HTTP client from opts and, when a metrics address
// is configured, starts the Prometheus listener.
func newTransport(opts *config.Options, zapLogger *zap.Logger) (*transport.Client, error) {
	topts := []transport.Option{
		transport.WithLogger(zapLogger),
		transport.WithTimeout(opts.Timeout),
	}

	if opts.TLS.CAFile != "" || opts.TLS.CertFile != "" {
		tlsCfg, err := transport.LoadTLSConfig(opts.TLS.CAFile, opts.TLS.CertFile, opts.TLS.KeyFile)
		if err != nil {
			return nil, err
		}
		topts = append(topts, transport.WithTLSConfig(tlsCfg))
	}

	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		topts = append(topts, transport.WithMetrics(transport.NewMetrics(reg)))
		go serveMetrics(opts.MetricsAddr, reg, zapLogger)
	}

	return transport.New(opts.BaseURL, topts...), nil
}

func serveMetrics(addr string, reg *prometheus.Registry, zapLogger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	zapLogger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zapLogger.Error("metrics listener stopped", zap.Error(err))
	}
}
