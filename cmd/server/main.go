// Package main starts the in-memory Kongtze backend used for local
// development of the client. It serves HTTPS when a certificate is
// configured and plain HTTP otherwise.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/kongtze/internal/config"
	"github.com/atinyakov/kongtze/internal/logger"
	"github.com/atinyakov/kongtze/internal/server"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options, err := config.ParseServer()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	lg := logger.New()
	defer func() { _ = lg.Log.Sync() }()
	if err := lg.Init(options.LogLevel); err != nil {
		log.Fatal(err)
	}
	zapLogger := lg.Log

	backend := server.New(
		server.WithLogger(zapLogger),
		server.WithSecret([]byte(options.Secret)),
		server.WithTokenTTL(options.TokenTTL),
	)
	if options.Demo {
		backend.AddParent("Demo Parent", "parent@example.com", "password123")
		student := backend.AddStudent("Demo Student", "1234")
		backend.AddPoints(student.UserID, 150, "Welcome bonus")
		zapLogger.Info("seeded demo accounts",
			zap.String("parent", "parent@example.com / password123"),
			zap.String("student_pin", "1234"))
	}

	srv := &http.Server{
		Addr:              options.Addr,
		Handler:           server.NewRouter(backend),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if options.CertFile != "" {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if options.ClientCAFile != "" {
			caCert, err := os.ReadFile(options.ClientCAFile)
			if err != nil {
				zapLogger.Fatal("failed to read client CA cert", zap.Error(err))
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				zapLogger.Fatal("failed to append client CA cert to pool")
			}
			tlsConfig.ClientCAs = pool
			tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
		}
		srv.TLSConfig = tlsConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if options.CertFile != "" {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Addr))
		err = srv.ListenAndServeTLS(options.CertFile, options.KeyFile)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}
