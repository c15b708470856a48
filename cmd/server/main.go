package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/larsssmoatsss/pictochatter/internal/config"
	"github.com/larsssmoatsss/pictochatter/internal/db"
	"github.com/larsssmoatsss/pictochatter/internal/engine"
	"github.com/larsssmoatsss/pictochatter/internal/server"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logrus.Warnf("failed to load .env: %v", err)
	}
	cfg := config.Load()
	log := newLogger(cfg)

	conn, err := db.Open()
	if err != nil {
		log.WithError(err).Warn("database unavailable, running in-memory only")
		conn = nil
	}
	if conn != nil {
		if err := db.Tune(conn,
			cfg.DBMaxOpenConns,
			cfg.DBMaxIdleConns,
			time.Duration(cfg.DBConnMaxLifetimeSeconds)*time.Second,
			time.Duration(cfg.DBConnMaxIdleTimeSeconds)*time.Second,
		); err != nil {
			log.WithError(err).Fatal("failed to tune database pool")
		}
		if err := db.Migrate(conn); err != nil {
			log.WithError(err).Fatal("failed to migrate database")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(conn, cfg, log)
	if err := eng.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start engine")
	}

	srv := server.New(eng, cfg, log)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("pictochatter listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}
	eng.Close()
	log.Info("shutdown complete")
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	return log
}
