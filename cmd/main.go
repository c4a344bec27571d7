package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/auth"
	"github.com/ukydev/trip-approvals/internal/config"
	"github.com/ukydev/trip-approvals/internal/db"
	"github.com/ukydev/trip-approvals/internal/fieldevent"
	"github.com/ukydev/trip-approvals/internal/handlers"
	"github.com/ukydev/trip-approvals/internal/lifecycle"
	"github.com/ukydev/trip-approvals/internal/middleware"
	"github.com/ukydev/trip-approvals/internal/notify"
	"github.com/ukydev/trip-approvals/internal/planning"
	"github.com/ukydev/trip-approvals/internal/readmodel"
	"github.com/ukydev/trip-approvals/internal/seed"
)

// app is the wired server and the resources it must release.
type app struct {
	handler http.Handler
	closers []func(context.Context)
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

func openStore(ctx context.Context, cfg config.Config) (db.RecordStore, func(context.Context), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("Using in-memory store; data is lost on restart")
		return db.NewMemoryStore(), func(context.Context) {}, nil
	}
	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB successfully")
	disconnect := func(ctx context.Context) {
		if err := client.Disconnect(ctx); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}
	return db.NewMongoStore(client.Database(cfg.MongoDB)), disconnect, nil
}

func openPublisher(cfg config.Config) (notify.Publisher, func(context.Context)) {
	if cfg.MQTTBroker == "" {
		return notify.Nop{}, func(context.Context) {}
	}
	pub, err := notify.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
	if err != nil {
		log.WithError(err).Warn("MQTT unavailable; field event notifications disabled")
		return notify.Nop{}, func(context.Context) {}
	}
	return pub, func(context.Context) { pub.Close() }
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}
	records, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	trips := db.NewTripStore(records, cfg.StoreTimeout)
	events := db.NewEventStore(records, cfg.StoreTimeout)
	refs := db.NewReferenceStore(records, cfg.StoreTimeout)
	users := db.NewUserStore(records, cfg.StoreTimeout)
	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)

	if _, err := seed.EnsureAdmin(ctx, users, authService, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("bootstrap administrator: %w", err)
	}
	if cfg.SeedDemo {
		if err := seed.Demo(ctx, refs, users, authService, time.Now()); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	publisher, closePublisher := openPublisher(cfg)
	a.closers = append(a.closers, closePublisher)

	logger := log.NewEntry(log.StandardLogger())
	machine := lifecycle.NewMachine()
	a.handler = handlers.Router{
		Auth:      handlers.NewAuthHandler(authService, users, refs, logger),
		Trips:     handlers.NewTripHandler(planning.NewService(trips, refs, machine, logger), fieldevent.NewRecorder(trips, events, machine, publisher, logger), readmodel.NewLoader(trips, refs, events), cfg.ExpiryHorizonDays, logger),
		Reference: handlers.NewReferenceHandler(refs, logger),
		AuthMW:    middleware.NewAuthMiddleware(authService),
		RateLimit: middleware.NewRateLimitMiddleware(),
		Log:       logger,
	}.Handler()
	return a, nil
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := cfg.ConfigureLogging(); err != nil {
		log.WithError(err).Fatal("Invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to start")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	go func() {
		log.WithFields(log.Fields{"port": cfg.Port, "store": cfg.Store}).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Graceful shutdown failed")
	}
	a.close(shutdownCtx)
}
