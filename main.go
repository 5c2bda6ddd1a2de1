package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wfunc/gamecenter/booking"
	"github.com/wfunc/gamecenter/bookingapi"
	"github.com/wfunc/gamecenter/cache"
	"github.com/wfunc/gamecenter/center"
	"github.com/wfunc/gamecenter/config"
	"github.com/wfunc/gamecenter/events"
	"github.com/wfunc/gamecenter/feed"
	"github.com/wfunc/gamecenter/logger"
	"github.com/wfunc/gamecenter/monitor"
	"github.com/wfunc/gamecenter/persistence"
	"github.com/wfunc/gamecenter/pricing"
	"github.com/wfunc/gamecenter/server"
	"github.com/wfunc/gamecenter/services"
	"github.com/wfunc/gamecenter/session"
	"github.com/wfunc/gamecenter/timer"
)

const sessionPurgeInterval = time.Minute

func main() {
	// Initialize logger
	logger.Init("info")
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Info("Database connection successful.")

	pricingCfg, err := pricing.ConfigFromSettings(cfg.Booking)
	if err != nil {
		logger.Log.Fatalf("Invalid booking configuration: %v", err)
	}
	calc, err := pricing.NewCalculator(pricingCfg)
	if err != nil {
		logger.Log.Fatalf("Failed to build calculator: %v", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mon := monitor.NewMonitorWithRegistry(cfg.Metrics.Namespace, registry, registry)
	mon.PublishExpvar()

	centers := center.NewCenterManager()

	bookingClient := bookingapi.NewClient(cfg.BookingAPI.Address, cfg.BookingAPI.Timeout)
	defer bookingClient.Close()

	serviceOpts := []services.Option{
		services.WithMetrics(mon),
		services.WithWallet(db),
		services.WithCancellationPolicy(booking.CancellationPolicy{FreeWindow: cfg.Booking.FreeCancellationWindow}),
	}
	if cfg.Events.AMQPURL != "" {
		publisher := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Queue)
		defer publisher.Close()
		serviceOpts = append(serviceOpts, services.WithPublisher(publisher))
	}
	bookings := services.NewBookingService(centers, calc, bookingClient, db, serviceOpts...)
	sessions := session.NewManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.SessionTTL,
		session.WithCloseHook(bookings.OnSessionClose))

	timers := timer.NewTimerManager()
	defer timers.Stop()

	timers.AddTimer(sessionPurgeInterval, sessionPurgeInterval, func() {
		if n := sessions.PurgeExpired(time.Now()); n > 0 {
			logger.Log.Infow("purged expired sessions", "count", n)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Seat feed
	var poller *feed.Poller
	if cfg.Feed.URL != "" {
		source, err := feed.NewWSSource(cfg.Feed.URL, cfg.Feed.RequestTimeout)
		if err != nil {
			logger.Log.Fatalf("Invalid seat feed: %v", err)
		}
		pollerOpts := []feed.PollerOption{
			feed.WithMetrics(mon),
			feed.WithRequestTimeout(cfg.Feed.RequestTimeout),
		}
		if cfg.Cache.RedisAddr != "" {
			snapshots, err := cache.NewSnapshotCache(cfg.Cache)
			if err != nil {
				// 缓存不可用时只依赖实时数据
				logger.Log.Warnf("Seat cache unavailable: %v", err)
			} else {
				defer snapshots.Close()
				pollerOpts = append(pollerOpts, feed.WithSnapshotStore(snapshots))
			}
		}
		poller = feed.NewPoller(source, centers, cfg.Feed.Centers, cfg.Feed.PollInterval, pollerOpts...)
		if n := poller.Warm(ctx); n > 0 {
			logger.Log.Infow("warmed centers from cache", "count", n)
		}
		poller.Start(ctx, timers)
	} else {
		logger.Log.Warn("No seat feed configured, centers stay empty")
	}

	gameCenterServer := server.NewGameCenterServer(cfg.Server.HTTPAddress, sessions, bookings, centers, mon.Handler())

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Starting game center server on %s", cfg.Server.HTTPAddress)
		errCh <- gameCenterServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down...")
	case err := <-errCh:
		if err != nil {
			logger.Log.Errorf("Server stopped: %v", err)
		}
	}

	if poller != nil {
		poller.Stop(timers)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameCenterServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Shutdown failed: %v", err)
	}
	logger.Log.Info("Server stopped.")
}
