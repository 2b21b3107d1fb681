package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cash-kiosk/config"
	"cash-kiosk/handlers"
	"cash-kiosk/internal/channel"
	"cash-kiosk/internal/finalize"
	"cash-kiosk/internal/kiosk"
	"cash-kiosk/internal/printer"
	"cash-kiosk/internal/session"
	"cash-kiosk/internal/store"
	_ "cash-kiosk/migrations"
	"cash-kiosk/monitoring"
	"cash-kiosk/services"
	"cash-kiosk/utils"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Local store
	st, healthCheck, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	state := store.NewKioskState(st, cfg.KioskID)

	// Initialize services
	orderService := services.NewOrderService(cfg.APIBaseURL, cfg.RequestTimeout)
	positionService := services.NewPositionService(cfg.APIBaseURL, cfg.TableTimeout)
	journal := services.NewOrderJournal(app)

	pipeline := finalize.NewPipeline(positionService, orderService, state,
		finalize.WithJournal(journal),
		finalize.WithTableTimeout(cfg.TableTimeout),
		finalize.WithLogger(logger),
	)

	dialer, err := newDialer(cfg)
	if err != nil {
		return err
	}

	sink, err := printer.NewSink(cfg.PrintMode, cfg.PrinterName, cfg.SpoolDir)
	if err != nil {
		return err
	}

	k := kiosk.New(state,
		func() kiosk.Channel { return channel.NewTransport(dialer, state, logger) },
		pipeline, sink, kioskConfig(cfg), logger)

	kioskHandler := handlers.NewKioskHandler(k, journal, state)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.RootCmd.AddCommand(pairCommand(state))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		go func() {
			if err := k.Run(ctx); err != nil {
				slog.Error("kiosk coordinator stopped", "error", err)
			}
		}()
		monitoring.NewMonitor(ctx, cfg.MetricsInterval)

		// Screen endpoints
		e.Router.POST("/api/kiosk/screens/{screen}/focus", kioskHandler.Focus)
		e.Router.POST("/api/kiosk/activity", kioskHandler.Activity)
		e.Router.POST("/api/kiosk/idle/confirm", kioskHandler.ConfirmIdle)
		e.Router.PUT("/api/kiosk/cart", kioskHandler.SaveCart)
		e.Router.POST("/api/kiosk/pairing", kioskHandler.Pair)
		e.Router.GET("/api/kiosk/snapshot", kioskHandler.Snapshot)

		// Payment endpoints
		e.Router.POST("/api/kiosk/payment/cancel", kioskHandler.CancelPayment)
		e.Router.POST("/api/kiosk/payment/return", kioskHandler.ReturnToReview)
		e.Router.POST("/api/kiosk/payment/confirm", kioskHandler.ConfirmPrompt)
		e.Router.POST("/api/kiosk/payment/print", kioskHandler.PrintReceipt)
		e.Router.POST("/api/kiosk/payment/order-again", kioskHandler.OrderAgain)

		// Operations
		e.Router.GET("/api/kiosk/journal", kioskHandler.Journal)
		e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := healthCheck(); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]any{
				"status":  "healthy",
				"kiosk":   cfg.KioskID,
				"breaker": orderService.Breaker().State().String(),
			})
		})

		slog.Info("server routes registered", "kiosk", cfg.KioskID, "transport", cfg.ChannelTransport)

		return e.Next()
	})

	// Start server
	return app.Start()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Environment == "development" {
		opts.Level = slog.LevelDebug
	}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openStore returns the configured backend and a health check for it.
func openStore(cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := utils.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStore(client), func() error { return utils.RedisHealthCheck(client) }, nil

	default:
		if err := os.MkdirAll(cfg.BadgerDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create badger dir: %w", err)
		}
		s, err := store.NewBadgerStore(cfg.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		check := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			var v any
			_, err := s.Get(ctx, "health", &v)
			return err
		}
		return s, check, nil
	}
}

func newDialer(cfg *config.Config) (channel.Dialer, error) {
	switch cfg.ChannelTransport {
	case config.TransportPubNub:
		return &channel.PubNubDialer{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       fmt.Sprintf("kiosk-%s-%s", cfg.KioskID, uuid.NewString()),
		}, nil
	default:
		url, err := channel.ControllerURL(cfg.ControllerURL)
		if err != nil {
			return nil, err
		}
		return &channel.WebSocketDialer{URL: url}, nil
	}
}

func kioskConfig(cfg *config.Config) kiosk.Config {
	kc := kiosk.DefaultConfig()
	kc.Timings = session.Timings{
		ActivateDelay:     cfg.ActivateDelay,
		PaymentDeadline:   cfg.PaymentDeadline,
		PrintInstruction:  cfg.PrintInstruction,
		ReturnSettle:      cfg.ReturnSettle,
		ReturnCountdown:   cfg.ReturnCountdown,
		RefreshDelay:      cfg.RefreshDelay,
		OrderAgainTimeout: cfg.OrderAgainTimeout,
	}
	kc.IdleSoft = cfg.IdleSoft
	kc.IdleHard = cfg.IdleHard
	kc.PrintTimeout = cfg.PrintTimeout
	kc.Shop = printer.Shop{
		Name:    cfg.ShopName,
		Branch:  cfg.ShopBranch,
		Address: cfg.ShopAddress,
	}
	return kc
}

// pairCommand stores the branch identity without starting the server.
func pairCommand(state *store.KioskState) *cobra.Command {
	return &cobra.Command{
		Use:   "pair <branch-id>",
		Short: "Persist the branch identity this kiosk connects to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.SetBranchID(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("paired with branch %s\n", args[0])
			return nil
		},
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, cleaning up")
	cancel()
}
