// Command controller-sim runs a fake branch (bill acceptor, order service and
// position service) for kiosk development.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cash-kiosk/simulator"

	"github.com/spf13/cobra"
)

func main() {
	var (
		addr       string
		position   string
		autoPay    bool
		failOrders bool
	)

	root := &cobra.Command{
		Use:   "controller-sim",
		Short: "Emulate the bill acceptor controller and branch services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

			sim := simulator.New(simulator.Options{
				Position:   position,
				AutoPay:    autoPay,
				FailOrders: failOrders,
			}, logger)

			srv := &http.Server{
				Addr:              addr,
				Handler:           sim.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			logger.Info("controller simulator listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	root.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	root.Flags().StringVar(&position, "position", "table 1", "robot position reported to kiosks")
	root.Flags().BoolVar(&autoPay, "auto-pay", false, "pay the armed amount as soon as the acceptor is activated")
	root.Flags().BoolVar(&failOrders, "fail-orders", false, "make the order service answer 500")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
