package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/quantsim/api"
	"github.com/rustyeddy/quantsim/pkg/logging"
	"github.com/rustyeddy/quantsim/sim"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve paper trading sessions over HTTP",
	Long: `Serve opens an HTTP API where clients create isolated paper trading
sessions, push prices, submit orders and read analytics. Fills stream to
websocket clients on /ws/trades. With a SQLite journal, stored backtest
runs are served under /api/backtests.

Example:
  quantsim serve -c quantsim.yaml --addr :9090`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	// sessions share no trade journal; the database only serves runs
	j, db, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	tmpl, err := sessionConfig(cfg, nil)
	if err != nil {
		return err
	}

	log := logging.Component("api")
	opts := api.Options{
		Session: tmpl,
		Hub:     api.NewHub(log.WithField("sub", "hub")),
		Log:     log,
	}
	if db != nil {
		opts.Runs = db
	}
	srv := api.NewServer(sim.NewArena(), opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go opts.Hub.Run(ctx)

	hs := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "symbol": cfg.Market.Symbol}).Info("listening")
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}
