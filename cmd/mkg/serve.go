package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/metakg/internal/api"
	"github.com/matsen/metakg/internal/config"
	"github.com/matsen/metakg/internal/ctxlog"
)

const (
	shutdownTimeout = 10 * time.Second
	simulateBurst   = 4
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from global config, "+config.DefaultListenAddr+")")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the graph and the simulator over HTTP",
	Long: `Serve a JSON API under /api: graph queries (stats, resolve, nodes,
compounds, reactions, path) and POST /api/simulate/{fba,ode,whatif}.

Stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	kg, cfg, _ := mustOpenKG(cmd)
	defer kg.Close()

	logger := ctxlog.FromContext(cmd.Context())
	addr := serveAddr
	if addr == "" {
		addr = config.GetListenAddr()
	}

	router := api.NewRouter(kg,
		api.WithLogger(logger),
		api.WithMaxHops(cfg.Hops()),
		api.WithSimulateRate(config.GetSimulateRate(), simulateBurst),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr, "db", kg.Path())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		exitWithErr(err, "serving")
	}
	return nil
}
