package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/faqbot/internal/adapters/driven/auth"
	"github.com/custodia-labs/faqbot/internal/adapters/driving/http"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
	"github.com/custodia-labs/faqbot/internal/metrics"
	"github.com/custodia-labs/faqbot/internal/runtime"
)

func serveCmd(a *app) *cobra.Command {
	var host string
	var port int

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Load the index and run the HTTP API",
		Long: "Loads the persisted index once, then serves questions on POST /ask.\n" +
			"Any initialisation failure aborts startup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	serve.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	serve.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return serve
}

func (a *app) serve(ctx context.Context) error {
	st, err := openStorage(ctx, a.cfg)
	if err != nil {
		a.logger.Error("failed to open index storage", "backend", a.cfg.Storage.Backend, "error", err)
		return err
	}
	defer st.Close()

	m := metrics.New()
	state := runtime.NewState()
	defer state.Close()

	if err := a.initPipeline(ctx, state, st, m); err != nil {
		a.logger.Error("failed to initialise RAG pipeline", "error", err)
		return err
	}

	var authAdapter driven.AuthAdapter
	if a.cfg.Server.AuthSecret != "" {
		authAdapter = auth.NewAdapter(a.cfg.Server.AuthSecret)
		a.logger.Info("bearer token auth enabled on /ask")
	}

	server := http.NewServer(http.Config{
		Host:         a.cfg.Server.Host,
		Port:         a.cfg.Server.Port,
		Version:      version,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}, state, authAdapter, m, st.store, a.logger)

	a.logger.Info("faqbot ready",
		"version", version,
		"backend", st.backend,
		"index", a.cfg.Paths.IndexLocation,
		"addr", server.Addr(),
	)
	return server.Start(ctx)
}
