package main

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/billsplit/internal/api"
	"github.com/Veraticus/billsplit/internal/certs"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the bill agents",
		Long: `Serve the people, splits and transactions API together with the chat
normalizer and the bill routing pipeline.

Agents whose address is an http(s) URL are dispatched to over HTTP; every
other agent runs in this process and also accepts envelopes on /submit.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate (overrides server.tls)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	p, err := startPipeline(ctx, store)
	if err != nil {
		return err
	}
	defer p.Close()

	var tlsConfig *tls.Config
	if cfg.Server.TLS {
		tlsConfig, err = certs.NewFileManager(cfg.Server.CertDir, cfg.Server.Hosts...).TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		slog.Info("🔒 Serving HTTPS", "cert_dir", cfg.Server.CertDir, "hosts", cfg.Server.Hosts)
	}

	server, err := api.NewServer(api.Deps{
		Storage:   store,
		Chat:      p.normalizer,
		Bills:     p.router,
		Responses: p.responses,
		Submit:    p.submit,
		Logger:    slog.Default(),
		TLS:       tlsConfig,
	})
	if err != nil {
		return err
	}

	slog.Info("Starting billsplit", "addr", cfg.Server.Addr, "database", store.Path())
	return server.Serve(ctx, cfg.Server.Addr)
}
