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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/catalyst/userkey/internal/api"
	"github.com/catalyst/userkey/internal/audit"
	"github.com/catalyst/userkey/internal/config"
	"github.com/catalyst/userkey/internal/core"
	"github.com/catalyst/userkey/internal/identity"
	"github.com/catalyst/userkey/internal/keys"
	"github.com/catalyst/userkey/internal/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the userkey server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.BaseURL == "" {
			return fmt.Errorf("baseurl must be configured to serve")
		}
		if cfg.APISecret == "" {
			return fmt.Errorf("apisecret must be configured to serve")
		}

		keyStore, err := buildKeyStore(cfg)
		if err != nil {
			return fmt.Errorf("building key store: %w", err)
		}

		auditor, err := buildAuditor(cfg)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Error().Err(err).Msg("closing auditor")
			}
		}()

		ids := identity.NewMemoryStore()
		manager := keys.NewManager(keyStore, ids, keys.Options{
			Lifetime:      cfg.Lifetime(),
			IPRestriction: cfg.IPRestriction,
			Whitelist:     cfg.Whitelist,
		})

		srv := api.NewServer(cfg, manager, keyStore, ids, auditor)

		server := &http.Server{
			Addr:    addr,
			Handler: srv.Routes([]byte(cfg.APISecret)),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func buildKeyStore(cfg *config.Config) (core.KeyStore, error) {
	switch cfg.Store.Type {
	case "", "memory":
		return store.NewMemoryKeyStore(), nil
	case "sqlite":
		return store.NewSQLiteKeyStore(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

func buildAuditor(cfg *config.Config) (core.Auditor, error) {
	if !cfg.Audit.Enabled {
		return audit.NewNoopAuditor(), nil
	}
	switch cfg.Audit.Type {
	case "", "memory":
		return audit.NewInMemoryAuditor(), nil
	case "file":
		return audit.NewFileAuditor(cfg.Audit.Path)
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Audit.Type)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "address to listen on")
}
