package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/s0up4200/marquee/config"
	"github.com/s0up4200/marquee/gateway"
	"github.com/s0up4200/marquee/resolver"
	"github.com/s0up4200/marquee/tmdb"
)

// serveCmd runs the GraphQL gateway
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the GraphQL gateway",
	Long: `Run the GraphQL gateway in front of TMDB. The TMDB read access token is
taken from tmdb.access_token or the TMDB_ACCESS_TOKEN environment variable.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.ValidateServer(cfg); err != nil {
		logger.Error().Err(err).Msg("Refusing to start without TMDB credentials")
		return err
	}

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	policy, err := resolver.ParseFailurePolicy(cfg.Resolver.FailurePolicy)
	if err != nil {
		return err
	}

	client, err := tmdb.NewClient(cfg.TMDB.BaseURL, cfg.TMDB.AccessToken, logger,
		tmdb.WithTimeout(cfg.TMDB.Timeout),
		tmdb.WithLanguage(cfg.TMDB.Language),
	)
	if err != nil {
		return fmt.Errorf("failed to create TMDB client: %w", err)
	}

	api := tmdb.WithRetry(client, tmdb.RetryConfig{
		MaxAttempts:    cfg.TMDB.Retry.MaxAttempts,
		InitialBackoff: cfg.TMDB.Retry.InitialBackoff,
		MaxBackoff:     cfg.TMDB.Retry.MaxBackoff,
	}, logger)

	res, err := resolver.New(api, policy, logger)
	if err != nil {
		return err
	}

	server, err := gateway.New(gateway.Config{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, res, logger)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("policy", string(policy)).
		Int("retry_attempts", cfg.TMDB.Retry.MaxAttempts).
		Msg("Starting gateway")

	return server.Run(ctx)
}
