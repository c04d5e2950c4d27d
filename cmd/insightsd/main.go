// Command insightsd serves Meta marketing reports over HTTP, or renders a
// single report to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/stratdash/meta-insights/internal/config"
	"github.com/stratdash/meta-insights/internal/server"
	"github.com/stratdash/meta-insights/pkg/cache"
	"github.com/stratdash/meta-insights/pkg/dispatch"
	"github.com/stratdash/meta-insights/pkg/graph"
	"github.com/stratdash/meta-insights/pkg/logging"
	"github.com/stratdash/meta-insights/pkg/report"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "insightsd",
		Short:         "Meta marketing insights service",
		Long:          "insightsd aggregates ad, page and Instagram metrics from the Meta Graph API into reports, as a long-running HTTP service or a one-shot CLI.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newReportCommand())
	return root
}

// setup loads configuration, applies logging and builds the assembler.
func setup() (config.Config, *report.Assembler, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	logging.Setup(logging.Config{Level: logging.LogLevel(cfg.LogLevel), Pretty: cfg.LogPretty})

	clientCfg := graph.Config{
		BaseURL:     cfg.GraphBaseURL,
		HTTPTimeout: cfg.HTTPTimeout,
		MinInterval: cfg.MinInterval,
		Retry: graph.RetryConfig{
			MaxRetries:  cfg.MaxRetries,
			BaseBackoff: cfg.BaseBackoff,
			MaxBackoff:  30 * time.Second,
		},
		PageSize: cfg.PageSize,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return config.Config{}, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		clientCfg.Cache = cache.NewStore(redis.NewClient(opts), cfg.CacheTTL)
	}

	client, err := graph.New(clientCfg, cfg.AccessToken)
	if err != nil {
		return config.Config{}, nil, err
	}

	dispatchCfg := dispatch.DefaultConfig()
	dispatchCfg.Workers = cfg.Workers

	assembler := report.New(client, report.Config{Dispatch: dispatchCfg})
	return cfg, assembler, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP reporting service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, assembler, err := setup()
			if err != nil {
				return err
			}

			srv := server.New(server.Config{
				Port:         cfg.Port,
				ReadTimeout:  cfg.ReadTimeout,
				WriteTimeout: cfg.WriteTimeout,
			}, assembler)

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-stop:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}

func newReportCommand() *cobra.Command {
	var (
		accountID string
		period    string
		start     string
		end       string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a single report to stdout",
	}
	cmd.PersistentFlags().StringVar(&accountID, "account", "", "Ad account id (defaults to META_AD_ACCOUNT_ID)")
	cmd.PersistentFlags().StringVar(&period, "period", "", "Symbolic period: 7d, 30d, 90d or 365d")
	cmd.PersistentFlags().StringVar(&start, "start", "", "Range start (YYYY-MM-DD)")
	cmd.PersistentFlags().StringVar(&end, "end", "", "Range end (YYYY-MM-DD)")

	opts := func() report.Options {
		return report.Options{Period: period, Start: start, End: end}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "account",
		Short: "Whole-interval summary and daily series for one ad account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, assembler, err := setup()
			if err != nil {
				return err
			}
			id := accountID
			if id == "" {
				id = cfg.AdAccountID
			}
			if id == "" {
				return fmt.Errorf("no ad account: pass --account or set META_AD_ACCOUNT_ID")
			}

			rep, err := assembler.AccountInsights(cmd.Context(), id, opts())
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "campaigns",
		Short: "Campaign listing with per-campaign metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, assembler, err := setup()
			if err != nil {
				return err
			}
			id := accountID
			if id == "" {
				id = cfg.AdAccountID
			}
			if id == "" {
				return fmt.Errorf("no ad account: pass --account or set META_AD_ACCOUNT_ID")
			}

			rep, err := assembler.Campaigns(cmd.Context(), id, opts())
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "overview",
		Short: "Combined overview across ad accounts, pages and Instagram",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, assembler, err := setup()
			if err != nil {
				return err
			}

			rep, err := assembler.Overview(cmd.Context(), opts())
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	})

	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
