package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/config"
	"github.com/foresite-ag/foresite-cli/internal/db"
	"github.com/foresite-ag/foresite-cli/internal/mgmt"
	"github.com/foresite-ag/foresite-cli/internal/soil"
	"github.com/foresite-ag/foresite-cli/internal/ssurgo"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "foresite",
	Short: "APSIM simulation input generation",
	Long:  "Builds APSIM soil profiles from SSURGO horizons, expands field management into operations schedules, writes .apsim and .met files and summarizes .out results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connectDB opens the configured Postgres pool.
func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("connected to database", zap.Int32("max_conns", cfg.Database.MaxConns))
	return pool, nil
}

// openSource opens the configured horizon source. The returned func
// releases it.
func openSource(ctx context.Context) (ssurgo.Source, func(), error) {
	switch cfg.Soil.Source {
	case "sqlite":
		src, err := ssurgo.OpenSQLite(cfg.Soil.SQLitePath, cfg.Soil.SQLiteTable)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	case "postgres":
		pool, err := connectDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		return ssurgo.NewPostgresSource(pool, cfg.Database.WeatherTable), pool.Close, nil
	}
	return nil, nil, eris.Errorf("unknown soil source %q", cfg.Soil.Source)
}

// soilOptions merges the soil config with command flag overrides.
func soilOptions(cmd *cobra.Command) soil.Options {
	opts := soil.Options{
		SWIM:        cfg.Soil.SWIM,
		SaxtonRawls: cfg.Soil.SaxtonRawls,
		Crops:       cfg.Soil.Crops,
	}
	if f := cmd.Flags().Lookup("swim"); f != nil && f.Changed {
		opts.SWIM, _ = cmd.Flags().GetBool("swim")
	}
	if f := cmd.Flags().Lookup("saxton-rawls"); f != nil && f.Changed {
		opts.SaxtonRawls, _ = cmd.Flags().GetBool("saxton-rawls")
	}
	return opts
}

// newExpander builds the management expander from config.
func newExpander() (*mgmt.Expander, error) {
	match, err := mgmt.ParseMatchMode(cfg.Mgmt.Match)
	if err != nil {
		return nil, err
	}
	keys := mgmt.DefaultKeys()
	switch cfg.Mgmt.Keys {
	case "", "field":
	case "task":
		keys = mgmt.TaskKeys()
	default:
		return nil, eris.Errorf("unknown mgmt keys %q", cfg.Mgmt.Keys)
	}
	return mgmt.NewExpander(keys, match), nil
}
