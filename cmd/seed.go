package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	configx "github.com/tanpawarit/outfitters-agent/pkg/config"
	"github.com/tanpawarit/outfitters-agent/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the Postgres tables and load the JSON data files",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(_ *cobra.Command, _ []string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	files, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		return err
	}

	pgCfg, err := configx.New[store.PostgresConfig]("POSTGRES")
	if err != nil {
		return err
	}
	pg, err := store.OpenPostgres(*pgCfg)
	if err != nil {
		return err
	}
	defer pg.Close()

	return seedPostgres(ctx, files, pg)
}

type seedTarget interface {
	Ping(ctx context.Context) error
	CreateTables(ctx context.Context) error
	Seed(ctx context.Context, orders []contractx.Order, products []contractx.Product) error
}

func seedPostgres(ctx context.Context, files *store.FileStore, target seedTarget) error {
	if err := target.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping postgres: %v", contractx.ErrDataUnavailable, err)
	}
	if err := target.CreateTables(ctx); err != nil {
		return err
	}
	orders, products := files.Snapshot()
	if err := target.Seed(ctx, orders, products); err != nil {
		return err
	}
	log.Info().Int("orders", len(orders)).Int("products", len(products)).Msg("postgres seeded")
	return nil
}
