package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	llmx "github.com/tanpawarit/outfitters-agent/agent/llm"
	configx "github.com/tanpawarit/outfitters-agent/pkg/config"
	openrouterx "github.com/tanpawarit/outfitters-agent/pkg/openrouter"
	"github.com/tanpawarit/outfitters-agent/store"
)

var errEnvCheckFailed = errors.New("environment check failed")

var envCheckCmd = &cobra.Command{
	Use:   "env-check",
	Short: "Check the API key, model and data source",
	RunE:  runEnvCheck,
}

func init() {
	rootCmd.AddCommand(envCheckCmd)
}

type checkFunc func(ctx context.Context) error

type envCheck struct {
	name string
	run  checkFunc
}

func runEnvCheck(cmd *cobra.Command, _ []string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	checks := []envCheck{
		{name: "language model", run: checkLanguageModel},
		{name: "data source (" + cfg.DataSource + ")", run: func(ctx context.Context) error {
			return checkDataSource(ctx, *cfg)
		}},
	}
	return runChecks(ctx, cmd.OutOrStdout(), checks)
}

func runChecks(ctx context.Context, out io.Writer, checks []envCheck) error {
	failed := 0
	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := c.run(checkCtx)
		cancel()
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s\n", c.name)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d checks", errEnvCheckFailed, failed, len(checks))
	}
	return nil
}

func checkLanguageModel(ctx context.Context) error {
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return err
	}
	if err := llmCfg.Validate(); err != nil {
		return err
	}
	return openrouterx.VerifyModel(ctx, llmCfg.OpenRouterFor(llmx.CapabilityClassifier))
}

func checkDataSource(ctx context.Context, cfg AppConfig) error {
	if cfg.DataSource == DataSourceFile {
		for _, name := range []string{store.OrdersFile, store.ProductsFile} {
			path := filepath.Join(cfg.DataDir, name)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("%w: %s", contractx.ErrDataUnavailable, path)
			}
		}
	}

	data, err := openDataSource(cfg)
	if err != nil {
		return err
	}
	defer data.Close()

	products, err := data.ListProducts(ctx, contractx.ProductQuery{})
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("%w: product catalog is empty", contractx.ErrDataUnavailable)
	}
	return nil
}
