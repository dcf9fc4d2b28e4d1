package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/outfitters-agent/pkg/config"
	logx "github.com/tanpawarit/outfitters-agent/pkg/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "outfitters-agent",
	Short: "Sierra Outfitters customer-service agent",
	Long: `outfitters-agent answers order-status questions, recommends catalog
products and hands out the early-riser promotion code. It runs as an
interactive chat or as an HTTP service next to the order and product API.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRootConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")
}

// loadRootConfig applies --env and re-initialises logging from it, since the
// autoload import ran before flags were parsed.
func loadRootConfig(cmd *cobra.Command, _ []string) error {
	configx.SetEnvFile(envFile)
	logCfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		return err
	}
	if cmd.Name() == "chat" {
		logx.InitWriter(os.Stderr, *logCfg)
	} else {
		logx.Init(*logCfg)
	}
	log.Debug().Str("env_file", envFile).Str("command", cmd.Name()).Msg("configuration loaded")
	return nil
}

func setupContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
