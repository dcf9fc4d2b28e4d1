package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/outfitters-agent/api"
)

var serveChat bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the order and product API",
	Long: `Serves /orders, /products and /products/{sku} from the configured data
source. With --chat the dialogue agent is exposed on POST /chat.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveChat, "chat", true, "expose the dialogue agent on POST /chat")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	var (
		opts []api.Option
		rt   *agentRuntime
		data *dataSource
	)
	if serveChat {
		rt, err = newAgentRuntime(ctx, *cfg)
		if err != nil {
			return err
		}
		defer rt.Close(context.Background())
		data = rt.data
		opts = append(opts, api.WithChat(rt.orchestrator))
	} else {
		data, err = openDataSource(*cfg)
		if err != nil {
			return err
		}
		defer data.Close()
	}

	handler, err := api.New(data, opts...)
	if err != nil {
		return err
	}
	srv := handler.NewHTTPServer(cfg.Addr)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		log.Info().Str("addr", cfg.Addr).Bool("chat", serveChat).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if rt != nil && cfg.SweepInterval > 0 {
		p.Go(func(ctx context.Context) error {
			ticker := time.NewTicker(cfg.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if n := rt.sessions.Sweep(); n > 0 {
						log.Debug().Int("expired", n).Msg("idle sessions swept")
					}
				}
			}
		})
	}
	return p.Wait()
}
