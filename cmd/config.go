package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/tanpawarit/outfitters-agent/agent/agents/oracle"
	"github.com/tanpawarit/outfitters-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	llmx "github.com/tanpawarit/outfitters-agent/agent/llm"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
	configx "github.com/tanpawarit/outfitters-agent/pkg/config"
	"github.com/tanpawarit/outfitters-agent/pkg/telemetry"
	"github.com/tanpawarit/outfitters-agent/store"
)

const (
	DataSourceFile     = "file"
	DataSourcePostgres = "postgres"
	DataSourceHTTP     = "http"
)

type AppConfig struct {
	DataSource         string        `envconfig:"DATA_SOURCE" split_words:"true" default:"file"`
	DataDir            string        `envconfig:"DATA_DIR" split_words:"true" default:"data"`
	DataAPIURL         string        `envconfig:"DATA_API_URL" split_words:"true" default:"http://localhost:8000"`
	Addr               string        `envconfig:"ADDR" default:":8000"`
	HistoryWindow      int           `envconfig:"HISTORY_WINDOW" split_words:"true" default:"10"`
	OracleTimeout      time.Duration `envconfig:"ORACLE_TIMEOUT" split_words:"true" default:"20s"`
	DataTimeout        time.Duration `envconfig:"DATA_TIMEOUT" split_words:"true" default:"10s"`
	PromotionTimezone  string        `envconfig:"PROMOTION_TIMEZONE" split_words:"true" default:"America/Los_Angeles"`
	PromotionStartHour int           `envconfig:"PROMOTION_START_HOUR" split_words:"true" default:"8"`
	PromotionEndHour   int           `envconfig:"PROMOTION_END_HOUR" split_words:"true" default:"10"`
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" split_words:"true" default:"2h"`
	SweepInterval      time.Duration `envconfig:"SWEEP_INTERVAL" split_words:"true" default:"5m"`
}

func (c AppConfig) Validate() error {
	switch c.DataSource {
	case DataSourceFile, DataSourcePostgres, DataSourceHTTP:
	default:
		return fmt.Errorf("%w: unknown data source %q (want file, postgres or http)", contractx.ErrValidation, c.DataSource)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("%w: history window must be positive", contractx.ErrValidation)
	}
	if c.OracleTimeout <= 0 || c.DataTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", contractx.ErrValidation)
	}
	return nil
}

func loadAppConfig() (*AppConfig, error) {
	cfg, err := configx.New[AppConfig]("AGENT")
	if err != nil {
		return nil, err
	}
	cfg.DataSource = strings.ToLower(strings.TrimSpace(cfg.DataSource))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// dataSource is what every command needs from a backend, plus cleanup.
type dataSource struct {
	contractx.DataSource
	close func() error
}

func openDataSource(cfg AppConfig) (*dataSource, error) {
	switch cfg.DataSource {
	case DataSourcePostgres:
		pgCfg, err := configx.New[store.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, err
		}
		pg, err := store.OpenPostgres(*pgCfg)
		if err != nil {
			return nil, err
		}
		return &dataSource{DataSource: pg, close: pg.Close}, nil
	case DataSourceHTTP:
		client, err := store.NewHTTPClient(cfg.DataAPIURL, store.WithRequestTimeout(cfg.DataTimeout))
		if err != nil {
			return nil, err
		}
		return &dataSource{DataSource: client, close: func() error { return nil }}, nil
	default:
		fs, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return &dataSource{DataSource: fs, close: func() error { return nil }}, nil
	}
}

func (d *dataSource) Close() error {
	return d.close()
}

// tracing is the part of the telemetry provider the runtime owns.
type tracing interface {
	Tracer(name string) trace.Tracer
	Shutdown(ctx context.Context) error
}

// agentRuntime bundles everything a conversation needs.
type agentRuntime struct {
	orchestrator *orchestrator.Orchestrator
	sessions     *statex.MemoryStore
	data         *dataSource
	telemetry    tracing
}

func newAgentRuntime(ctx context.Context, cfg AppConfig) (*agentRuntime, error) {
	otelCfg, err := configx.New[telemetry.Config]("OTEL")
	if err != nil {
		return nil, err
	}
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}
	tp, err := telemetry.NewProvider(ctx, *otelCfg)
	if err != nil {
		return nil, err
	}

	rt, err := assembleRuntime(ctx, cfg, tp, func(ctx context.Context) (contractx.Oracle, error) {
		return oracle.NewFromConfig(ctx, *llmCfg)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("data_source", cfg.DataSource).
		Str("model", llmCfg.Model).
		Int("history_window", cfg.HistoryWindow).
		Msg("agent ready")
	return rt, nil
}

// assembleRuntime takes ownership of tp: it is shut down when any later
// step fails.
func assembleRuntime(
	ctx context.Context,
	cfg AppConfig,
	tp tracing,
	newOracle func(context.Context) (contractx.Oracle, error),
) (rt *agentRuntime, err error) {
	var data *dataSource
	defer func() {
		if err == nil {
			return
		}
		if data != nil {
			_ = data.Close()
		}
		if serr := tp.Shutdown(context.WithoutCancel(ctx)); serr != nil {
			log.Warn().Err(serr).Msg("shutdown telemetry")
		}
	}()

	lang, err := newOracle(ctx)
	if err != nil {
		return nil, err
	}
	data, err = openDataSource(cfg)
	if err != nil {
		return nil, err
	}

	sessions := statex.NewMemoryStore(statex.WithTTL(cfg.SessionTTL))
	orc, err := orchestrator.New(sessions, lang, data, orchestrator.Config{
		HistoryWindow:      cfg.HistoryWindow,
		OracleTimeout:      cfg.OracleTimeout,
		DataTimeout:        cfg.DataTimeout,
		PromotionTimezone:  cfg.PromotionTimezone,
		PromotionStartHour: cfg.PromotionStartHour,
		PromotionEndHour:   cfg.PromotionEndHour,
		Tracer:             tp.Tracer("outfitters-agent"),
	})
	if err != nil {
		return nil, err
	}
	return &agentRuntime{orchestrator: orc, sessions: sessions, data: data, telemetry: tp}, nil
}

func (r *agentRuntime) Close(ctx context.Context) {
	if err := r.data.Close(); err != nil {
		log.Warn().Err(err).Msg("close data source")
	}
	if err := r.telemetry.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown telemetry")
	}
}
