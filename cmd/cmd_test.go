package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tanpawarit/outfitters-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
	"github.com/tanpawarit/outfitters-agent/store"
)

type scriptedAgent struct {
	inputs []string
}

func (a *scriptedAgent) HandleMessage(ctx context.Context, sessionID, text string) (orchestrator.TurnResult, error) {
	a.inputs = append(a.inputs, text)
	reply := "Welcome!"
	if text != "" {
		reply = "you said " + text
	}
	return orchestrator.TurnResult{SessionID: sessionID, Reply: reply, Phase: statex.PhaseIntentDetection}, nil
}

func TestChatLoop(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{}
	in := strings.NewReader("where is my order?\n\n  \nBYE\nnever sent\n")
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), agent, "s-1", in, &out))
	assert.Equal(t, []string{"", "where is my order?"}, agent.inputs)
	assert.Contains(t, out.String(), "Agent: Welcome!")
	assert.Contains(t, out.String(), "Agent: you said where is my order?")
	assert.Contains(t, out.String(), "Happy trails")
}

func TestChatLoopEOF(t *testing.T) {
	t.Parallel()

	agent := &scriptedAgent{}
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), agent, "s-2", strings.NewReader("hello"), &out))
	assert.Equal(t, []string{"", "hello"}, agent.inputs)
}

func TestIsExit(t *testing.T) {
	t.Parallel()

	for _, w := range []string{"exit", "Quit", " bye "} {
		assert.True(t, isExit(w), w)
	}
	assert.False(t, isExit("goodbye"))
}

func TestAppConfigValidate(t *testing.T) {
	t.Parallel()

	ok := AppConfig{DataSource: DataSourceFile, HistoryWindow: 10, OracleTimeout: time.Second, DataTimeout: time.Second}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.DataSource = "mongo"
	assert.True(t, errors.Is(bad.Validate(), contractx.ErrValidation))

	bad = ok
	bad.HistoryWindow = 0
	assert.True(t, errors.Is(bad.Validate(), contractx.ErrValidation))

	bad = ok
	bad.DataTimeout = 0
	assert.True(t, errors.Is(bad.Validate(), contractx.ErrValidation))
}

// Not parallel: reads the process environment.
func TestLoadAppConfigFromEnv(t *testing.T) {
	t.Setenv("AGENT_DATA_SOURCE", " HTTP ")
	t.Setenv("AGENT_HISTORY_WINDOW", "6")
	t.Setenv("AGENT_ORACLE_TIMEOUT", "3s")

	cfg, err := loadAppConfig()
	require.NoError(t, err)
	assert.Equal(t, DataSourceHTTP, cfg.DataSource)
	assert.Equal(t, 6, cfg.HistoryWindow)
	assert.Equal(t, 3*time.Second, cfg.OracleTimeout)
	assert.Equal(t, 10*time.Second, cfg.DataTimeout)
	assert.Equal(t, "America/Los_Angeles", cfg.PromotionTimezone)
	assert.Equal(t, 8, cfg.PromotionStartHour)
	assert.Equal(t, 10, cfg.PromotionEndHour)
}

func TestCheckDataSourceFile(t *testing.T) {
	t.Parallel()

	cfg := AppConfig{DataSource: DataSourceFile, DataDir: filepath.Join("..", "data")}
	require.NoError(t, checkDataSource(context.Background(), cfg))

	cfg.DataDir = t.TempDir()
	assert.True(t, errors.Is(checkDataSource(context.Background(), cfg), contractx.ErrDataUnavailable))
}

func TestRunChecksReportsEveryResult(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := runChecks(context.Background(), &out, []envCheck{
		{name: "first", run: func(context.Context) error { return nil }},
		{name: "second", run: func(context.Context) error { return errors.New("no key") }},
	})
	assert.True(t, errors.Is(err, errEnvCheckFailed))
	assert.Contains(t, out.String(), "✓ first")
	assert.Contains(t, out.String(), "✗ second: no key")
}

type fakeSeedTarget struct {
	pingErr  error
	created  bool
	orders   []contractx.Order
	products []contractx.Product
}

func (f *fakeSeedTarget) Ping(context.Context) error { return f.pingErr }

func (f *fakeSeedTarget) CreateTables(context.Context) error {
	f.created = true
	return nil
}

func (f *fakeSeedTarget) Seed(_ context.Context, orders []contractx.Order, products []contractx.Product) error {
	f.orders, f.products = orders, products
	return nil
}

func TestSeedPostgres(t *testing.T) {
	t.Parallel()

	files, err := store.NewFileStore(filepath.Join("..", "data"))
	require.NoError(t, err)

	target := &fakeSeedTarget{}
	require.NoError(t, seedPostgres(context.Background(), files, target))
	assert.True(t, target.created)
	assert.Len(t, target.orders, 5)
	assert.Len(t, target.products, 8)

	down := &fakeSeedTarget{pingErr: errors.New("connection refused")}
	err = seedPostgres(context.Background(), files, down)
	assert.True(t, errors.Is(err, contractx.ErrDataUnavailable))
	assert.False(t, down.created)
}

func TestOpenDataSourceHTTPRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := openDataSource(AppConfig{DataSource: DataSourceHTTP, DataAPIURL: "not a url", DataTimeout: time.Second})
	assert.True(t, errors.Is(err, contractx.ErrValidation))
}

type recordingTracing struct {
	shutdowns int
}

func (r *recordingTracing) Tracer(name string) trace.Tracer {
	return noop.NewTracerProvider().Tracer(name)
}

func (r *recordingTracing) Shutdown(context.Context) error {
	r.shutdowns++
	return nil
}

type silentOracle struct{}

func (silentOracle) ClassifyIntent(context.Context, []statex.Turn, statex.Intent) (statex.Intent, error) {
	return statex.IntentNone, nil
}

func (silentOracle) ExtractOrderSlots(context.Context, []statex.Turn) (contractx.OrderSlots, error) {
	return contractx.OrderSlots{}, nil
}

func (silentOracle) HasSufficientProductContext(context.Context, []statex.Turn) (bool, error) {
	return false, nil
}

func (silentOracle) GenerateGroundedReply(context.Context, []statex.Turn, []contractx.Product) (string, error) {
	return "", nil
}

func TestAssembleRuntimeShutsDownTelemetryOnFailure(t *testing.T) {
	t.Parallel()

	valid := AppConfig{
		DataSource:    DataSourceFile,
		DataDir:       filepath.Join("..", "data"),
		HistoryWindow: 10,
		OracleTimeout: time.Second,
		DataTimeout:   time.Second,
	}
	okOracle := func(context.Context) (contractx.Oracle, error) { return silentOracle{}, nil }

	tp := &recordingTracing{}
	_, err := assembleRuntime(context.Background(), valid, tp, func(context.Context) (contractx.Oracle, error) {
		return nil, errors.New("missing api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, tp.shutdowns, "oracle failure")

	tp = &recordingTracing{}
	badData := valid
	badData.DataSource = DataSourceHTTP
	badData.DataAPIURL = "not a url"
	_, err = assembleRuntime(context.Background(), badData, tp, okOracle)
	assert.True(t, errors.Is(err, contractx.ErrValidation))
	assert.Equal(t, 1, tp.shutdowns, "data source failure")

	tp = &recordingTracing{}
	badZone := valid
	badZone.PromotionTimezone = "Mars/Olympus_Mons"
	_, err = assembleRuntime(context.Background(), badZone, tp, okOracle)
	assert.True(t, errors.Is(err, contractx.ErrValidation))
	assert.Equal(t, 1, tp.shutdowns, "orchestrator failure")

	tp = &recordingTracing{}
	rt, err := assembleRuntime(context.Background(), valid, tp, okOracle)
	require.NoError(t, err)
	assert.Zero(t, tp.shutdowns)
	rt.Close(context.Background())
	assert.Equal(t, 1, tp.shutdowns)
}
