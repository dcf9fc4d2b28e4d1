package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

type fakeOracle struct {
	intent     statex.Intent
	slots      contractx.OrderSlots
	sufficient bool
	reply      string
	err        error
	block      bool

	lastHistory []statex.Turn
}

func (f *fakeOracle) wait(ctx context.Context) error {
	if !f.block {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeOracle) ClassifyIntent(ctx context.Context, history []statex.Turn, _ statex.Intent) (statex.Intent, error) {
	f.lastHistory = history
	return f.intent, f.wait(ctx)
}

func (f *fakeOracle) ExtractOrderSlots(ctx context.Context, history []statex.Turn) (contractx.OrderSlots, error) {
	f.lastHistory = history
	return f.slots, f.wait(ctx)
}

func (f *fakeOracle) HasSufficientProductContext(ctx context.Context, history []statex.Turn) (bool, error) {
	f.lastHistory = history
	return f.sufficient, f.wait(ctx)
}

func (f *fakeOracle) GenerateGroundedReply(ctx context.Context, history []statex.Turn, _ []contractx.Product) (string, error) {
	f.lastHistory = history
	return f.reply, f.wait(ctx)
}

func newGuard(t *testing.T, o contractx.Oracle, opts Options) *Guard {
	t.Helper()
	nop := zerolog.Nop()
	opts.Logger = &nop
	g, err := New(o, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func newState() *statex.ConversationState {
	st := statex.NewConversationState("s1", time.Now())
	st.Phase = statex.PhaseIntentDetection
	return st
}

func TestNewRequiresOracle(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, Options{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("New(nil) error = %v, want ErrValidation", err)
	}
}

func TestDefaultsOnFailure(t *testing.T) {
	t.Parallel()

	o := &fakeOracle{
		intent:     statex.IntentOrderStatus,
		slots:      contractx.OrderSlots{Email: "a@example.com"},
		sufficient: false,
		reply:      "x",
		err:        errors.New("boom"),
	}
	g := newGuard(t, o, Options{})
	st := newState()
	ctx := context.Background()

	if got := g.ClassifyIntent(ctx, st); got != statex.IntentNone {
		t.Fatalf("ClassifyIntent() = %s, want none", got)
	}
	if got := g.ExtractOrderSlots(ctx, st); got != (contractx.OrderSlots{}) {
		t.Fatalf("ExtractOrderSlots() = %#v, want empty", got)
	}
	if !g.HasSufficientProductContext(ctx, st) {
		t.Fatal("HasSufficientProductContext() = false, want fail-open true")
	}
	if _, err := g.GenerateGroundedReply(ctx, st, nil); err == nil {
		t.Fatal("GenerateGroundedReply() error = nil, want failure")
	}
}

func TestTimeoutMapsToDefault(t *testing.T) {
	t.Parallel()

	o := &fakeOracle{intent: statex.IntentPromotions, block: true}
	g := newGuard(t, o, Options{Timeout: 10 * time.Millisecond})

	start := time.Now()
	if got := g.ClassifyIntent(context.Background(), newState()); got != statex.IntentNone {
		t.Fatalf("ClassifyIntent() = %s, want none", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("call not bounded by timeout, took %s", elapsed)
	}
}

func TestInvalidIntentMapsToNone(t *testing.T) {
	t.Parallel()

	g := newGuard(t, &fakeOracle{intent: statex.Intent(42)}, Options{})
	if got := g.ClassifyIntent(context.Background(), newState()); got != statex.IntentNone {
		t.Fatalf("ClassifyIntent() = %s, want none", got)
	}
}

func TestWindowLimitsHistory(t *testing.T) {
	t.Parallel()

	o := &fakeOracle{intent: statex.IntentPromotions}
	g := newGuard(t, o, Options{Window: 3})
	st := newState()
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		st.Append(statex.RoleUser, text)
	}

	g.ClassifyIntent(context.Background(), st)
	if len(o.lastHistory) != 3 || o.lastHistory[0].Text != "c" {
		t.Fatalf("history passed = %#v, want last 3 turns", o.lastHistory)
	}
}

func TestGroundedReplyIsTrimmed(t *testing.T) {
	t.Parallel()

	g := newGuard(t, &fakeOracle{reply: "  \n "}, Options{})
	out, err := g.GenerateGroundedReply(context.Background(), newState(), nil)
	if err != nil {
		t.Fatalf("GenerateGroundedReply() error = %v", err)
	}
	if out != "" {
		t.Fatalf("GenerateGroundedReply() = %q, want empty", out)
	}
}

func TestExtractTrimsSlots(t *testing.T) {
	t.Parallel()

	g := newGuard(t, &fakeOracle{slots: contractx.OrderSlots{OrderNumber: " #W001 ", Email: "\ta@example.com"}}, Options{})
	got := g.ExtractOrderSlots(context.Background(), newState())
	if got.OrderNumber != "#W001" || got.Email != "a@example.com" {
		t.Fatalf("ExtractOrderSlots() = %#v", got)
	}
}
