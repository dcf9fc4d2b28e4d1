// Package oracle implements the language oracle on top of eino chat models.
package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
	llmx "github.com/tanpawarit/outfitters-agent/agent/llm"
	promptx "github.com/tanpawarit/outfitters-agent/agent/prompt"
	statex "github.com/tanpawarit/outfitters-agent/agent/state"
)

// NoMatch is the token the responder prompt uses for "no catalog product fits".
const NoMatch = "NO_MATCH"

var orderNumberRe = regexp.MustCompile(`^#?W\d+$`)

// Models holds one chat model per capability. The same model may be shared.
type Models struct {
	Classifier  einomodel.BaseChatModel
	Extractor   einomodel.ToolCallingChatModel
	Sufficiency einomodel.BaseChatModel
	Responder   einomodel.BaseChatModel
}

type Oracle struct {
	classifier  compose.Runnable[map[string]any, classifyOutput]
	extractor   *toolCallGraph[extractArgs]
	sufficiency compose.Runnable[map[string]any, *schema.Message]
	responder   compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Oracle = (*Oracle)(nil)

type classifyOutput struct {
	Intent string `json:"intent"`
}

type extractArgs struct {
	OrderNumber string `json:"order_number" jsonschema:"description=Order number stated by the customer such as #W001; empty when not stated"`
	Email       string `json:"email" jsonschema:"description=Email address stated by the customer for the order; empty when not stated"`
}

func New(ctx context.Context, models Models, prompts promptx.PromptSet) (*Oracle, error) {
	if missing := prompts.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, strings.Join(missing, ", "))
	}
	if models.Classifier == nil || models.Extractor == nil || models.Sufficiency == nil || models.Responder == nil {
		return nil, fmt.Errorf("%w: a chat model is required for every capability", contractx.ErrValidation)
	}

	classifier, err := compileStructuredLLMGraph[classifyOutput](ctx, models.Classifier, prompts.Classify, "oracle.classify_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	extractor, err := compileToolCallGraph[extractArgs](ctx, models.Extractor, prompts.Extract,
		"record_order_details", "Record the order number and email the customer stated.", "oracle.extract_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile extractor graph: %v", contractx.ErrModelInvoke, err)
	}
	sufficiency, err := compileTextLLMGraph(ctx, models.Sufficiency, prompts.Sufficiency, "oracle.sufficiency_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile sufficiency graph: %v", contractx.ErrModelInvoke, err)
	}
	responder, err := compileTextLLMGraph(ctx, models.Responder, prompts.Respond, "oracle.respond_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile responder graph: %v", contractx.ErrModelInvoke, err)
	}

	return &Oracle{
		classifier:  classifier,
		extractor:   extractor,
		sufficiency: sufficiency,
		responder:   responder,
	}, nil
}

// NewFromConfig builds one OpenRouter chat model per capability.
func NewFromConfig(ctx context.Context, cfg llmx.Config) (*Oracle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	build := func(capability llmx.Capability) (einomodel.ToolCallingChatModel, error) {
		modelCfg := cfg.OpenRouterFor(capability)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, capability, err)
		}
		return m, nil
	}

	classifier, err := build(llmx.CapabilityClassifier)
	if err != nil {
		return nil, err
	}
	extractor, err := build(llmx.CapabilityExtractor)
	if err != nil {
		return nil, err
	}
	sufficiency, err := build(llmx.CapabilitySufficiency)
	if err != nil {
		return nil, err
	}
	responder, err := build(llmx.CapabilityResponder)
	if err != nil {
		return nil, err
	}

	return New(ctx, Models{
		Classifier:  classifier,
		Extractor:   extractor,
		Sufficiency: sufficiency,
		Responder:   responder,
	}, promptx.LoadPromptSet())
}

func (o *Oracle) ClassifyIntent(ctx context.Context, history []statex.Turn, current statex.Intent) (statex.Intent, error) {
	labels := make([]string, 0, len(statex.KnownIntents())+1)
	for _, i := range statex.KnownIntents() {
		labels = append(labels, i.String())
	}
	labels = append(labels, statex.IntentNone.String())

	input, err := sonic.MarshalString(map[string]any{
		"tracked_intent": current.String(),
		"allowed_labels": labels,
	})
	if err != nil {
		return statex.IntentNone, fmt.Errorf("%w: marshal classify payload: %v", contractx.ErrValidation, err)
	}

	out, err := o.classifier.Invoke(ctx, map[string]any{
		"history": toMessages(history),
		"input":   input,
	})
	if err != nil {
		return statex.IntentNone, fmt.Errorf("%w: classify invoke: %v", contractx.ErrModelInvoke, err)
	}

	intent, ok := statex.ParseIntent(out.Intent)
	if !ok {
		return statex.IntentNone, fmt.Errorf("%w: unknown intent label %q", contractx.ErrSchemaViolation, out.Intent)
	}
	return intent, nil
}

func (o *Oracle) ExtractOrderSlots(ctx context.Context, history []statex.Turn) (contractx.OrderSlots, error) {
	out, err := o.extractor.Invoke(ctx, map[string]any{
		"history": toMessages(history),
		"input":   "Record the order number and email address from the conversation above.",
	})
	if err != nil {
		return contractx.OrderSlots{}, fmt.Errorf("%w: extract invoke: %v", contractx.ErrModelInvoke, err)
	}
	return contractx.OrderSlots{
		OrderNumber: normalizeOrderNumber(out.OrderNumber),
		Email:       normalizeEmail(out.Email),
	}, nil
}

func (o *Oracle) HasSufficientProductContext(ctx context.Context, history []statex.Turn) (bool, error) {
	msg, err := o.sufficiency.Invoke(ctx, map[string]any{
		"history": toMessages(history),
		"input":   "Is there enough detail to search the catalog? Answer yes or no.",
	})
	if err != nil {
		return false, fmt.Errorf("%w: sufficiency invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return false, fmt.Errorf("%w: empty sufficiency response", contractx.ErrSchemaViolation)
	}

	switch strings.Trim(strings.ToLower(strings.TrimSpace(msg.Content)), ".!\"'`") {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: sufficiency answer %q", contractx.ErrSchemaViolation, msg.Content)
	}
}

func (o *Oracle) GenerateGroundedReply(ctx context.Context, history []statex.Turn, catalog []contractx.Product) (string, error) {
	raw, err := sonic.MarshalString(map[string]any{"catalog": catalog})
	if err != nil {
		return "", fmt.Errorf("%w: marshal catalog: %v", contractx.ErrValidation, err)
	}

	msg, err := o.responder.Invoke(ctx, map[string]any{
		"history": toMessages(history),
		"input":   raw,
	})
	if err != nil {
		return "", fmt.Errorf("%w: respond invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty respond message", contractx.ErrSchemaViolation)
	}

	out := strings.TrimSpace(msg.Content)
	if strings.EqualFold(strings.Trim(out, ".`\"'"), NoMatch) {
		return "", nil
	}
	return out, nil
}

func toMessages(history []statex.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case statex.RoleUser:
			out = append(out, schema.UserMessage(turn.Text))
		case statex.RoleAssistant:
			out = append(out, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return out
}

func normalizeOrderNumber(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if !orderNumberRe.MatchString(v) {
		return ""
	}
	if !strings.HasPrefix(v, "#") {
		v = "#" + v
	}
	return v
}

func normalizeEmail(v string) string {
	v = strings.TrimSpace(v)
	if !strings.Contains(v, "@") || strings.ContainsAny(v, " \t") {
		return ""
	}
	return v
}
