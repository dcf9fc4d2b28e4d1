package oracle

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
)

// Every oracle graph renders the same message layout: system prompt, the
// conversation window, then a final user message carrying the task input.
func conversationTemplate(systemPrompt string) einoprompt.ChatTemplate {
	return einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder("history", false),
		schema.UserMessage("{input}"),
	)
}

func compileStructuredLLMGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", conversationTemplate(systemPrompt)); err != nil {
		return nil, fmt.Errorf("add structured prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add structured model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add structured parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add structured edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add structured edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add structured edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add structured edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile structured graph: %w", err)
	}
	return runner, nil
}

func compileTextLLMGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", conversationTemplate(systemPrompt)); err != nil {
		return nil, fmt.Errorf("add text prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add text model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add text edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add text edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add text edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile text graph: %w", err)
	}
	return runner, nil
}

// toolCallGraph forces the model to answer through a single function tool
// whose parameters are derived from T, then decodes the call arguments.
type toolCallGraph[T any] struct {
	runner compose.Runnable[map[string]any, T]
	tool   *schema.ToolInfo
}

func compileToolCallGraph[T any](
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	toolName string,
	toolDesc string,
	graphName string,
) (*toolCallGraph[T], error) {
	info, err := utils.GoStruct2ToolInfo[T](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info: %w", err)
	}
	toolModel, err := chatModel.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		return nil, fmt.Errorf("bind tool %s: %w", toolName, err)
	}

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", conversationTemplate(systemPrompt)); err != nil {
		return nil, fmt.Errorf("add tool prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", toolModel); err != nil {
		return nil, fmt.Errorf("add tool model node: %w", err)
	}
	if err := graph.AddLambdaNode("decode_args",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (T, error) {
			var out T
			if msg == nil || len(msg.ToolCalls) == 0 {
				return out, fmt.Errorf("%w: no tool call in model response", contractx.ErrSchemaViolation)
			}
			if err := sonic.UnmarshalString(msg.ToolCalls[0].Function.Arguments, &out); err != nil {
				return out, fmt.Errorf("%w: decode tool arguments: %v", contractx.ErrSchemaViolation, err)
			}
			return out, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add tool decode node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add tool edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add tool edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "decode_args"); err != nil {
		return nil, fmt.Errorf("add tool edge model->decode: %w", err)
	}
	if err := graph.AddEdge("decode_args", compose.END); err != nil {
		return nil, fmt.Errorf("add tool edge decode->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile tool graph: %w", err)
	}
	return &toolCallGraph[T]{runner: runner, tool: info}, nil
}

func (g *toolCallGraph[T]) Invoke(ctx context.Context, vars map[string]any) (T, error) {
	return g.runner.Invoke(ctx, vars, compose.WithChatModelOption(
		einomodel.WithToolChoice(schema.ToolChoiceForced, g.tool.Name),
	))
}
