// Package llm adapts the OpenAI-compatible chat API to the Responder
// contract used by the chat pipeline.
package llm

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/vndang/shoptalk/agent/contract"
)

// OpenAIResponder drives chat completions against any OpenAI-compatible
// endpoint. The client is typically built by pkg/openrouter.
type OpenAIResponder struct {
	client      *openaisdk.Client
	model       string
	maxTokens   *int
	temperature float64
}

var _ contractx.Responder = (*OpenAIResponder)(nil)

func NewOpenAIResponder(client *openaisdk.Client, model string, maxTokens *int, temperature float64) (*OpenAIResponder, error) {
	if client == nil {
		return nil, fmt.Errorf("openai client is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	return &OpenAIResponder{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

func (r *OpenAIResponder) params(messages []contractx.Message) openaisdk.ChatCompletionNewParams {
	converted := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			converted = append(converted, openaisdk.SystemMessage(msg.Content))
		case "assistant":
			converted = append(converted, openaisdk.AssistantMessage(msg.Content))
		default:
			converted = append(converted, openaisdk.UserMessage(msg.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Messages:    converted,
		Model:       openaisdk.ChatModel(r.model),
		Temperature: openaisdk.Float(r.temperature),
	}
	if r.maxTokens != nil {
		params.MaxCompletionTokens = openaisdk.Int(int64(*r.maxTokens))
	}
	return params
}

func (r *OpenAIResponder) Respond(ctx context.Context, messages []contractx.Message) (contractx.Reply, error) {
	completion, err := r.client.Chat.Completions.New(ctx, r.params(messages))
	if err != nil {
		return contractx.Reply{}, fmt.Errorf("%w: %v", contractx.ErrModelResponse, err)
	}
	if len(completion.Choices) == 0 {
		return contractx.Reply{}, fmt.Errorf("%w: empty choices", contractx.ErrModelResponse)
	}

	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return contractx.Reply{}, fmt.Errorf("%w: empty content", contractx.ErrModelResponse)
	}

	return contractx.Reply{
		Content:    content,
		TokensUsed: completion.Usage.TotalTokens,
		ModelName:  r.model,
	}, nil
}

func (r *OpenAIResponder) RespondStream(ctx context.Context, messages []contractx.Message, emit func(chunk string)) (contractx.Reply, error) {
	stream := r.client.Chat.Completions.NewStreaming(ctx, r.params(messages))

	var builder strings.Builder
	var tokens int64
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			tokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		builder.WriteString(delta)
		if emit != nil {
			emit(delta)
		}
	}
	if err := stream.Err(); err != nil {
		log.Warn().Err(err).Str("model", r.model).Msg("completion stream failed")
		return contractx.Reply{}, fmt.Errorf("%w: %v", contractx.ErrModelResponse, err)
	}

	content := builder.String()
	if strings.TrimSpace(content) == "" {
		return contractx.Reply{}, fmt.Errorf("%w: empty streamed content", contractx.ErrModelResponse)
	}

	return contractx.Reply{
		Content:    content,
		TokensUsed: tokens,
		ModelName:  r.model,
	}, nil
}
