// Package agent turns retrieved catalog context and a shopper's question into
// an answer. It wires a fixed prompt template and the configured chat model
// into a compiled Eino chain; the template confines the model to the product
// data it is given.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/shopai-go/internal/budget"
	"github.com/54b3r/shopai-go/internal/logging"
)

// ErrGenerationFailure wraps every language-model error.
var ErrGenerationFailure = errors.New("agent: generation failure")

// promptTemplate is the instruction sent with every question. {context} and
// {question} are substituted verbatim.
const promptTemplate = `
You are an electronics shopping assistant.

STRICT RULES:
- Use ONLY the provided product dataset
- Do NOT invent products, prices, or specifications
- Do NOT give general shopping advice
- Answer ONLY from the dataset
- If the product or information is not found, say:
  "This information is not available in the dataset."

Product dataset:
{context}

User question:
{question}
`

// Config holds the dependencies required to construct a ShoppingAgent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// MaxContextTokens is the estimated prompt size above which a warning is
	// logged. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// ShoppingAgent answers questions from supplied catalog context.
// It is safe for concurrent use.
type ShoppingAgent struct {
	// template renders the prompt messages.
	template prompt.ChatTemplate

	// chain is the compiled template | model pipeline.
	chain compose.Runnable[map[string]any, *schema.Message]

	// maxContextTokens is the prompt size warning threshold.
	maxContextTokens int
}

// New compiles the answer chain once for the given model.
func New(ctx context.Context, cfg *Config) (*ShoppingAgent, error) {
	if cfg == nil || cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}

	tpl := prompt.FromMessages(schema.FString, schema.UserMessage(promptTemplate))

	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(cfg.ChatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to compile answer chain: %w", err)
	}

	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &ShoppingAgent{
		template:         tpl,
		chain:            chain,
		maxContextTokens: maxCtx,
	}, nil
}

// Render returns the prompt messages that Answer would send for the given
// context and question.
func (a *ShoppingAgent) Render(ctx context.Context, catalogContext, question string) ([]*schema.Message, error) {
	msgs, err := a.template.Format(ctx, variables(catalogContext, question))
	if err != nil {
		return nil, fmt.Errorf("agent: render prompt: %w", err)
	}
	return msgs, nil
}

// Answer runs the chain synchronously and returns the model's reply
// unmodified.
func (a *ShoppingAgent) Answer(ctx context.Context, catalogContext, question string) (string, error) {
	a.checkBudget(ctx, catalogContext, question)

	msg, err := a.chain.Invoke(ctx, variables(catalogContext, question))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: model returned no message", ErrGenerationFailure)
	}
	return msg.Content, nil
}

// AnswerStream runs the chain in streaming mode, writing each content chunk
// to w as it arrives, and returns the full reply.
func (a *ShoppingAgent) AnswerStream(ctx context.Context, catalogContext, question string, w io.Writer) (string, error) {
	a.checkBudget(ctx, catalogContext, question)

	sr, err := a.chain.Stream(ctx, variables(catalogContext, question))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: stream receive: %w", ErrGenerationFailure, err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		buf.WriteString(msg.Content)
		if _, err := io.WriteString(w, msg.Content); err != nil {
			return "", fmt.Errorf("agent: write error: %w", err)
		}
	}
	return buf.String(), nil
}

// checkBudget logs the estimated prompt size and warns when it is over budget.
func (a *ShoppingAgent) checkBudget(ctx context.Context, catalogContext, question string) {
	log := logging.FromContext(ctx)
	msgs, err := a.Render(ctx, catalogContext, question)
	if err != nil {
		log.Debug("budget: could not render prompt for estimate", slog.Any("error", err))
		return
	}
	tokens, over := budget.Exceeds(msgs, a.maxContextTokens)
	if over {
		log.Warn("budget: prompt exceeds context budget",
			slog.Int("estimated_tokens", tokens),
			slog.Int("max_tokens", a.maxContextTokens),
		)
		return
	}
	log.Debug("budget: prompt size", slog.Int("estimated_tokens", tokens))
}

func variables(catalogContext, question string) map[string]any {
	return map[string]any{
		"context":  catalogContext,
		"question": question,
	}
}
