package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/genstack/genstack/pkg/generation"
	"github.com/genstack/genstack/pkg/models"
)

const defaultInstruction = "You are a helpful AI assistant."

// LLMEngine assembles the prompt and calls the generation client. Temperature
// is clamped to [0, 1] before the call; out-of-range input is corrected, not
// rejected. One retry on transient failure unless the budget is overridden;
// an invalid model is fatal immediately.
type LLMEngine struct {
	client  generation.Client
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

func (l *LLMEngine) Execute(ctx context.Context, node *models.Node, ec models.ExecutionContext) (models.ExecutionContext, error) {
	cfg, err := models.LLMEngineConfigFrom(node)
	if err != nil {
		return ec, &ExecutionError{NodeID: node.ID, Kind: node.Kind, Cause: err}
	}

	prompt := buildPrompt(cfg.CustomPrompt, ec.RetrievedContext, ec.Query)
	temperature := clampTemperature(cfg.Temperature)

	var text string

	for attempt := 0; ; attempt++ {
		text, err = l.client.Generate(ctx, prompt, cfg.ModelName, temperature)
		if err == nil {
			break
		}

		if !generation.IsTransient(err) {
			return ec, &ExecutionError{
				NodeID: node.ID,
				Kind:   node.Kind,
				Cause:  fmt.Errorf("%w: %w", ErrGenerationRejected, err),
			}
		}

		if attempt == l.retries {
			return ec, &ExecutionError{NodeID: node.ID, Kind: node.Kind, Cause: err}
		}

		l.logger.WarnContext(ctx, "generation failed, retrying",
			"node_id", node.ID, "model", cfg.ModelName, "attempt", attempt+1, "error", err)

		if err := sleep(ctx, l.backoff); err != nil {
			return ec, &ExecutionError{NodeID: node.ID, Kind: node.Kind, Cause: contextCause(err)}
		}
	}

	ec.GeneratedText = text

	return ec, nil
}

// buildPrompt concatenates, in fixed order: the instruction template, a
// labeled context block (omitted entirely when nothing was retrieved), and
// the labeled query block.
func buildPrompt(instruction string, passages []models.Passage, query string) string {
	var b strings.Builder

	if instruction == "" {
		instruction = defaultInstruction
	}

	b.WriteString(instruction)
	b.WriteString("\n\n")

	if len(passages) > 0 {
		texts := make([]string, 0, len(passages))
		for _, passage := range passages {
			texts = append(texts, passage.Text)
		}

		b.WriteString("Context:\n")
		b.WriteString(strings.Join(texts, "\n\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(query)

	return b.String()
}

func clampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}
