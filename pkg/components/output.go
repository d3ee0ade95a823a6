package components

import (
	"context"

	"github.com/genstack/genstack/pkg/models"
)

// EmptyResult is the final text of an execution whose path never produced
// generated text (for example a user_query -> output chain). The engine still
// completes and reports a full trace in that case.
const EmptyResult = "Workflow executed but no response generated"

// Output formats the final result: it copies the generated text (or the
// empty-result marker) and attaches the collected sources. It never fails.
type Output struct{}

func (o *Output) Execute(_ context.Context, node *models.Node, ec models.ExecutionContext) (models.ExecutionContext, error) {
	cfg, err := models.OutputConfigFrom(node)
	if err != nil {
		cfg = models.OutputConfig{ShowSources: true}
	}

	if ec.GeneratedText != "" {
		ec.FinalText = ec.GeneratedText
	} else {
		ec.FinalText = EmptyResult
	}

	ec.FinalSources = []string{}
	if cfg.ShowSources && ec.Sources != nil {
		ec.FinalSources = append(ec.FinalSources, ec.Sources...)
	}

	return ec, nil
}
