package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/dataset"
)

func salesRows(n int) *dataset.Dataset {
	recs := make([]*dataset.Record, n)
	for i := range recs {
		recs[i] = dataset.RecordOf(
			"order_id", i,
			"region", fmt.Sprintf("region-%d", i%3),
			"revenue", float64(100+i),
		)
	}
	return dataset.New(recs...)
}

func isClassifyPrompt(p string) bool { return strings.HasPrefix(p, "Classify the spreadsheet") }
func isMergePrompt(p string) bool    { return strings.HasPrefix(p, "You are an expert") }

// scripted answers classify, chunk and merge prompts with separate functions.
// A nil function fails that call terminally.
type scripted struct {
	classify func(prompt string) (string, error)
	chunk    func(prompt string) (string, error)
	merge    func(prompt string) (string, error)
}

var errTerminal = ai.NewError(ai.ErrorTypeBadRequest, "bad request", false, nil)

func (s scripted) invoker() *ai.MockInvoker {
	call := func(f func(string) (string, error), prompt string) (string, error) {
		if f == nil {
			return "", errTerminal
		}
		return f(prompt)
	}
	return &ai.MockInvoker{
		InvokeFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			switch {
			case isClassifyPrompt(prompt):
				return call(s.classify, prompt)
			case isMergePrompt(prompt):
				return call(s.merge, prompt)
			default:
				return call(s.chunk, prompt)
			}
		},
	}
}

func reply(s string) func(string) (string, error) {
	return func(string) (string, error) { return s, nil }
}

func kindOf(prompt string) Kind {
	for _, k := range Kinds {
		if strings.Contains(prompt, `{"`+string(k)+`"`) {
			return k
		}
	}
	return ""
}
