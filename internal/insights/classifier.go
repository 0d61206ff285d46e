package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/chunker"
	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	classifySampleRows       = 5
	defaultClassifyMaxTokens = 50
)

// Classifier labels a dataset with one business domain.
type Classifier struct {
	invoker   ai.Invoker
	maxTokens int
	logger    *zap.Logger
}

// NewClassifier builds a classifier. maxTokens <= 0 uses 50.
func NewClassifier(invoker ai.Invoker, maxTokens int, logger *zap.Logger) *Classifier {
	if maxTokens <= 0 {
		maxTokens = defaultClassifyMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{invoker: invoker, maxTokens: maxTokens, logger: logger}
}

type classification struct {
	Type any `json:"type"`
}

// Classify asks the model for a domain label based on the first few records and
// the description. It never fails: any error or unexpected label yields Unknown.
func (c *Classifier) Classify(ctx context.Context, ds *dataset.Dataset, description string) Domain {
	prompt, err := c.prompt(ds, description)
	if err != nil {
		c.logger.Error("Classification failed", zap.Error(err))
		return Unknown
	}
	content, err := c.invoker.Invoke(ctx, prompt, c.maxTokens)
	if err != nil {
		c.logger.Error("Classification failed", zap.Error(err))
		return Unknown
	}
	parsed, err := ai.ParseJSONResponse[classification](content)
	if err != nil {
		c.logger.Warn("Unreadable classification response", zap.Error(err))
		return Unknown
	}
	label, _ := parsed.Type.(string)
	domain := ParseDomain(label)
	c.logger.Info("Classified type", zap.String("type", string(domain)))
	return domain
}

func (c *Classifier) prompt(ds *dataset.Dataset, description string) (string, error) {
	sample, err := classificationSample(ds)
	if err != nil {
		return "", err
	}
	labels := make([]string, 0, len(Domains))
	for _, d := range Domains {
		labels = append(labels, string(d))
	}
	return fmt.Sprintf(
		"Classify the spreadsheet as one of: %s.\n"+
			"Use description and sample data. If unclear, use 'Unknown'.\n\n"+
			"Description: %s\n"+
			"Sample Data (JSON): %s\n\n"+
			`Return: {"type": "Finance"}  # Example; must be exact match`,
		strings.Join(labels, ", "), description, sample), nil
}

// classificationSample renders the first rows, or for an aggregate the first
// field values, as JSON.
func classificationSample(ds *dataset.Dataset) (string, error) {
	if !ds.IsAggregate() || ds.Empty() {
		return chunker.Serialize(ds.Head(classifySampleRows))
	}
	rec := ds.Records()[0]
	keys := rec.Keys()
	if len(keys) > classifySampleRows {
		keys = keys[:classifySampleRows]
	}
	values := make([]any, 0, len(keys))
	for _, k := range keys {
		v, _ := rec.Get(k)
		values = append(values, v)
	}
	b, err := json.MarshalNoEscape(values)
	if err != nil {
		return "", fmt.Errorf("serialize aggregate sample: %w", err)
	}
	return string(b), nil
}
