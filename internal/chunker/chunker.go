// Package chunker packs dataset records into prompt-sized groups.
package chunker

import (
	"fmt"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/utils"
	"github.com/goccy/go-json"
)

// DefaultTokenBudget is the per-chunk input budget used when none is given.
const DefaultTokenBudget = 8000

// recordPadding accounts for the separator and whitespace between records.
const recordPadding = 2

// Chunk is a contiguous run of records whose serialized size fits the budget,
// unless it holds a single oversized record.
type Chunk struct {
	Index   int
	Records []*dataset.Record
	Chars   int
}

// Len is the number of records in the chunk.
func (c Chunk) Len() int { return len(c.Records) }

// JSON renders the chunk's records as a JSON array for prompt embedding.
func (c Chunk) JSON() (string, error) {
	return Serialize(c.Records)
}

// Serialize renders records as a JSON array, keeping each record's key order.
// Text is not HTML-escaped.
func Serialize(records []*dataset.Record) (string, error) {
	if records == nil {
		records = []*dataset.Record{}
	}
	b, err := json.MarshalNoEscape(records)
	if err != nil {
		return "", fmt.Errorf("serialize records: %w", err)
	}
	return string(b), nil
}

// RecordSize is the estimated prompt footprint of one record in characters.
func RecordSize(r *dataset.Record) (int, error) {
	b, err := json.MarshalNoEscape(r)
	if err != nil {
		return 0, fmt.Errorf("serialize record: %w", err)
	}
	return len([]rune(string(b))) + recordPadding, nil
}

// Split packs records greedily in order. A new chunk starts when adding the next
// record would push the running size past budgetTokens*4 characters and the
// current chunk already holds something. Records are never reordered or split.
// An aggregate dataset becomes one single-record chunk; an empty one yields none.
func Split(ds *dataset.Dataset, budgetTokens int) ([]Chunk, error) {
	if ds.Empty() {
		return nil, nil
	}
	if ds.IsAggregate() {
		size, err := RecordSize(ds.Records()[0])
		if err != nil {
			return nil, err
		}
		return []Chunk{{Index: 0, Records: ds.Records()[:1], Chars: size}}, nil
	}
	if budgetTokens <= 0 {
		budgetTokens = DefaultTokenBudget
	}
	maxChars := utils.CharBudget(budgetTokens)

	var chunks []Chunk
	var window []*dataset.Record
	cur := 0
	for _, r := range ds.Records() {
		size, err := RecordSize(r)
		if err != nil {
			return nil, err
		}
		if cur+size > maxChars && len(window) > 0 {
			chunks = append(chunks, Chunk{Index: len(chunks), Records: window, Chars: cur})
			window = nil
			cur = 0
		}
		window = append(window, r)
		cur += size
	}
	if len(window) > 0 {
		chunks = append(chunks, Chunk{Index: len(chunks), Records: window, Chars: cur})
	}
	return chunks, nil
}

// EstimateTokens converts a character count into the token heuristic.
func EstimateTokens(chars int) int {
	return (chars + utils.CharsPerToken - 1) / utils.CharsPerToken
}
