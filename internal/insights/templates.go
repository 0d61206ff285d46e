package insights

import (
	"fmt"
	"strings"
)

// Template is a chunk prompt. {data} is replaced by the chunk's records as a
// JSON array and {description} by the truncated dataset description.
type Template string

const (
	dataPlaceholder        = "{data}"
	descriptionPlaceholder = "{description}"
)

// Render substitutes the placeholders in a single pass, so text inside data or
// description is never expanded again.
func (t Template) Render(data, description string) string {
	return strings.NewReplacer(dataPlaceholder, data, descriptionPlaceholder, description).Replace(string(t))
}

// Validate checks that the template embeds the chunk data.
func (t Template) Validate() error {
	if !strings.Contains(string(t), dataPlaceholder) {
		return fmt.Errorf("template is missing %s", dataPlaceholder)
	}
	return nil
}

// TemplateSet holds the three chunk prompts used by one domain's chain.
type TemplateSet struct {
	Trends      Template
	Anomalies   Template
	Predictions Template
}

// For returns the template for kind.
func (s TemplateSet) For(kind Kind) Template {
	switch kind {
	case Trends:
		return s.Trends
	case Anomalies:
		return s.Anomalies
	case Predictions:
		return s.Predictions
	}
	return ""
}

// Validate checks all three templates.
func (s TemplateSet) Validate() error {
	for _, k := range Kinds {
		if err := s.For(k).Validate(); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

// Templates associates each domain with its chain of prompts. The Unknown entry
// is the generic set used for any domain without one of its own.
type Templates map[Domain]TemplateSet

// Lookup returns the set for d, falling back to the Unknown entry and then to
// the built-in generic prompts.
func (t Templates) Lookup(d Domain) TemplateSet {
	if set, ok := t[d]; ok {
		return set
	}
	if set, ok := t[Unknown]; ok {
		return set
	}
	return genericTemplates
}

// Validate checks every set in the table.
func (t Templates) Validate() error {
	for d, set := range t {
		if err := set.Validate(); err != nil {
			return fmt.Errorf("templates for %s: %w", d, err)
		}
	}
	return nil
}

// DefaultTemplates returns a fresh copy of the built-in prompt table.
func DefaultTemplates() Templates {
	return Templates{
		Finance:    financeTemplates,
		HR:         hrTemplates,
		Operations: operationsTemplates,
		Sales:      salesTemplates,
		Retail:     retailTemplates,
		Unknown:    genericTemplates,
	}
}

func chunkPrompt(task, returnShape string) Template {
	return Template(task + "\nData: {data}\nDescription: {description}\nReturn: " + returnShape)
}

var financeTemplates = TemplateSet{
	Trends: chunkPrompt(
		"Analyze financial data for 2-3 key trends, e.g., revenue growth, expense patterns, ROI, cash flow changes.\n"+
			"Include quantitative metrics where possible (e.g., 'Revenue grew 12% YoY').",
		`{"trends": ["Trend 1 with metric", "Trend 2"]}`),
	Anomalies: chunkPrompt(
		"Detect 1-2 financial anomalies, e.g., unusual expense spikes, budget overruns, irregular cash flows.\n"+
			"Explain potential causes.",
		`{"anomalies": ["Anomaly 1 explanation", "Anomaly 2"]}`),
	Predictions: chunkPrompt(
		"Generate 1-2 financial predictions/recommendations, e.g., forecast revenue, suggest cost cuts, risk assessments.",
		`{"predictions": ["Prediction 1", "Prediction 2"]}`),
}

var hrTemplates = TemplateSet{
	Trends: chunkPrompt(
		"Analyze HR data for 2-3 key trends, e.g., employee turnover rates, hiring patterns, salary progression,\n"+
			"performance ratings distribution, training completion rates, diversity metrics.\n"+
			"Include quantitative insights where possible.",
		`{"trends": ["HR trend 1 with metric", "HR trend 2"]}`),
	Anomalies: chunkPrompt(
		"Detect 1-2 HR anomalies, e.g., sudden turnover spikes in specific departments, unusual hiring patterns,\n"+
			"salary disparities, performance rating inconsistencies.",
		`{"anomalies": ["HR anomaly 1 explanation", "HR anomaly 2"]}`),
	Predictions: chunkPrompt(
		"Generate 1-2 HR predictions/recommendations, e.g., forecast hiring needs, retention strategies.",
		`{"predictions": ["HR prediction 1", "HR prediction 2"]}`),
}

var operationsTemplates = TemplateSet{
	Trends: chunkPrompt(
		"Analyze operations data for 2-3 key trends, e.g., production efficiency, supply chain performance, downtime.",
		`{"trends": ["Operations trend 1 with metric", "Operations trend 2"]}`),
	Anomalies: chunkPrompt(
		"Detect 1-2 operations anomalies, e.g., unexpected equipment failures, supply chain disruptions.",
		`{"anomalies": ["Operations anomaly 1 explanation", "Operations anomaly 2"]}`),
	Predictions: chunkPrompt(
		"Generate 1-2 operations predictions/recommendations, e.g., maintenance scheduling, capacity forecasts.",
		`{"predictions": ["Operations prediction 1", "Operations prediction 2"]}`),
}

var salesTemplates = TemplateSet{
	Trends: chunkPrompt(
		"Analyze sales data for 2-3 key trends, e.g., revenue growth, conversion rates, product performance.",
		`{"trends": ["Sales trend 1 with metric", "Sales trend 2"]}`),
	Anomalies: chunkPrompt(
		"Detect 1-2 sales anomalies, e.g., sudden drops in specific products/regions, unusual customer behavior.",
		`{"anomalies": ["Sales anomaly 1 explanation", "Sales anomaly 2"]}`),
	Predictions: chunkPrompt(
		"Generate 1-2 sales predictions/recommendations, e.g., forecast revenue, pricing recommendations.",
		`{"predictions": ["Sales prediction 1", "Sales prediction 2"]}`),
}

var retailTemplates = TemplateSet{
	Trends: chunkPrompt(
		"Analyze retail data for 2-3 key trends, e.g., inventory turnover, customer footfall, product performance.",
		`{"trends": ["Retail trend 1 with metric", "Retail trend 2"]}`),
	Anomalies: chunkPrompt(
		"Detect 1-2 retail anomalies, e.g., stockouts, slow-moving inventory, unusual customer patterns.",
		`{"anomalies": ["Retail anomaly 1 explanation", "Retail anomaly 2"]}`),
	Predictions: chunkPrompt(
		"Generate 1-2 retail predictions/recommendations, e.g., inventory optimization, demand forecasting.",
		`{"predictions": ["Retail prediction 1", "Retail prediction 2"]}`),
}

var genericTemplates = TemplateSet{
	Trends: chunkPrompt(
		"Identify 2-3 key trends in the data. Look for patterns, growth/decline, changes over time,\n"+
			"distributions, or notable characteristics in the dataset.",
		`{"trends": ["Generic trend 1", "Generic trend 2"]}`),
	Anomalies: chunkPrompt(
		"Detect 1-2 anomalies or outliers in the data.",
		`{"anomalies": ["Generic anomaly 1", "Generic anomaly 2"]}`),
	Predictions: chunkPrompt(
		"Generate 1-2 predictions or recommendations based on the data patterns.",
		`{"predictions": ["Generic prediction 1", "Generic prediction 2"]}`),
}
