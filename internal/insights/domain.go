// Package insights classifies a dataset's business domain and synthesizes
// trends, anomalies and predictions from it through map-reduce prompting.
package insights

import "strings"

// Domain is the business classification of a dataset.
type Domain string

const (
	Finance    Domain = "Finance"
	HR         Domain = "HR"
	Operations Domain = "Operations"
	Sales      Domain = "Sales"
	Retail     Domain = "Retail"
	Unknown    Domain = "Unknown"
)

// Domains lists the labels a classifier may choose, excluding Unknown.
var Domains = []Domain{Finance, HR, Operations, Sales, Retail}

// ParseDomain maps a model label onto a Domain. Matching is exact; anything
// outside the fixed set is Unknown.
func ParseDomain(label string) Domain {
	for _, d := range Domains {
		if string(d) == label {
			return d
		}
	}
	return Unknown
}

// Analyst is the lower-case name used when addressing the model as a domain
// analyst. Unknown maps to "generic".
func (d Domain) Analyst() string {
	if d == Unknown || d == "" {
		return "generic"
	}
	return strings.ToLower(string(d))
}

// Kind is one of the three insight families produced per run.
type Kind string

const (
	Trends      Kind = "trends"
	Anomalies   Kind = "anomalies"
	Predictions Kind = "predictions"
)

// Kinds is the fixed order in which insights are produced.
var Kinds = []Kind{Trends, Anomalies, Predictions}

// failurePlaceholder is the single entry written for a kind when a run fails outright.
func (k Kind) failurePlaceholder() string {
	switch k {
	case Trends:
		return "Error analyzing trends"
	case Anomalies:
		return "Error analyzing anomalies"
	case Predictions:
		return "Error generating predictions"
	}
	return "Error analyzing " + string(k)
}

// mergePlaceholder is the entry written when a reduce step has nothing to keep.
func (k Kind) mergePlaceholder() string {
	return "Error merging " + string(k)
}
