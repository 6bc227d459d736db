package model

import "fmt"

// EnrichKind identifies one of the two enrichment artifacts.
type EnrichKind string

const (
	KindSummary      EnrichKind = "summary"
	KindIntelligence EnrichKind = "intelligence"
)

// EnrichKinds lists every kind, in the order they are requested on select.
var EnrichKinds = []EnrichKind{KindSummary, KindIntelligence}

// IntelKind discriminates extracted intelligence items.
type IntelKind string

const (
	IntelIndicator IntelKind = "ioc"
	IntelTechnique IntelKind = "technique"
)

// IntelItem is one extracted indicator of compromise or attack technique.
// For indicators Type is the IOC type (ip, domain, sha256, cve...) and Value
// the artifact; for techniques Type is the technique id (T1059) and Value
// its name.
type IntelItem struct {
	Kind       IntelKind `json:"kind"`
	Type       string    `json:"type"`
	Value      string    `json:"value"`
	Confidence *float64  `json:"confidence,omitempty"`
}

func (i IntelItem) String() string {
	return fmt.Sprintf("%s:%s", i.Type, i.Value)
}

// Intelligence is the normalized extraction result.
type Intelligence struct {
	Indicators []IntelItem `json:"indicators"`
	Techniques []IntelItem `json:"techniques"`
	Total      int         `json:"total"`
}

// NewIntelligence builds an Intelligence from the two lists and computes
// Total.
func NewIntelligence(indicators, techniques []IntelItem) Intelligence {
	if indicators == nil {
		indicators = []IntelItem{}
	}
	if techniques == nil {
		techniques = []IntelItem{}
	}
	return Intelligence{
		Indicators: indicators,
		Techniques: techniques,
		Total:      len(indicators) + len(techniques),
	}
}

// Clone returns a deep copy.
func (in Intelligence) Clone() Intelligence {
	out := Intelligence{Total: in.Total}
	out.Indicators = cloneItems(in.Indicators)
	out.Techniques = cloneItems(in.Techniques)
	return out
}

func cloneItems(items []IntelItem) []IntelItem {
	if items == nil {
		return nil
	}
	out := make([]IntelItem, len(items))
	for i, it := range items {
		if it.Confidence != nil {
			c := *it.Confidence
			it.Confidence = &c
		}
		out[i] = it
	}
	return out
}

// Summary is the result of the summarize enrichment.
type Summary struct {
	Executive string `json:"executive_summary"`
	Technical string `json:"technical_summary"`
	Model     string `json:"model"`
}
