package enrich

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/abelbrown/watchfloor/internal/model"
)

// Shape identifies which extraction response layout was decoded.
type Shape int

const (
	// ShapeNone means the response carried no items; a follow-up read of the
	// persisted intelligence is required.
	ShapeNone Shape = iota
	// ShapeDirect is {"indicators": [...], "techniques": [...]}.
	ShapeDirect
	// ShapeMixed is one list of items tagged with a kind discriminator.
	ShapeMixed
)

func (s Shape) String() string {
	switch s {
	case ShapeDirect:
		return "direct"
	case ShapeMixed:
		return "mixed"
	}
	return "none"
}

// rawItem covers the field spellings seen across extraction backends.
type rawItem struct {
	Kind     text `json:"kind"`
	ItemType text `json:"item_type"`

	Type      text `json:"type"`
	IOCType   text `json:"ioc_type"`
	Value     text `json:"value"`
	Indicator text `json:"indicator"`

	TechniqueID text `json:"technique_id"`
	ID          text `json:"id"`
	Name        text `json:"name"`

	Confidence score `json:"confidence"`
}

// text accepts a JSON string, number, bool or null.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	case b[0] == '[' || b[0] == '{':
		return fmt.Errorf("expected scalar, got %s", b)
	default:
		*t = text(b)
	}
	return nil
}

// score is an optional confidence. Numeric strings are parsed; anything
// else leaves it unset.
type score struct{ v *float64 }

func (c *score) UnmarshalJSON(b []byte) error {
	c.v = nil
	b = bytes.TrimSpace(b)
	if len(b) > 1 && b[0] == '"' {
		b = b[1 : len(b)-1]
	}
	if f, err := strconv.ParseFloat(string(b), 64); err == nil {
		c.v = &f
	}
	return nil
}

// itemList decodes element by element so one malformed item is skipped
// without losing its siblings. A value that is not an array leaves the list
// nil; an empty array yields an empty, non-nil list.
type itemList []rawItem

func (l *itemList) UnmarshalJSON(b []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil || elems == nil {
		*l = nil
		return nil
	}
	items := make(itemList, 0, len(elems))
	for _, raw := range elems {
		var it rawItem
		if err := json.Unmarshal(raw, &it); err != nil {
			continue
		}
		items = append(items, it)
	}
	*l = items
	return nil
}

type rawExtraction struct {
	Indicators itemList `json:"indicators"`
	IOCs       itemList `json:"iocs"`
	Techniques itemList `json:"techniques"`
	TTPs       itemList `json:"ttps"`

	Items        itemList `json:"items"`
	Intelligence itemList `json:"intelligence"`
	Results      itemList `json:"results"`

	Data json.RawMessage `json:"data"`
}

// DecodeExtraction normalizes an extraction response. The payload may be
// wrapped in a top-level "data" object. When no recognizable item lists are
// present the returned shape is ShapeNone and the intelligence is empty.
func DecodeExtraction(raw []byte) (model.Intelligence, Shape, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return model.NewIntelligence(nil, nil), ShapeNone, nil
	}

	if !json.Valid(raw) {
		return model.Intelligence{}, ShapeNone, fmt.Errorf("decode extraction: invalid JSON")
	}

	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '[' {
		// A bare array is treated as a mixed list.
		var items itemList
		_ = json.Unmarshal(trimmed, &items)
		return fromMixed(items), ShapeMixed, nil
	}

	var top rawExtraction
	if err := json.Unmarshal(trimmed, &top); err != nil {
		// Valid JSON in a layout we do not know.
		return model.NewIntelligence(nil, nil), ShapeNone, nil
	}

	if intel, shape := fromRaw(top); shape != ShapeNone {
		return intel, shape, nil
	}

	data := bytes.TrimSpace(top.Data)
	if len(data) > 0 && data[0] == '{' {
		var inner rawExtraction
		if err := json.Unmarshal(data, &inner); err == nil {
			if intel, shape := fromRaw(inner); shape != ShapeNone {
				return intel, shape, nil
			}
		}
	}
	if len(data) > 0 && data[0] == '[' {
		var items itemList
		_ = json.Unmarshal(data, &items)
		return fromMixed(items), ShapeMixed, nil
	}

	return model.NewIntelligence(nil, nil), ShapeNone, nil
}

func fromRaw(r rawExtraction) (model.Intelligence, Shape) {
	indicators := firstNonNil(r.Indicators, r.IOCs)
	techniques := firstNonNil(r.Techniques, r.TTPs)
	if indicators != nil || techniques != nil {
		ind := make([]model.IntelItem, 0, len(indicators))
		for _, it := range indicators {
			ind = append(ind, toIndicator(it))
		}
		tech := make([]model.IntelItem, 0, len(techniques))
		for _, it := range techniques {
			tech = append(tech, toTechnique(it))
		}
		return model.NewIntelligence(ind, tech), ShapeDirect
	}

	if mixed := firstNonNil(r.Items, r.Intelligence, r.Results); mixed != nil {
		return fromMixed(mixed), ShapeMixed
	}
	return model.Intelligence{}, ShapeNone
}

// fromMixed partitions a tagged list, preserving order within each kind.
// Items with an unknown discriminator are skipped.
func fromMixed(items itemList) model.Intelligence {
	var ind, tech []model.IntelItem
	for _, it := range items {
		switch discriminate(it) {
		case model.IntelIndicator:
			ind = append(ind, toIndicator(it))
		case model.IntelTechnique:
			tech = append(tech, toTechnique(it))
		}
	}
	return model.NewIntelligence(ind, tech)
}

func discriminate(it rawItem) model.IntelKind {
	tag := strings.ToLower(firstNonEmpty(string(it.Kind), string(it.ItemType)))
	switch tag {
	case "ioc", "indicator", "iocs", "indicators":
		return model.IntelIndicator
	case "technique", "techniques", "ttp", "ttps", "attack_technique":
		return model.IntelTechnique
	}
	return ""
}

func toIndicator(it rawItem) model.IntelItem {
	return model.IntelItem{
		Kind:       model.IntelIndicator,
		Type:       firstNonEmpty(string(it.IOCType), string(it.Type)),
		Value:      firstNonEmpty(string(it.Value), string(it.Indicator)),
		Confidence: it.Confidence.v,
	}
}

func toTechnique(it rawItem) model.IntelItem {
	return model.IntelItem{
		Kind:       model.IntelTechnique,
		Type:       firstNonEmpty(string(it.TechniqueID), string(it.ID), string(it.Type)),
		Value:      firstNonEmpty(string(it.Name), string(it.Value)),
		Confidence: it.Confidence.v,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(lists ...itemList) itemList {
	for _, l := range lists {
		if l != nil {
			return l
		}
	}
	return nil
}
