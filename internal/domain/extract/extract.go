// Package extract normalizes free-form model replies into the canonical
// {text, confidence, structured_data} shape. Backends are expected to embed a
// JSON object in their reply; when that is missing or malformed the package
// falls back to scanning the raw text for a fixed set of labeled fields.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultConfidence is assigned when a reply carries no usable confidence.
const DefaultConfidence = 0.8

// jsonBlockRe matches the first embedded JSON object, across newlines.
var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// fieldPattern pairs a label regex with the canonical field name it yields.
type fieldPattern struct {
	re   *regexp.Regexp
	name string
}

// Label fields recognized by the fallback extractor. Order is fixed so that
// extraction is deterministic.
var fieldPatterns = []fieldPattern{
	{regexp.MustCompile(`(?i)Customer Name:?\s*([\w\s]+)`), "CustomerName"},
	{regexp.MustCompile(`(?i)Customer ID:?\s*(\w+)`), "CustomerID"},
	{regexp.MustCompile(`(?i)Division ID:?\s*(\w+)`), "DivisionID"},
	{regexp.MustCompile(`(?i)Department ID:?\s*(\w+)`), "DepartmentID"},
	{regexp.MustCompile(`(?i)Record Code:?\s*(\w+)`), "RecordCode"},
	{regexp.MustCompile(`(?i)SKP Box Number:?\s*(\w+)`), "SKPBoxNumber"},
	{regexp.MustCompile(`(?i)Reference:?\s*([\w\s]+)`), "Reference"},
	{regexp.MustCompile(`(?i)Major Description:?\s*([\w\s]+)`), "MajorDescription"},
	{regexp.MustCompile(`(?i)Preparer's Name:?\s*([\w\s]+)`), "PreparerName"},
	{regexp.MustCompile(`(?i)Date:?\s*([\w\s\-/.]+)`), "Date"},
	{regexp.MustCompile(`(?i)Telephone:?\s*([\w\s\-.]+)`), "Telephone"},
	{regexp.MustCompile(`(?i)Floor:?\s*([\w\s\-.]+)`), "Floor"},
}

// Canonical is the normalized reply shape shared by all provider adapters.
type Canonical struct {
	Text           string
	Confidence     float64
	StructuredData map[string]string
}

// Parse normalizes a raw reply. It prefers the embedded JSON object; when
// none parses, the whole reply becomes the text and fields are recovered with
// the regex fallback. Percentage confidences are normalized to [0, 1].
func Parse(reply string) Canonical {
	if block := jsonBlockRe.FindString(reply); block != "" {
		var parsed struct {
			Text           string         `json:"text"`
			Confidence     *float64       `json:"confidence"`
			StructuredData map[string]any `json:"structured_data"`
		}
		if err := json.Unmarshal([]byte(block), &parsed); err == nil {
			c := Canonical{
				Text:           parsed.Text,
				Confidence:     DefaultConfidence,
				StructuredData: stringify(parsed.StructuredData),
			}
			if c.Text == "" {
				c.Text = reply
			}
			if parsed.Confidence != nil {
				c.Confidence = normalize(*parsed.Confidence)
			}
			return c
		}
	}

	return Canonical{
		Text:           reply,
		Confidence:     DefaultConfidence,
		StructuredData: Fields(reply),
	}
}

// Fields scans free text for the known labeled fields.
func Fields(text string) map[string]string {
	out := map[string]string{}
	for _, p := range fieldPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			out[p.name] = strings.TrimSpace(m[1])
		}
	}
	return out
}

// stringify flattens a decoded structured_data object to string values.
// Nested objects and arrays are dropped.
func stringify(in map[string]any) map[string]string {
	out := map[string]string{}
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64, bool:
			out[k] = fmt.Sprint(val)
		case nil:
			// skip
		}
	}
	return out
}

func normalize(c float64) float64 {
	if c > 1.0 {
		c /= 100.0
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
