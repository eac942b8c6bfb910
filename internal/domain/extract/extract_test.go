package extract

import (
	"math"
	"testing"
)

func TestParseJSONReply(t *testing.T) {
	reply := `Here is the transcription:
{"text": "Customer Name: John Smith", "confidence": 85, "structured_data": {"CustomerName": "John Smith"}}`

	got := Parse(reply)

	if got.Text != "Customer Name: John Smith" {
		t.Errorf("Text = %q", got.Text)
	}
	if math.Abs(got.Confidence-0.85) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.85 (normalized from 85)", got.Confidence)
	}
	if got.StructuredData["CustomerName"] != "John Smith" {
		t.Errorf("StructuredData = %v", got.StructuredData)
	}
}

func TestParseJSONWithoutConfidence(t *testing.T) {
	got := Parse(`{"text": "hello world", "structured_data": {}}`)

	if got.Confidence != DefaultConfidence {
		t.Errorf("Confidence = %v, want default %v", got.Confidence, DefaultConfidence)
	}
}

func TestParseJSONWithoutText(t *testing.T) {
	reply := `{"needs_human_review": true, "suggestions": ["check date"]}`
	got := Parse(reply)

	// A JSON object without a text key yields the whole reply as text so
	// downstream parsers can reinterpret it.
	if got.Text != reply {
		t.Errorf("Text = %q, want whole reply", got.Text)
	}
}

func TestParseMalformedJSONFallsBack(t *testing.T) {
	reply := `{"text": broken json
Customer Name: Jane Doe
Customer ID: C123`

	got := Parse(reply)

	if got.Text != reply {
		t.Errorf("Text = %q, want whole reply", got.Text)
	}
	if got.Confidence != DefaultConfidence {
		t.Errorf("Confidence = %v, want default", got.Confidence)
	}
	if got.StructuredData["CustomerID"] != "C123" {
		t.Errorf("StructuredData = %v, want fallback-extracted fields", got.StructuredData)
	}
}

func TestParsePlainText(t *testing.T) {
	got := Parse("just a plain transcription with no labels")

	if got.Text != "just a plain transcription with no labels" {
		t.Errorf("Text = %q", got.Text)
	}
	if len(got.StructuredData) != 0 {
		t.Errorf("StructuredData = %v, want empty", got.StructuredData)
	}
}

func TestParseStringifiesScalars(t *testing.T) {
	got := Parse(`{"text": "x", "structured_data": {"Floor": 3, "Urgent": true, "Nested": {"a": 1}, "Missing": null}}`)

	if got.StructuredData["Floor"] != "3" {
		t.Errorf("Floor = %q, want \"3\"", got.StructuredData["Floor"])
	}
	if got.StructuredData["Urgent"] != "true" {
		t.Errorf("Urgent = %q, want \"true\"", got.StructuredData["Urgent"])
	}
	if _, ok := got.StructuredData["Nested"]; ok {
		t.Error("nested objects should be dropped")
	}
	if _, ok := got.StructuredData["Missing"]; ok {
		t.Error("null values should be dropped")
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		text  string
		field string
		want  string
	}{
		{"Customer Name: John Smith", "CustomerName", "John Smith"},
		{"Customer ID: AB123, other text", "CustomerID", "AB123"},
		{"Division ID: D7.", "DivisionID", "D7"},
		{"Department ID: DEP42", "DepartmentID", "DEP42"},
		{"Record Code: RC99", "RecordCode", "RC99"},
		{"SKP Box Number: 17", "SKPBoxNumber", "17"},
		{"Date: 2024-06-01", "Date", "2024-06-01"},
		{"Telephone: 555-1234", "Telephone", "555-1234"},
		{"Floor: 3", "Floor", "3"},
	}
	for _, tt := range tests {
		got := Fields(tt.text)
		if got[tt.field] != tt.want {
			t.Errorf("Fields(%q)[%s] = %q, want %q", tt.text, tt.field, got[tt.field], tt.want)
		}
	}
}

func TestFieldsMultiple(t *testing.T) {
	got := Fields("Customer ID: AB123, Division ID: D7, Record Code: RC99")
	if len(got) != 3 {
		t.Fatalf("expected 3 fields, got %v", got)
	}
	if got["CustomerID"] != "AB123" || got["DivisionID"] != "D7" || got["RecordCode"] != "RC99" {
		t.Errorf("unexpected fields: %v", got)
	}
}

func TestFieldsCaseInsensitive(t *testing.T) {
	got := Fields("customer id: xyz789")
	if got["CustomerID"] != "xyz789" {
		t.Errorf("CustomerID = %q, want xyz789", got["CustomerID"])
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{85, 0.85},
		{0.85, 0.85},
		{1, 1},
		{-3, 0},
		{150, 1},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("normalize(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
