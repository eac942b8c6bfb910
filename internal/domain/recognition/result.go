// Package recognition defines the canonical recognition result and the
// confidence and quality scoring rules applied to it.
package recognition

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Scoring constants. Confidence starts from the backend-reported value and is
// adjusted by these factors before being clamped into [0, 1].
const (
	ShortTextThreshold = 10   // runes below which a transcription counts as short
	shortTextPenalty   = 0.8  // multiplier for short transcriptions
	fieldBonusStep     = 0.05 // bonus per extracted structured field
	fieldBonusCap      = 0.2  // maximum total field bonus
	noFieldsPenalty    = 0.9  // multiplier when no structured fields were found
	issueScorePenalty  = 0.1  // quality score deduction per recorded issue
)

// ImageInfo carries basic attributes of the source image.
type ImageInfo struct {
	Format string `json:"format,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	SizeKB int    `json:"size_kb"`
	Error  string `json:"error,omitempty"`
}

// Metadata describes where a recognition result came from.
type Metadata struct {
	ImageHash string    `json:"image_hash"`
	ModelName string    `json:"model_name"`
	Timestamp time.Time `json:"timestamp"`
	ImageInfo ImageInfo `json:"image_info"`
}

// ReviewInfo records that a result passed through the automated reviewer.
type ReviewInfo struct {
	Reviewed         bool     `json:"reviewed"`
	NeedsHumanReview bool     `json:"needs_human_review"`
	Suggestions      []string `json:"suggestions"`
	ReviewModel      string   `json:"review_model"`
}

// Result is the canonical recognition result. Once cached it is never
// mutated; corrections always produce a new Result via Clone.
type Result struct {
	Text           string            `json:"text"`
	Confidence     float64           `json:"confidence"`
	StructuredData map[string]string `json:"structured_data"`
	Metadata       Metadata          `json:"metadata"`

	// Set by the review pipeline when corrections are applied.
	ReviewInfo *ReviewInfo `json:"review_info,omitempty"`

	// Set by the human-review merge. Once HumanReviewed is true the
	// owning workflow is terminal.
	HumanReviewed        bool       `json:"human_reviewed,omitempty"`
	HumanReviewTimestamp *time.Time `json:"human_review_timestamp,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	out := *r
	if r.StructuredData != nil {
		out.StructuredData = make(map[string]string, len(r.StructuredData))
		for k, v := range r.StructuredData {
			out.StructuredData[k] = v
		}
	}
	if r.ReviewInfo != nil {
		ri := *r.ReviewInfo
		ri.Suggestions = append([]string(nil), r.ReviewInfo.Suggestions...)
		out.ReviewInfo = &ri
	}
	if r.HumanReviewTimestamp != nil {
		ts := *r.HumanReviewTimestamp
		out.HumanReviewTimestamp = &ts
	}
	return &out
}

// QualityEvaluation is the deterministic quality gate derived from a Result.
type QualityEvaluation struct {
	OverallScore float64  `json:"overall_score"`
	NeedsReview  bool     `json:"needs_review"`
	Issues       []string `json:"issues"`
}

// Output pairs a recognition result with its quality evaluation. This is what
// the recognition pipeline hands to the workflow orchestrator.
type Output struct {
	Recognition *Result           `json:"recognition"`
	Quality     QualityEvaluation `json:"quality"`
	ModelUsed   string            `json:"model_used"`
	Timestamp   time.Time         `json:"timestamp"`
}

// CalculateConfidence combines the backend-reported confidence with signals
// from the extracted text and structured fields. Percentages (values above
// 1.0) are normalized to the 0-1 range first. The returned value is always
// clamped into [0, 1].
func CalculateConfidence(reported float64, text string, fieldCount int) float64 {
	c := reported
	if c > 1.0 {
		c /= 100.0
	}

	if utf8.RuneCountInString(text) < ShortTextThreshold {
		c *= shortTextPenalty
	}

	if fieldCount > 0 {
		bonus := float64(fieldCount) * fieldBonusStep
		if bonus > fieldBonusCap {
			bonus = fieldBonusCap
		}
		c += bonus
		if c > 1.0 {
			c = 1.0
		}
	} else {
		c *= noFieldsPenalty
	}

	return clamp01(c)
}

// EvaluateQuality derives the quality gate for a result. The score starts at
// the result's confidence and loses issueScorePenalty per recorded issue.
// NeedsReview is monotonic: more issues or a lower score can only switch it
// on, never off.
func EvaluateQuality(r *Result, threshold float64) QualityEvaluation {
	q := QualityEvaluation{
		OverallScore: r.Confidence,
		Issues:       []string{},
	}

	if utf8.RuneCountInString(r.Text) < ShortTextThreshold {
		q.Issues = append(q.Issues, "Very little text extracted")
	}
	if len(r.StructuredData) == 0 {
		q.Issues = append(q.Issues, "No structured data extracted")
	}
	if strings.Contains(r.Text, "???") || strings.Contains(r.Text, "...") {
		q.Issues = append(q.Issues, "Text contains uncertainty markers")
	}

	q.OverallScore -= float64(len(q.Issues)) * issueScorePenalty
	if q.OverallScore < 0 {
		q.OverallScore = 0
	}

	q.NeedsReview = q.OverallScore < threshold || len(q.Issues) > 0
	return q
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
