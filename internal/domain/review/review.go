// Package review holds the automated review result and the decision rules
// that route a recognition to approve, correct, or human_review.
package review

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/inkwell-ai/inkwell/internal/domain/recognition"
)

// Step is the workflow routing decision derived from a review.
type Step string

const (
	StepApprove     Step = "approve"
	StepCorrect     Step = "correct"
	StepHumanReview Step = "human_review"
	StepComplete    Step = "complete"
)

// Confidence adjustments applied when corrections are taken.
const (
	flaggedPenalty = 0.8  // multiplier when the reviewer still wants a human
	flaggedCap     = 0.6  // ceiling in that case
	acceptedBonus  = 1.1  // multiplier when the reviewer is satisfied
	acceptedCap    = 0.95 // ceiling in that case
)

var (
	jsonBlockRe  = regexp.MustCompile(`(?s)\{.*\}`)
	suggestionRe = regexp.MustCompile(`(?i)suggestion.*?:.*?([^\n]+)`)
)

// Result is one reviewer verdict for one recognition result.
type Result struct {
	NeedsHumanReview        bool              `json:"needs_human_review"`
	Suggestions             []string          `json:"suggestions"`
	Explanation             string            `json:"explanation"`
	CorrectedText           *string           `json:"corrected_text,omitempty"`
	CorrectedStructuredData map[string]string `json:"corrected_structured_data,omitempty"`
	ModelUsed               string            `json:"model_used,omitempty"`
	Timestamp               time.Time         `json:"timestamp,omitempty"`
	Err                     string            `json:"error,omitempty"`
}

// Process is the combined outcome of reviewing one recognition result.
type Process struct {
	OriginalRecognition  *recognition.Result `json:"original_recognition"`
	Review               *Result             `json:"review"`
	CorrectedRecognition *recognition.Result `json:"corrected_recognition"`
	NextStep             Step                `json:"next_step"`
	ModelUsed            string              `json:"model_used"`
	Timestamp            time.Time           `json:"timestamp"`
	HumanReviewApplied   bool                `json:"human_review_applied,omitempty"`
}

// ParseResponse turns a raw reviewer reply into a Result. The embedded JSON
// object is preferred; when it is absent the reply is scanned heuristically,
// and when it is present but malformed the result defaults to requiring
// human review.
func ParseResponse(reply string) *Result {
	block := jsonBlockRe.FindString(reply)
	if block == "" {
		lower := strings.ToLower(reply)
		r := &Result{
			NeedsHumanReview: strings.Contains(lower, "human review") && strings.Contains(lower, "recommended"),
			Suggestions:      []string{},
			Explanation:      reply,
		}
		for _, m := range suggestionRe.FindAllStringSubmatch(reply, -1) {
			r.Suggestions = append(r.Suggestions, strings.TrimSpace(m[1]))
		}
		return r
	}

	var parsed Result
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return &Result{
			NeedsHumanReview: true,
			Suggestions:      []string{},
			Explanation:      "Failed to parse review response",
		}
	}
	if parsed.Suggestions == nil {
		parsed.Suggestions = []string{}
	}
	return &parsed
}

// DetermineNextStep is the review decision table. Human review wins over
// corrections; corrections win over plain approval.
func DetermineNextStep(r *Result) Step {
	switch {
	case r.NeedsHumanReview:
		return StepHumanReview
	case r.CorrectedText != nil || len(r.CorrectedStructuredData) > 0:
		return StepCorrect
	default:
		return StepApprove
	}
}

// ApplyCorrections produces a new recognition result with the reviewer's
// corrections applied. The original is never mutated.
func ApplyCorrections(rec *recognition.Result, rev *Result) *recognition.Result {
	out := rec.Clone()

	if rev.CorrectedText != nil {
		out.Text = *rev.CorrectedText
	}
	if len(rev.CorrectedStructuredData) > 0 {
		sd := make(map[string]string, len(rev.CorrectedStructuredData))
		for k, v := range rev.CorrectedStructuredData {
			sd[k] = v
		}
		out.StructuredData = sd
	}

	if rev.NeedsHumanReview {
		out.Confidence = min(out.Confidence*flaggedPenalty, flaggedCap)
	} else {
		out.Confidence = min(out.Confidence*acceptedBonus, acceptedCap)
	}

	out.ReviewInfo = &recognition.ReviewInfo{
		Reviewed:         true,
		NeedsHumanReview: rev.NeedsHumanReview,
		Suggestions:      append([]string(nil), rev.Suggestions...),
		ReviewModel:      rev.ModelUsed,
	}
	return out
}
