// Package workflow defines the aggregate result of one recognition/review
// pass and the human-review merge that finalizes it.
package workflow

import (
	"errors"
	"time"

	"github.com/inkwell-ai/inkwell/internal/domain/recognition"
	"github.com/inkwell-ai/inkwell/internal/domain/review"
)

// Result aggregates one workflow invocation. FinalResult starts as the
// recognition's canonical data and is replaced by the reviewer's corrected
// data (next_step "correct") or by human input (next_step "complete").
type Result struct {
	Recognition *recognition.Output `json:"recognition,omitempty"`
	Review      *review.Process     `json:"review,omitempty"`
	FinalResult *recognition.Result `json:"final_result,omitempty"`
	NextStep    review.Step         `json:"next_step,omitempty"`

	ProcessingTimes map[string]float64 `json:"processing_times,omitempty"`
	ModelsUsed      map[string]string  `json:"models_used,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`

	HumanReviewApplied bool `json:"human_review_applied,omitempty"`

	// Error is set instead of the fields above when the workflow failed
	// internally. Failures are data, not raised errors.
	Error string `json:"error,omitempty"`
}

// ImageHash returns the content hash the workflow was keyed on, or "" when
// the result carries no recognition data.
func (r *Result) ImageHash() string {
	if r.Recognition == nil || r.Recognition.Recognition == nil {
		return ""
	}
	return r.Recognition.Recognition.Metadata.ImageHash
}

// HumanCorrections is the human-supplied override payload. Only present
// fields win over the prior final result.
type HumanCorrections struct {
	Text           *string           `json:"text,omitempty"`
	Confidence     *float64          `json:"confidence,omitempty"`
	StructuredData map[string]string `json:"structured_data,omitempty"`
}

// Validate rejects malformed correction payloads. The workflow state is left
// untouched when validation fails.
func (c *HumanCorrections) Validate() error {
	if c.Text == nil && c.Confidence == nil && c.StructuredData == nil {
		return errors.New("corrections must set at least one of text, confidence, structured_data")
	}
	if c.Confidence != nil && (*c.Confidence < 0 || *c.Confidence > 1) {
		return errors.New("corrected confidence must be within [0, 1]")
	}
	return nil
}

// MergeHumanReview produces the finalized workflow result: corrections are
// shallow-merged over the prior final result, the result is stamped as human
// reviewed, and next_step becomes complete. The input result is not mutated
// and the merge is terminal for the automated pipeline.
func MergeHumanReview(wf *Result, corr HumanCorrections, now time.Time) *Result {
	out := *wf

	var final *recognition.Result
	if wf.FinalResult != nil {
		final = wf.FinalResult.Clone()
	} else {
		final = &recognition.Result{StructuredData: map[string]string{}}
	}

	if corr.Text != nil {
		final.Text = *corr.Text
	}
	if corr.Confidence != nil {
		final.Confidence = *corr.Confidence
	}
	if corr.StructuredData != nil {
		sd := make(map[string]string, len(corr.StructuredData))
		for k, v := range corr.StructuredData {
			sd[k] = v
		}
		final.StructuredData = sd
	}

	ts := now
	final.HumanReviewed = true
	final.HumanReviewTimestamp = &ts

	out.FinalResult = final
	out.NextStep = review.StepComplete
	out.HumanReviewApplied = true

	if wf.Review != nil {
		rev := *wf.Review
		rev.HumanReviewApplied = true
		out.Review = &rev
	}

	return &out
}
