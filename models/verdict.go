package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// QualityReason enum
type QualityReason string

const (
	ReasonBlurry         QualityReason = "BLURRY"
	ReasonTooDark        QualityReason = "TOO_DARK"
	ReasonNonSubstantive QualityReason = "NON_SUBSTANTIVE"
)

// TextDuplicate is one existing issue whose text resembles the draft.
type TextDuplicate struct {
	Issue primitive.ObjectID `json:"issue"`
	Title string             `json:"title"`
	Score float64            `json:"score"`
}

// ImageDuplicate is one photo pair crossing the image similarity threshold.
type ImageDuplicate struct {
	Issue        primitive.ObjectID `json:"issue"`
	Photo        string             `json:"photo"`
	MatchedPhoto string             `json:"matchedPhoto"`
	Score        float64            `json:"score"`
}

// QualityFlag marks one draft photo as likely unusable.
type QualityFlag struct {
	Photo      string        `json:"photo"`
	Reason     QualityReason `json:"reason"`
	Confidence float64       `json:"confidence"`
}

// DuplicateVerdict is the output of the detection pipeline for one
// submission attempt. It is returned to the caller to drive a user
// confirmation step and never persisted.
type DuplicateVerdict struct {
	TextDuplicates  []TextDuplicate  `json:"textDuplicates"`
	ImageDuplicates []ImageDuplicate `json:"imageDuplicates"`
	QualityFlags    []QualityFlag    `json:"qualityFlags"`
	// CheckSkipped is set when the pipeline failed or timed out and the
	// submission proceeded without a duplicate check.
	CheckSkipped bool `json:"checkSkipped,omitempty"`
}

// Empty reports whether there is nothing to confirm with the user.
func (v *DuplicateVerdict) Empty() bool {
	return len(v.TextDuplicates) == 0 && len(v.ImageDuplicates) == 0 && len(v.QualityFlags) == 0
}
