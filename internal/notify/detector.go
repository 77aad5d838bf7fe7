package notify

import "collabdocs/internal/document/model"

// ChangeClass classifies a transition between two snapshots.
type ChangeClass int

const (
	NoChange ChangeClass = iota
	SelfChange
	SignificantChange
)

func (c ChangeClass) String() string {
	switch c {
	case NoChange:
		return "no_change"
	case SelfChange:
		return "self_change"
	case SignificantChange:
		return "significant_change"
	}
	return "unknown"
}

// Classify compares before and after. Only SignificantChange should reach the
// notification pipeline.
func Classify(before, after model.Snapshot) ChangeClass {
	if before.SameText(after) {
		return NoChange
	}
	if model.NormalizeEmail(before.LastUpdatedByEmail) == model.NormalizeEmail(after.LastUpdatedByEmail) {
		return SelfChange
	}
	return SignificantChange
}
