package validate

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
)

// Reason explains why a record was rejected
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonExcluded              Reason = "EXCLUDED"
	ReasonMissingGrade          Reason = "MISSING_GRADE"
	ReasonMissingGradingCompany Reason = "MISSING_GRADING_COMPANY"
	ReasonWrongImageCount       Reason = "WRONG_IMAGE_COUNT"
)

// RequiredImages is the number of images (front and back) an exported card must have
const RequiredImages = 2

// Verdict is the result of validating one record
type Verdict struct {
	Eligible   bool
	Reason     Reason
	ImageCount int
}

func (v Verdict) String() string {
	switch {
	case v.Eligible:
		return "eligible"
	case v.Reason == ReasonWrongImageCount:
		return fmt.Sprintf("%s (have %d, need %d)", v.Reason, v.ImageCount, RequiredImages)
	default:
		return string(v.Reason)
	}
}

// Validator gates records for export. The zero value applies only the
// grade, company and image count checks.
type Validator struct {
	excluded map[string]struct{}
}

// New creates a validator that also rejects the given listing ids
func New(excludedListingIDs []string) *Validator {
	v := &Validator{excluded: make(map[string]struct{}, len(excludedListingIDs))}
	for _, id := range excludedListingIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			v.excluded[id] = struct{}{}
		}
	}
	return v
}

// Validate checks a record, stopping at the first failed check
func (v *Validator) Validate(record cards.Record) Verdict {
	verdict := Verdict{ImageCount: len(record.Images)}

	if v != nil {
		if _, ok := v.excluded[record.GetListingID()]; ok {
			verdict.Reason = ReasonExcluded
			return verdict
		}
	}

	switch {
	case record.Grade.Blank():
		verdict.Reason = ReasonMissingGrade
	case record.GetCompany() == "":
		verdict.Reason = ReasonMissingGradingCompany
	case len(record.Images) != RequiredImages:
		verdict.Reason = ReasonWrongImageCount
	default:
		verdict.Eligible = true
	}
	return verdict
}

// Validate checks a record without any exclusions
func Validate(record cards.Record) Verdict {
	var v *Validator
	return v.Validate(record)
}
