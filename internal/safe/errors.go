package safe

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/burst2safe/internal/burst"
)

// Eligibility rule names, in evaluation order.
const (
	RuleSameMode          = "same-acquisition-mode"
	RuleSameOrbit         = "same-absolute-orbit"
	RuleDuplicateGranule  = "no-duplicate-granules"
	RuleConsecutiveBursts = "consecutive-burst-ids"
	RuleContiguousTiming  = "contiguous-timing"
	RuleCrossPolFootprint = "cross-polarization-consistency"
	RuleSwathOverlap      = "adjacent-swath-overlap"
)

// EligibilityError reports that an input set cannot legally form one
// product. It identifies the first violated rule and the offending bursts.
type EligibilityError struct {
	Rule    string
	Bursts  []string // granule names involved in the violation
	Details string
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("burst group ineligible (%s): %s", e.Rule, e.Details)
}

// SchemaError reports that an input metadata document is missing a field the
// document schema declares mandatory.
type SchemaError struct {
	Doc   burst.DocType
	Field string
	Burst string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s document of burst %s is missing required field %s", e.Doc, e.Burst, e.Field)
}

// GroupTooSmallError reports a (swath, polarization) group rejected for
// having fewer bursts than the configured minimum. Distinct from
// EligibilityError: the group is legal, just below the threshold.
type GroupTooSmallError struct {
	Swath        burst.Swath
	Polarization burst.Polarization
	Count        int
	Minimum      int
}

func (e *GroupTooSmallError) Error() string {
	return fmt.Sprintf("group %s %s has %d burst(s), below the configured minimum of %d",
		e.Swath, e.Polarization, e.Count, e.Minimum)
}

// InternalConsistencyError indicates a bug in the merge engine itself, such
// as a stitched raster whose line count disagrees with the merged annotation
// axis. Always fatal to the entire run.
type InternalConsistencyError struct {
	Check   string
	Details string
}

func (e *InternalConsistencyError) Error() string {
	return fmt.Sprintf("internal consistency check %q failed: %s", e.Check, e.Details)
}

// IsFatal reports whether the error must abort the whole run rather than
// just the affected group.
func IsFatal(err error) bool {
	var ice *InternalConsistencyError
	return errors.As(err, &ice)
}

// UnresolvedField records a merge-category field with no defined
// recomputation rule. Not an error: the field is written as the explicit
// unresolved sentinel, and the diagnostic lets callers decide whether to
// proceed.
type UnresolvedField struct {
	Doc   burst.DocType
	Field string
}

func (u UnresolvedField) String() string {
	return fmt.Sprintf("%s:%s", u.Doc, u.Field)
}
