// Package abtest assigns contacts to experiment variants deterministically:
// the same contact always lands in the same bucket, across restarts and
// instances, without persisting assignments. Reporting runs a two-proportion
// z-test over recorded conversions.
package abtest

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// Variant is one arm of an experiment.
type Variant struct {
	Name string
	// Weight is the share of the 100-bucket space, so weights across an
	// experiment must sum to 100.
	Weight int
}

// Experiment is a named set of weighted variants.
type Experiment struct {
	ID       string
	Variants []Variant
}

// Validate checks the weight budget.
func (e Experiment) Validate() error {
	if len(e.Variants) == 0 {
		return fmt.Errorf("experiment %q has no variants", e.ID)
	}
	total := 0
	for _, v := range e.Variants {
		if v.Weight < 0 {
			return fmt.Errorf("experiment %q: negative weight for %q", e.ID, v.Name)
		}
		total += v.Weight
	}
	if total != 100 {
		return fmt.Errorf("experiment %q: weights sum to %d, want 100", e.ID, total)
	}
	return nil
}

// Assign buckets the contact into one of the experiment's variants. The
// bucket is SHA-256(contactID:experimentID) mod 100, walked against the
// cumulative weights.
func Assign(exp Experiment, contactID string) Variant {
	bucket := Bucket(exp.ID, contactID)
	cumulative := 0
	for _, v := range exp.Variants {
		cumulative += v.Weight
		if bucket < cumulative {
			return v
		}
	}
	// Weights short of 100 spill into the last variant.
	return exp.Variants[len(exp.Variants)-1]
}

// Bucket returns the contact's stable position in the 100-bucket space.
func Bucket(experimentID, contactID string) int {
	sum := sha256.Sum256([]byte(contactID + ":" + experimentID))
	return int(binary.BigEndian.Uint64(sum[:8]) % 100)
}

// Result is one arm's observed outcome for reporting.
type Result struct {
	Variant     string
	Exposures   int
	Conversions int
}

// Rate returns the conversion rate.
func (r Result) Rate() float64 {
	if r.Exposures == 0 {
		return 0
	}
	return float64(r.Conversions) / float64(r.Exposures)
}

// ZTest runs a two-proportion z-test between control and treatment.
// Returns the z statistic and the two-sided p-value.
func ZTest(control, treatment Result) (z float64, p float64) {
	n1, n2 := float64(control.Exposures), float64(treatment.Exposures)
	if n1 == 0 || n2 == 0 {
		return 0, 1
	}
	p1, p2 := control.Rate(), treatment.Rate()
	pooled := (float64(control.Conversions) + float64(treatment.Conversions)) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return 0, 1
	}
	z = (p2 - p1) / se
	p = 2 * (1 - normalCDF(math.Abs(z)))
	return z, p
}

// Significant reports whether the difference clears the alpha level.
func Significant(control, treatment Result, alpha float64) bool {
	_, p := ZTest(control, treatment)
	return p < alpha
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
