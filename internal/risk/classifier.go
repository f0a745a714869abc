// Package risk classifies a planned operation as LOW, MEDIUM or HIGH. The
// classification decides whether a plan auto-executes, waits for user
// confirmation, or waits for senior approval.
package risk

import "github.com/campusiq/opsconsole/internal/domain"

// DefaultHighImpactThreshold is the impact count above which any operation
// classifies as HIGH regardless of intent type.
const DefaultHighImpactThreshold = 50

// Classifier is a pure, deterministic rule chain. Rules are evaluated in
// order and the first match wins:
//
//  1. DELETE is always HIGH.
//  2. Any mutation of a sensitive entity is HIGH.
//  3. Impact count above the threshold is HIGH.
//  4. CREATE and UPDATE are MEDIUM.
//  5. READ and ANALYZE are LOW.
type Classifier struct {
	highImpactThreshold int
}

// NewClassifier creates a classifier. A non-positive threshold falls back
// to DefaultHighImpactThreshold.
func NewClassifier(highImpactThreshold int) *Classifier {
	if highImpactThreshold <= 0 {
		highImpactThreshold = DefaultHighImpactThreshold
	}
	return &Classifier{highImpactThreshold: highImpactThreshold}
}

// Classify returns the risk level for the given intent type, entity
// sensitivity and estimated impact count.
func (c *Classifier) Classify(intentType domain.IntentType, sensitive bool, impactCount int) domain.RiskLevel {
	if intentType == domain.IntentDelete {
		return domain.RiskHigh
	}
	if sensitive && intentType.Mutates() {
		return domain.RiskHigh
	}
	if impactCount > c.highImpactThreshold {
		return domain.RiskHigh
	}
	if intentType == domain.IntentCreate || intentType == domain.IntentUpdate {
		return domain.RiskMedium
	}
	return domain.RiskLow
}

// Threshold exposes the configured high-impact cutoff.
func (c *Classifier) Threshold() int {
	return c.highImpactThreshold
}
