// Package scan holds the pure rules of a scan run: lifecycle transitions, progress accounting,
// item projection and filtering, and runner lease/notification policy.
package scan

import (
	"fmt"
	"slices"

	"github.com/om239903-ai/internship-project/internal/domain/model"
)

var allowedTransitions = map[model.ScanStatus][]model.ScanStatus{
	model.ScanStatusPending: {model.ScanStatusRunning, model.ScanStatusCancelled, model.ScanStatusFailed},
	model.ScanStatusRunning: {model.ScanStatusCompleted, model.ScanStatusFailed, model.ScanStatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to model.ScanStatus) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// ValidateTransition returns an error for illegal lifecycle steps.
func ValidateTransition(from, to model.ScanStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid scan transition %s -> %s", from, to)
	}
	return nil
}

// Sources returns the statuses from which to is reachable. The result is the expected-status
// set of a compare-and-swap.
func Sources(to model.ScanStatus) []model.ScanStatus {
	var out []model.ScanStatus
	for _, from := range []model.ScanStatus{model.ScanStatusPending, model.ScanStatusRunning} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// CanCancel reports whether a cancel request is accepted in status s.
func CanCancel(s model.ScanStatus) bool {
	return s == model.ScanStatusPending || s == model.ScanStatusRunning
}
