package service

import (
	"time"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// ComputeProgress returns floor(completed/total*100) clamped to 0..100; an empty course is 0.
func ComputeProgress(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	return clampPercent(completed * 100 / total)
}

// ApplyProgress raises the enrollment's progress to value. Lower values are a
// no-op. Reaching 100 marks the enrollment completed and stamps CompletedAt
// once. It reports whether anything changed and whether this call completed
// the enrollment.
func ApplyProgress(e *models.Enrollment, value int, now time.Time) (changed, completedNow bool) {
	value = clampPercent(value)
	if value <= e.Progress {
		return false, false
	}
	e.Progress = value
	if e.Progress >= 100 && !e.Completed {
		e.Completed = true
		if e.CompletedAt == nil {
			at := now.UTC()
			e.CompletedAt = &at
		}
		completedNow = true
	}
	return true, completedNow
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
