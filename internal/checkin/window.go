package checkin

import (
	"time"

	"govlink/checkin-service/internal/models"
)

const (
	admitFrom  = 60 * time.Minute
	admitUntil = -15 * time.Minute
	lateUntil  = -120 * time.Minute
)

type timeRule struct {
	status  models.TimeStatus
	matches func(until time.Duration) bool
}

// Evaluated in order; the first match wins. Boundaries are exact: 60 minutes
// early is still valid, 15 minutes past is still valid, 120 minutes past is
// still late, and any time beyond a boundary falls into the next bucket.
var timeRules = []timeRule{
	{models.TimeEarly, func(d time.Duration) bool { return d > admitFrom }},
	{models.TimeValid, func(d time.Duration) bool { return d >= admitUntil && d <= admitFrom }},
	{models.TimeLate, func(d time.Duration) bool { return d >= lateUntil && d < admitUntil }},
	{models.TimeExpired, func(d time.Duration) bool { return d < lateUntil }},
}

// ClassifyTime buckets a check-in attempt at now against the scheduled
// instant.
func ClassifyTime(scheduled, now time.Time) models.TimeStatus {
	until := scheduled.Sub(now)
	for _, rule := range timeRules {
		if rule.matches(until) {
			return rule.status
		}
	}
	return models.TimeExpired
}
