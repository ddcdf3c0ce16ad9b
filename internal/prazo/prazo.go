// Package prazo computes default task deadlines from the employee's
// admission date.
package prazo

import "time"

const defaultWindow = 48 * time.Hour

// DefaultDeadline returns admission+48h when the admission date lies strictly
// in the future relative to now, otherwise now+48h. Never fails: a missing
// admission date falls back to now+48h.
func DefaultDeadline(now time.Time, admission *time.Time) time.Time {
	if admission != nil && admission.After(now) {
		return admission.Add(defaultWindow)
	}
	return now.Add(defaultWindow)
}

var admissionLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
}

// ParseAdmissionDate parses the date formats seen on employee records.
// Unparseable input returns nil so callers fall back to now+48h.
func ParseAdmissionDate(raw string) *time.Time {
	for _, layout := range admissionLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}
