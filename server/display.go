package server

import (
	"slices"
	"strings"
	"time"

	"github.com/jrsteele09/openleaf-portal/backend"
)

var backendTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339Nano,
}

// displayTime formats a backend local date-time for people. Unknown formats pass through.
func displayTime(value string) string {
	for _, layout := range backendTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("Mon 2 Jan 2006, 15:04")
		}
	}
	return value
}

func slotDetail(a backend.Appointment) string {
	detail := displayTime(a.StartTime) + " until " + displayTime(a.EndTime)
	if a.Status != "" {
		detail += " (" + strings.ToLower(a.Status) + ")"
	}
	if a.Notes != "" {
		detail += ": " + a.Notes
	}
	return detail
}

// Backend date-times share one layout, so they order as strings.
func sortAppointments(appointments []backend.Appointment) {
	slices.SortFunc(appointments, func(a, b backend.Appointment) int {
		return strings.Compare(a.StartTime, b.StartTime)
	})
}

func sortJournalsNewestFirst(journals []backend.Journal) {
	slices.SortFunc(journals, func(a, b backend.Journal) int {
		return strings.Compare(b.CreatedAt, a.CreatedAt)
	})
}

func excerpt(content string, limit int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
