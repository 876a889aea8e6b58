package fees

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMonthLabel(t *testing.T) {
	ts := time.Date(2024, time.March, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "March 2024", MonthLabel(ts))
	assert.Equal(t, "January 2025", MonthLabel(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestIsDue(t *testing.T) {
	assert.True(t, IsDue("", "March 2024"))
	assert.False(t, IsDue("March 2024", "March 2024"))
	assert.True(t, IsDue("March 2024", "April 2024"))
}

func TestReminderText(t *testing.T) {
	settled := ReminderText("Alice", "March 2024", "March 2024")
	assert.Contains(t, settled, "Alice")
	assert.Contains(t, settled, "March 2024")
	assert.Contains(t, settled, "PAID")
	assert.NotContains(t, settled, "DUE")

	due := ReminderText("Alice", "March 2024", "April 2024")
	assert.Contains(t, due, "Alice")
	assert.Contains(t, due, "April 2024")
	assert.Contains(t, due, "DUE")
	assert.NotContains(t, due, "PAID")
}

func TestEvaluate(t *testing.T) {
	status := Evaluate("Bob", "", "May 2024")
	assert.Equal(t, "May 2024", status.Month)
	assert.True(t, status.Due)
	assert.Equal(t, "Hello Bob, your library fee for May 2024 is DUE. Please pay soon.", status.Reminder)
}

func genMonth() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		year := rapid.IntRange(1970, 2200).Draw(t, "year")
		month := time.Month(rapid.IntRange(1, 12).Draw(t, "month"))
		return MonthLabel(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
	})
}

func TestIsDueProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := genMonth().Draw(t, "current")
		last := genMonth().Draw(t, "last")

		if !IsDue("", current) {
			t.Fatalf("never-paid member not due for %q", current)
		}
		if IsDue(last, current) != (last != current) {
			t.Fatalf("IsDue(%q, %q) disagrees with label equality", last, current)
		}
	})
}

func TestReminderTextProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[A-Z][a-z]{1,12}`).Draw(t, "name")
		current := genMonth().Draw(t, "current")
		last := rapid.OneOf(rapid.Just(""), genMonth()).Draw(t, "last")

		text := ReminderText(name, last, current)
		if !strings.Contains(text, name) || !strings.Contains(text, current) {
			t.Fatalf("reminder %q missing name or month", text)
		}
		marker := "PAID"
		if IsDue(last, current) {
			marker = "DUE"
		}
		if !strings.Contains(text, marker) {
			t.Fatalf("reminder %q missing %s", text, marker)
		}
	})
}
