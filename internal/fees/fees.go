// internal/fees/fees.go
package fees

import (
	"fmt"
	"time"
)

// MonthLayout formats a fee period as full month name and four-digit year.
const MonthLayout = "January 2006"

// Status is the fee standing of a member for one fee period.
type Status struct {
	Month    string `json:"month"`
	Due      bool   `json:"due"`
	Reminder string `json:"reminder"`
}

// MonthLabel returns the fee period label for t, e.g. "March 2024".
func MonthLabel(t time.Time) string {
	return t.Format(MonthLayout)
}

// IsDue reports whether the fee for currentMonth is outstanding.
// An empty lastPaidMonth means the member has never paid.
func IsDue(lastPaidMonth, currentMonth string) bool {
	return lastPaidMonth != currentMonth
}

// ReminderText builds the message sent to a member about currentMonth.
func ReminderText(name, lastPaidMonth, currentMonth string) string {
	if IsDue(lastPaidMonth, currentMonth) {
		return fmt.Sprintf("Hello %s, your library fee for %s is DUE. Please pay soon.", name, currentMonth)
	}
	return fmt.Sprintf("Hello %s, your library fee for %s is already PAID.", name, currentMonth)
}

// Evaluate computes the standing of a member for currentMonth.
func Evaluate(name, lastPaidMonth, currentMonth string) Status {
	return Status{
		Month:    currentMonth,
		Due:      IsDue(lastPaidMonth, currentMonth),
		Reminder: ReminderText(name, lastPaidMonth, currentMonth),
	}
}
