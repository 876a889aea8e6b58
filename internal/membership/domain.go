// internal/membership/domain.go
package membership

import (
	"errors"
	"fmt"
	"strings"

	"readerspace/internal/fees"
)

var (
	ErrDuplicateCode  = errors.New("library code already exists, choose another code")
	ErrMemberNotFound = errors.New("invalid library code")
	ErrRateLimited    = errors.New("reminder rate limit exceeded")
)

// Member represents a registered library member.
type Member struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Seat          string `json:"seat"`
	FeePaid       bool   `json:"fee_paid"`
	LastPaidMonth string `json:"last_paid_month,omitempty"`
}

// MemberView is a member together with its fee standing for the current month.
type MemberView struct {
	Member *Member     `json:"member"`
	Fee    fees.Status `json:"fee"`
}

// Reminder describes a fee reminder handed to the messenger.
type Reminder struct {
	DispatchID string `json:"dispatch_id"`
	Code       string `json:"code"`
	To         string `json:"to"`
	Body       string `json:"body"`
	Due        bool   `json:"due"`
	ProviderID string `json:"provider_id,omitempty"`
}

// SweepResult summarises a due-reminder run over all members.
type SweepResult struct {
	Month    string         `json:"month"`
	Checked  int            `json:"checked"`
	Sent     []*Reminder    `json:"sent"`
	Failures []SweepFailure `json:"failures,omitempty"`
}

// SweepFailure records one member the sweep could not notify.
type SweepFailure struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// CreateMemberInput holds the fields collected by the account form.
type CreateMemberInput struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Seat  string `json:"seat"`
}

// ValidationError reports a required field that is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// MessagingFailure wraps a transport error reported by the messenger.
// Reason is the provider's message, passed through unchanged.
type MessagingFailure struct {
	Reason string
	Err    error
}

func (e *MessagingFailure) Error() string {
	return fmt.Sprintf("error sending message: %s", e.Reason)
}

func (e *MessagingFailure) Unwrap() error {
	return e.Err
}

// normalize trims surrounding whitespace and checks required fields.
func (in CreateMemberInput) normalize() (*Member, error) {
	m := &Member{
		Code:  normalizeCode(in.Code),
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
		Phone: strings.TrimSpace(in.Phone),
		Seat:  strings.TrimSpace(in.Seat),
	}

	required := []struct {
		field string
		value string
	}{
		{"code", m.Code},
		{"name", m.Name},
		{"email", m.Email},
		{"phone", m.Phone},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &ValidationError{Field: r.field, Reason: "is required"}
		}
	}

	return m, nil
}

// normalizeCode drops surrounding whitespace; the rest of the code is matched exactly.
func normalizeCode(code string) string {
	return strings.TrimSpace(code)
}

func looksInternational(phone string) bool {
	return strings.HasPrefix(phone, "+")
}
