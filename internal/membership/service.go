// internal/membership/service.go
package membership

import (
	"context"
)

// Service defines the interface for the membership service.
type Service interface {
	CreateMember(ctx context.Context, in CreateMemberInput) (*Member, error)
	GetMember(ctx context.Context, code string) (*MemberView, error)
	MarkFeePaid(ctx context.Context, code string) (*MemberView, error)
	SendReminder(ctx context.Context, code string) (*Reminder, error)
	SendDueReminders(ctx context.Context) (*SweepResult, error)
}

// Store persists member records keyed by library code.
type Store interface {
	Create(ctx context.Context, m Member) error
	Get(ctx context.Context, code string) (*Member, error)
	MarkFeePaid(ctx context.Context, code, month string) error
	List(ctx context.Context) ([]*Member, error)
	Close() error
}

// Messenger delivers a text message to a phone number.
type Messenger interface {
	Send(ctx context.Context, to, body string) (*Delivery, error)
}

// Delivery is the messenger's acknowledgement of an accepted message.
type Delivery struct {
	ProviderID string
	Status     string
}
