// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"readerspace/internal/fees"
)

// service implements the Service interface.
type service struct {
	store       Store
	messenger   Messenger
	logger      *slog.Logger
	rateLimiter *rate.Limiter
	now         func() time.Time
	tracer      trace.Tracer

	membersCreated  metric.Int64Counter
	feesMarked      metric.Int64Counter
	remindersSent   metric.Int64Counter
	remindersFailed metric.Int64Counter
}

// Option customises a service built by NewService.
type Option func(*service)

// WithClock replaces the wall clock used to derive the current fee period.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithReminderLimit caps reminder dispatches to perMinute with the given burst.
func WithReminderLimit(perMinute, burst int) Option {
	return func(s *service) {
		if perMinute <= 0 {
			s.rateLimiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.rateLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// NewService creates a new membership service instance.
func NewService(store Store, messenger Messenger, opts ...Option) Service {
	s := &service{
		store:       store,
		messenger:   messenger,
		logger:      slog.Default(),
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Minute/30), 10), // 30 reminders per minute
		now:         time.Now,
		tracer:      otel.Tracer("readerspace/membership"),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter("readerspace/membership")
	s.membersCreated, _ = meter.Int64Counter("readerspace.members.created")
	s.feesMarked, _ = meter.Int64Counter("readerspace.fees.marked_paid")
	s.remindersSent, _ = meter.Int64Counter("readerspace.reminders.sent")
	s.remindersFailed, _ = meter.Int64Counter("readerspace.reminders.failed")

	return s
}

func (s *service) currentMonth() string {
	return fees.MonthLabel(s.now())
}

// CreateMember validates the form input and registers a new member.
func (s *service) CreateMember(ctx context.Context, in CreateMemberInput) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "membership.create_member")
	defer span.End()

	member, err := in.normalize()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("member.code", member.Code))
	if !looksInternational(member.Phone) {
		s.logger.WarnContext(ctx, "phone has no country code, reminders may not be delivered",
			"code", member.Code, "phone", member.Phone)
	}

	if err := s.store.Create(ctx, *member); err != nil {
		if !errors.Is(err, ErrDuplicateCode) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "create failed")
		}
		return nil, fmt.Errorf("create member %q: %w", member.Code, err)
	}

	s.membersCreated.Add(ctx, 1)
	s.logger.InfoContext(ctx, "member created", "code", member.Code)

	return member, nil
}

// GetMember looks up a member and evaluates the fee for the current month.
func (s *service) GetMember(ctx context.Context, code string) (*MemberView, error) {
	code = normalizeCode(code)
	ctx, span := s.tracer.Start(ctx, "membership.get_member",
		trace.WithAttributes(attribute.String("member.code", code)),
	)
	defer span.End()

	member, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	return s.view(member), nil
}

// MarkFeePaid records the fee for the month in which it is called.
func (s *service) MarkFeePaid(ctx context.Context, code string) (*MemberView, error) {
	code = normalizeCode(code)
	ctx, span := s.tracer.Start(ctx, "membership.mark_fee_paid",
		trace.WithAttributes(attribute.String("member.code", code)),
	)
	defer span.End()

	month := s.currentMonth()
	if err := s.store.MarkFeePaid(ctx, code, month); err != nil {
		return nil, fmt.Errorf("mark fee paid for %q: %w", code, err)
	}

	member, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	s.feesMarked.Add(ctx, 1)
	s.logger.InfoContext(ctx, "fee marked paid", "code", code, "month", month)

	return s.view(member), nil
}

// SendReminder texts the member their fee standing for the current month.
func (s *service) SendReminder(ctx context.Context, code string) (*Reminder, error) {
	code = normalizeCode(code)
	ctx, span := s.tracer.Start(ctx, "membership.send_reminder",
		trace.WithAttributes(attribute.String("member.code", code)),
	)
	defer span.End()

	member, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}
	return s.dispatch(ctx, member, s.currentMonth())
}

// SendDueReminders texts every member whose fee for the current month is
// outstanding. Sends are paced by the reminder limit rather than dropped;
// delivery failures are collected and do not stop the sweep.
func (s *service) SendDueReminders(ctx context.Context) (*SweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "membership.send_due_reminders")
	defer span.End()

	members, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	month := s.currentMonth()
	result := &SweepResult{Month: month, Sent: make([]*Reminder, 0)}
	for _, member := range members {
		result.Checked++
		if !fees.IsDue(member.LastPaidMonth, month) {
			continue
		}
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("due reminder sweep interrupted at %q: %w", member.Code, err)
		}
		reminder, err := s.dispatch(ctx, member, month)
		if err != nil {
			reason := err.Error()
			var messagingErr *MessagingFailure
			if errors.As(err, &messagingErr) {
				reason = messagingErr.Reason
			}
			result.Failures = append(result.Failures, SweepFailure{Code: member.Code, Reason: reason})
			continue
		}
		result.Sent = append(result.Sent, reminder)
	}

	span.SetAttributes(
		attribute.Int("members.checked", result.Checked),
		attribute.Int("reminders.sent", len(result.Sent)),
		attribute.Int("reminders.failed", len(result.Failures)),
	)
	s.logger.InfoContext(ctx, "due reminder sweep finished",
		"month", month, "checked", result.Checked, "sent", len(result.Sent), "failed", len(result.Failures))

	return result, nil
}

func (s *service) dispatch(ctx context.Context, member *Member, month string) (*Reminder, error) {
	status := fees.Evaluate(member.Name, member.LastPaidMonth, month)
	reminder := &Reminder{
		DispatchID: uuid.NewString(),
		Code:       member.Code,
		To:         member.Phone,
		Body:       status.Reminder,
		Due:        status.Due,
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("dispatch.id", reminder.DispatchID))

	delivery, err := s.messenger.Send(ctx, reminder.To, reminder.Body)
	if err != nil {
		s.remindersFailed.Add(ctx, 1)
		span.RecordError(err)
		s.logger.WarnContext(ctx, "reminder not sent",
			"dispatch_id", reminder.DispatchID, "code", member.Code, "error", err)
		return nil, &MessagingFailure{Reason: err.Error(), Err: err}
	}
	if delivery != nil {
		reminder.ProviderID = delivery.ProviderID
	}

	s.remindersSent.Add(ctx, 1)
	s.logger.InfoContext(ctx, "reminder sent",
		"dispatch_id", reminder.DispatchID, "code", member.Code, "to", reminder.To, "due", reminder.Due)

	return reminder, nil
}

func (s *service) view(member *Member) *MemberView {
	return &MemberView{
		Member: member,
		Fee:    fees.Evaluate(member.Name, member.LastPaidMonth, s.currentMonth()),
	}
}
