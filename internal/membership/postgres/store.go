package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"readerspace/internal/membership"
)

const uniqueViolation = "23505"

const schema = `
	CREATE TABLE IF NOT EXISTS members (
		library_code    TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		email           TEXT NOT NULL,
		contact         TEXT NOT NULL,
		seat_no         TEXT NOT NULL DEFAULT '',
		paid            BOOLEAN NOT NULL DEFAULT FALSE,
		last_paid_month TEXT
	)
`

// Store is the PostgreSQL member store
type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

// Open connects to PostgreSQL and ensures the members table exists
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return New(db), nil
}

// New wraps an already opened connection pool
func New(db *sql.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("readerspace/memberstore/postgres"),
	}
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new unpaid member; an existing code is never overwritten
func (s *Store) Create(ctx context.Context, m membership.Member) error {
	ctx, span := s.tracer.Start(ctx, "memberstore.create",
		trace.WithAttributes(attribute.String("member.code", m.Code)),
	)
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (library_code, name, email, contact, seat_no, paid, last_paid_month)
		VALUES ($1, $2, $3, $4, $5, FALSE, NULL)
	`, m.Code, m.Name, m.Email, m.Phone, m.Seat)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			span.SetAttributes(attribute.Bool("conflict.detected", true))
			return membership.ErrDuplicateCode
		}
		return fmt.Errorf("insert member: %w", err)
	}

	return nil
}

// Get retrieves a member by exact library code
func (s *Store) Get(ctx context.Context, code string) (*membership.Member, error) {
	ctx, span := s.tracer.Start(ctx, "memberstore.get",
		trace.WithAttributes(attribute.String("member.code", code)),
	)
	defer span.End()

	row := s.db.QueryRowContext(ctx, `
		SELECT library_code, name, email, contact, seat_no, paid, last_paid_month
		FROM members
		WHERE library_code = $1
	`, code)

	member, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("member.found", false))
		return nil, membership.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}

	return member, nil
}

// MarkFeePaid records the fee for month against the member
func (s *Store) MarkFeePaid(ctx context.Context, code, month string) error {
	ctx, span := s.tracer.Start(ctx, "memberstore.mark_fee_paid",
		trace.WithAttributes(
			attribute.String("member.code", code),
			attribute.String("fee.month", month),
		),
	)
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET paid = TRUE, last_paid_month = $1
		WHERE library_code = $2
	`, month, code)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return membership.ErrMemberNotFound
	}

	return nil
}

// List returns every member ordered by library code
func (s *Store) List(ctx context.Context) ([]*membership.Member, error) {
	ctx, span := s.tracer.Start(ctx, "memberstore.list")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT library_code, name, email, contact, seat_no, paid, last_paid_month
		FROM members
		ORDER BY library_code ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*membership.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	span.SetAttributes(attribute.Int("members.loaded", len(members)))
	return members, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*membership.Member, error) {
	var (
		member   membership.Member
		lastPaid sql.NullString
	)
	err := row.Scan(
		&member.Code,
		&member.Name,
		&member.Email,
		&member.Phone,
		&member.Seat,
		&member.FeePaid,
		&lastPaid,
	)
	if err != nil {
		return nil, err
	}
	member.LastPaidMonth = lastPaid.String
	return &member, nil
}

var _ membership.Store = (*Store)(nil)
