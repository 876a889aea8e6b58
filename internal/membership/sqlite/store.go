// Package sqlite provides the single-file SQLite member store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"readerspace/internal/membership"
	"readerspace/internal/membership/sqlite/migrations"
)

// Store provides SQLite-backed member persistence.
type Store struct {
	sqlDB  *sql.DB
	tracer trace.Tracer
}

// Open opens the member database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One operator session at a time; a single connection keeps writes serialized.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		sqlDB:  sqlDB,
		tracer: otel.Tracer("readerspace/memberstore/sqlite"),
	}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Create inserts a new member with no recorded payment.
func (s *Store) Create(ctx context.Context, m membership.Member) error {
	ctx, span := s.tracer.Start(ctx, "memberstore.create",
		trace.WithAttributes(attribute.String("member.code", m.Code)),
	)
	defer span.End()

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO members (library_code, name, email, contact, seat_no, paid, last_paid_month)
		 VALUES (?, ?, ?, ?, ?, 0, NULL)`,
		m.Code, m.Name, m.Email, m.Phone, m.Seat,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return membership.ErrDuplicateCode
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// Get returns the member stored under code.
func (s *Store) Get(ctx context.Context, code string) (*membership.Member, error) {
	ctx, span := s.tracer.Start(ctx, "memberstore.get",
		trace.WithAttributes(attribute.String("member.code", code)),
	)
	defer span.End()

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT library_code, name, email, contact, seat_no, paid, last_paid_month
		 FROM members WHERE library_code = ?`,
		code,
	)
	member, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, membership.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

// MarkFeePaid records the fee for month.
func (s *Store) MarkFeePaid(ctx context.Context, code, month string) error {
	ctx, span := s.tracer.Start(ctx, "memberstore.mark_fee_paid",
		trace.WithAttributes(
			attribute.String("member.code", code),
			attribute.String("fee.month", month),
		),
	)
	defer span.End()

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE members SET paid = 1, last_paid_month = ? WHERE library_code = ?`,
		month, code,
	)
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

// List returns all members ordered by code.
func (s *Store) List(ctx context.Context) ([]*membership.Member, error) {
	ctx, span := s.tracer.Start(ctx, "memberstore.list")
	defer span.End()

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT library_code, name, email, contact, seat_no, paid, last_paid_month
		 FROM members ORDER BY library_code`,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
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
	return members, nil
}

func scanMember(row interface{ Scan(...any) error }) (*membership.Member, error) {
	var (
		member   membership.Member
		paid     int64
		lastPaid sql.NullString
	)
	if err := row.Scan(
		&member.Code,
		&member.Name,
		&member.Email,
		&member.Phone,
		&member.Seat,
		&paid,
		&lastPaid,
	); err != nil {
		return nil, err
	}
	member.FeePaid = paid != 0
	member.LastPaidMonth = lastPaid.String
	return &member, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ membership.Store = (*Store)(nil)
