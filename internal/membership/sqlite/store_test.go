package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"readerspace/internal/membership"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "library.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store, path
}

func alice() membership.Member {
	return membership.Member{
		Code:  "A1",
		Name:  "Alice",
		Email: "a@x.com",
		Phone: "+911234567890",
		Seat:  "S1",
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	store, path := openTestStore(t)
	require.NoError(t, store.Create(context.Background(), alice()))
	require.NoError(t, store.Close())

	reopened, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer reopened.Close()

	var applied int
	require.NoError(t, reopened.sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)

	member, err := reopened.Get(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", member.Name)
}

func TestCreateThenGet(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	in := alice()
	in.FeePaid = true
	in.LastPaidMonth = "March 2024"
	require.NoError(t, store.Create(ctx, in))

	member, err := store.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, &membership.Member{
		Code:  "A1",
		Name:  "Alice",
		Email: "a@x.com",
		Phone: "+911234567890",
		Seat:  "S1",
	}, member)
}

func TestCreateDuplicateKeepsFirst(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, alice()))

	second := alice()
	second.Name = "Mallory"
	err := store.Create(ctx, second)
	assert.ErrorIs(t, err, membership.ErrDuplicateCode)

	member, err := store.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", member.Name)
}

func TestGetIsExactMatch(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, alice()))

	_, err := store.Get(ctx, "a1")
	assert.ErrorIs(t, err, membership.ErrMemberNotFound)

	_, err = store.Get(ctx, "nonexistent")
	assert.ErrorIs(t, err, membership.ErrMemberNotFound)
}

func TestMarkFeePaidIsIdempotent(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, alice()))

	require.NoError(t, store.MarkFeePaid(ctx, "A1", "March 2024"))
	first, err := store.Get(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, first.FeePaid)
	assert.Equal(t, "March 2024", first.LastPaidMonth)

	require.NoError(t, store.MarkFeePaid(ctx, "A1", "March 2024"))
	second, err := store.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarkFeePaidUnknownCode(t *testing.T) {
	store, _ := openTestStore(t)

	err := store.MarkFeePaid(context.Background(), "missing", "March 2024")
	assert.ErrorIs(t, err, membership.ErrMemberNotFound)
}

func TestList(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	members, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)

	bob := membership.Member{Code: "B2", Name: "Bob", Email: "b@x.com", Phone: "+441234567890"}
	require.NoError(t, store.Create(ctx, bob))
	require.NoError(t, store.Create(ctx, alice()))

	members, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "A1", members[0].Code)
	assert.Equal(t, "B2", members[1].Code)
}

func TestStoredRowLayout(t *testing.T) {
	store, path := openTestStore(t)
	require.NoError(t, store.Create(context.Background(), alice()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var (
		paid     int
		lastPaid sql.NullString
	)
	require.NoError(t, db.QueryRow(
		`SELECT paid, last_paid_month FROM members WHERE library_code = ?`, "A1",
	).Scan(&paid, &lastPaid))
	assert.Equal(t, 0, paid)
	assert.False(t, lastPaid.Valid)
}

func TestCreateLookupRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	n := 0

	rapid.Check(t, func(t *rapid.T) {
		n++
		in := membership.Member{
			Code:  fmt.Sprintf("%s-%d", rapid.StringMatching(`[A-Za-z0-9]{1,8}`).Draw(t, "code"), n),
			Name:  rapid.StringMatching(`[A-Za-z ]{1,20}`).Draw(t, "name"),
			Email: rapid.StringMatching(`[a-z]{1,8}@[a-z]{1,8}\.com`).Draw(t, "email"),
			Phone: rapid.StringMatching(`\+[0-9]{10,13}`).Draw(t, "phone"),
			Seat:  rapid.StringMatching(`[A-Z0-9]{0,4}`).Draw(t, "seat"),
		}

		if err := store.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := store.Get(ctx, in.Code)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if *got != in {
			t.Fatalf("round trip mismatch: got %+v want %+v", *got, in)
		}
		if err := store.Create(ctx, in); err != membership.ErrDuplicateCode {
			t.Fatalf("second create: got %v want ErrDuplicateCode", err)
		}
	})
}
