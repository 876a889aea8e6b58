package sqlite

import "testing"

func TestExtractUp(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id TEXT);\n-- +migrate Down\nDROP TABLE a;\n"
	got := extractUp(content)
	if got != "\nCREATE TABLE a (id TEXT);\n" {
		t.Fatalf("unexpected up section: %q", got)
	}
	if extractUp("SELECT 1;") != "SELECT 1;" {
		t.Fatal("expected content without markers to pass through")
	}
}
