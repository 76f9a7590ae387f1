package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "lockbeam.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get(context.Background(), Key{UserID: "u1", Field: FieldCurrentCode})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("missing key should report not found")
	}
}

func TestSQLiteSetGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := Key{UserID: "u1", Field: FieldCurrentCode}

	if err := s.Set(ctx, key, "aB3xY9"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != "aB3xY9" {
		t.Errorf("Get = (%q, %v), want (aB3xY9, true)", v, ok)
	}

	// Overwrite.
	if err := s.Set(ctx, key, "Zz0000"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, _, _ = s.Get(ctx, key)
	if v != "Zz0000" {
		t.Errorf("overwritten value = %q, want Zz0000", v)
	}
}

func TestSQLiteSetManyAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	record := map[string]string{
		FieldEndTime:        "1767225600000",
		FieldCurrentCode:    "qW4rT7",
		FieldIsTimerRunning: "true",
		FieldRemainingTries: "3",
		FieldOwningUserID:   "u1",
	}
	if err := s.SetMany(ctx, "u1", record); err != nil {
		t.Fatalf("SetMany: %v", err)
	}

	for field, want := range record {
		v, ok, err := s.Get(ctx, Key{UserID: "u1", Field: field})
		if err != nil {
			t.Fatalf("Get %s: %v", field, err)
		}
		if !ok || v != want {
			t.Errorf("%s = (%q, %v), want (%q, true)", field, v, ok, want)
		}
	}
}

func TestSQLiteUsersIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Set(ctx, Key{UserID: "u1", Field: FieldCurrentCode}, "codeA1")
	s.Set(ctx, Key{UserID: "u2", Field: FieldCurrentCode}, "codeB2")

	v, _, _ := s.Get(ctx, Key{UserID: "u1", Field: FieldCurrentCode})
	if v != "codeA1" {
		t.Errorf("u1 value = %q, want codeA1", v)
	}
	v, _, _ = s.Get(ctx, Key{UserID: "u2", Field: FieldCurrentCode})
	if v != "codeB2" {
		t.Errorf("u2 value = %q, want codeB2", v)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lockbeam.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(ctx, Key{UserID: "u1", Field: FieldEndTime}, "1700000000000"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	v, ok, err := s2.Get(ctx, Key{UserID: "u1", Field: FieldEndTime})
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !ok || v != "1700000000000" {
		t.Errorf("value after reopen = (%q, %v), want (1700000000000, true)", v, ok)
	}
}
