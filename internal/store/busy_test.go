package store

import (
	"context"
	"errors"
	"testing"
)

func TestIsBusyError(t *testing.T) {
	t.Parallel()

	if isBusyError(nil) {
		t.Error("nil should not be busy")
	}
	if isBusyError(errors.New("constraint failed")) {
		t.Error("unrelated error should not be busy")
	}
	if !isBusyError(errors.New("SQLITE_BUSY: database is locked (5)")) {
		t.Error("SQLITE_BUSY should be busy")
	}
	if !isBusyError(errors.New("database is locked")) {
		t.Error("locked should be busy")
	}
}

func TestWithBusyRetryRecovers(t *testing.T) {
	t.Parallel()

	calls := 0
	err := withBusyRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithBusyRetryStopsOnOtherErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	wantErr := errors.New("no such table")
	err := withBusyRetry(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
