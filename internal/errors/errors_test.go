package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestExitCode_MapsWrappedZirconErrors(t *testing.T) {
	cause := stderrors.New("syntax error at or near \"CREAT\"")
	err := fmt.Errorf("startup: %w", NewMigrationFailed("000002_add_index", cause))

	if got := ExitCode(err); got != int(CodeDatabase) {
		t.Errorf("expected exit code %d, got %d", CodeDatabase, got)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be reachable through the wrapped error")
	}

	var mf *ErrMigrationFailed
	if !stderrors.As(err, &mf) {
		t.Fatal("expected errors.As to find ErrMigrationFailed")
	}
	if mf.Migration != "000002_add_index" {
		t.Errorf("unexpected migration name: %s", mf.Migration)
	}
}

func TestExitCode_PlainErrorIsInternal(t *testing.T) {
	if got := ExitCode(stderrors.New("boom")); got != int(CodeInternal) {
		t.Errorf("expected internal exit code, got %d", got)
	}
	if got := ExitCode(nil); got != 0 {
		t.Errorf("expected 0 for nil, got %d", got)
	}
}

func TestZirconError_MessageIncludesReasonAndSuggestion(t *testing.T) {
	err := NewConfigError("database.dsn", "must not be empty")
	msg := err.Error()

	for _, want := range []string{"database.dsn", "Reason: must not be empty", "ZIRCON_DATABASE_DSN"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in message, got:\n%s", want, msg)
		}
	}
}

func TestCircularDependency_ReasonShowsChain(t *testing.T) {
	err := NewCircularDependency([]string{"*app.A", "*app.B", "*app.A"})
	if err.Reason != "*app.A -> *app.B -> *app.A" {
		t.Errorf("unexpected reason: %s", err.Reason)
	}
}
