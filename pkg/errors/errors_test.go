package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, detailsOK: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusConflict, detailsOK: true},
		{code: CodeMissingSignature, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeInvalidSignature, status: http.StatusUnauthorized},
		{code: CodeSequenceAllocation, status: http.StatusServiceUnavailable, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCauseAndCode(t *testing.T) {
	cause := stdErrors.New("socket closed")
	err := fmt.Errorf("outer: %w", Wrap(CodeDependency, cause, "upload label"))

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if !IsCode(err, CodeDependency) {
		t.Fatalf("expected dependency code, got %v", As(err))
	}
	if IsCode(err, CodeInternal) {
		t.Fatal("unexpected internal code match")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{"grade": "A"})
	details, ok := err.Details().(map[string]any)
	if !ok || details["grade"] != "A" {
		t.Fatalf("unexpected details %#v", err.Details())
	}
}

func TestDumpExtractsPgFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_offer_id_key", TableName: "orders"}
	dump := Dump(Wrap(CodeConflict, pgErr, "insert order"))

	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "orders_offer_id_key" || dump.PGTable != "orders" {
		t.Fatalf("unexpected dump %+v", dump)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain entries, got %v", dump.Chain)
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load offer: %w", Newf(CodeNotFound, "offer %s not found", "abc"))
	if !stdErrors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("expected code match through wrapping")
	}
	if stdErrors.Is(err, New(CodeConflict, "")) {
		t.Fatal("different codes must not match")
	}
	if As(err).Message() != "offer abc not found" {
		t.Fatalf("unexpected message %q", As(err).Message())
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) {
		t.Fatal("nil is not retryable")
	}
	if !Retryable(stdErrors.New("plain")) {
		t.Fatal("untyped errors are treated as internal")
	}
	if Retryable(New(CodeValidation, "bad")) {
		t.Fatal("validation errors are final")
	}
	if !Retryable(Wrap(CodeDependency, stdErrors.New("timeout"), "carrier")) {
		t.Fatal("dependency errors are retryable")
	}
}

func TestClientFaultsExposeMessages(t *testing.T) {
	for code, meta := range metadataByCode {
		clientSide := meta.HTTPStatus < http.StatusInternalServerError
		if meta.ExposeMessage != clientSide {
			t.Fatalf("code %s: expose=%v status=%d", code, meta.ExposeMessage, meta.HTTPStatus)
		}
		if clientSide && meta.Retryable {
			t.Fatalf("code %s: client faults are not retryable", code)
		}
	}
}
