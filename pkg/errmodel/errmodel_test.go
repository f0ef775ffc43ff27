package errmodel

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAndFrom(t *testing.T) {
	e := Validation("invalid_name", "bad schema name", map[string]any{"name": "Event"})
	if e.Category != CategoryValidation || e.Code != "invalid_name" {
		t.Fatalf("unexpected: %#v", e)
	}
	if got := From(e); got != e {
		t.Fatalf("From should return same error instance")
	}
	if !IsValidation(e) {
		t.Fatal("expected validation")
	}
}

func TestTaxonomyPredicates(t *testing.T) {
	nf := NotFound("app not found", map[string]any{"app_id": "x"})
	cf := Conflict("app already exists", nil, nil)
	if !IsNotFound(nf) || IsValidation(nf) || IsConflict(nf) {
		t.Fatalf("not found predicates wrong: %v", nf)
	}
	if !IsConflict(cf) || IsValidation(cf) {
		t.Fatalf("conflict predicates wrong: %v", cf)
	}
	if IsExternal(errors.New("plain")) {
		t.Fatal("plain errors are not external")
	}
}

func TestExternalUnwrapsCause(t *testing.T) {
	cause := errors.New("bucket unavailable")
	err := fmt.Errorf("pass: %w", External("upload", "upload registry document", map[string]any{"path": "a/b"}, cause))
	if !IsExternal(err) {
		t.Fatal("expected external")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must be reachable through errors.Is")
	}
	if !strings.Contains(err.Error(), "bucket unavailable") {
		t.Fatalf("message lost cause: %s", err)
	}
}

func TestWriteHTTP_StatusAndEnvelope(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("", "oops", nil), 400},
		{NotFound("missing", nil), 404},
		{Conflict("dup", nil, nil), 409},
		{External("create_table", "boom", nil, errors.New("x")), 502},
		{errors.New("unknown"), 500},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		WriteHTTP(rr, req, tc.err)
		if rr.Code != tc.want {
			t.Fatalf("%v: status=%d want %d", tc.err, rr.Code, tc.want)
		}
	}

	rr := httptest.NewRecorder()
	WriteHTTP(rr, httptest.NewRequest("GET", "/", nil), Validation("bad_json", "oops", nil))
	body := rr.Body.String()
	if !strings.Contains(body, "\"category\":\"validation\"") {
		t.Fatalf("body missing category: %s", body)
	}
	if !strings.Contains(body, "\"code\":\"bad_json\"") {
		t.Fatalf("body missing code: %s", body)
	}
}
