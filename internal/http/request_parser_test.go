package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTextValueAcceptsStringsAndNumbers(t *testing.T) {
	cases := map[string]string{
		`"12.50"`:     "12.50",
		`12.5`:        "12.5",
		`250`:         "250",
		`" 7\u0001 "`: "7",
		`null`:        "",
	}
	for in, want := range cases {
		var v textValue
		if err := json.Unmarshal([]byte(in), &v); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if v.String() != want {
			t.Errorf("%s: got %q want %q", in, v, want)
		}
	}
	var v textValue
	if err := json.Unmarshal([]byte(`true`), &v); err == nil {
		t.Fatalf("booleans should be rejected")
	}
}

func TestDecodeJSON(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		allowEmpty bool
		wantReq    bool
		wantInput  bool
	}{
		{"valid", `{"theme":"dark"}`, false, false, false},
		{"empty rejected", ``, false, true, false},
		{"malformed", `{"theme":`, false, true, false},
		{"validation", `{"theme":"blue"}`, false, false, true},
		{"missing required", `{}`, false, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var req startRequest
			err := decodeJSON(httptest.NewRecorder(), r, &req, maxBodyBytes, tc.allowEmpty)

			var reqErr *requestError
			var inErr *inputError
			switch {
			case tc.wantReq && !errors.As(err, &reqErr):
				t.Fatalf("expected request error, got %v", err)
			case tc.wantInput && !errors.As(err, &inErr):
				t.Fatalf("expected input error, got %v", err)
			case !tc.wantReq && !tc.wantInput && err != nil:
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestValidationMessageUsesJSONNames(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mode":"weekly"}`))
	var req customChallengeRequest
	err := decodeJSON(httptest.NewRecorder(), r, &req, maxBodyBytes, false)
	if err == nil || !strings.Contains(err.Error(), "mode must satisfy oneof") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"`+strings.Repeat("a", 64)+`"}`))
	var req adviceRequest
	var reqErr *requestError
	if err := decodeJSON(httptest.NewRecorder(), r, &req, 16, false); !errors.As(err, &reqErr) {
		t.Fatalf("expected request error for oversized body, got %v", err)
	}
}
