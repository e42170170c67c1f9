package apierror

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		data     string
		wantOK   bool
		wantCode string
	}{
		{"token expired", `{"code":"TOKEN_EXPIRED","message":"expired"}`, true, CodeTokenExpired},
		{"message only", `{"message":"nope"}`, true, ""},
		{"leading whitespace", "  \n{\"code\":\"VALIDATION_ERROR\"}", true, "VALIDATION_ERROR"},
		{"empty", "", false, ""},
		{"plain text", "bad gateway", false, ""},
		{"array", `[1,2]`, false, ""},
		{"truncated", `{"code":`, false, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, ok := Parse([]byte(tc.data))
			if ok != tc.wantOK {
				t.Fatalf("Parse ok = %v, want %v", ok, tc.wantOK)
			}
			if b.Code != tc.wantCode {
				t.Errorf("Code = %q, want %q", b.Code, tc.wantCode)
			}
		})
	}
}

func TestIsTokenExpired(t *testing.T) {
	if !IsTokenExpired([]byte(`{"code":"TOKEN_EXPIRED"}`)) {
		t.Error("IsTokenExpired should be true for TOKEN_EXPIRED")
	}
	if IsTokenExpired([]byte(`{"code":"VALIDATION_ERROR"}`)) {
		t.Error("IsTokenExpired should be false for other codes")
	}
	if IsTokenExpired([]byte("TOKEN_EXPIRED")) {
		t.Error("IsTokenExpired should be false for non-JSON bodies")
	}
}

func TestFromResponse_DefaultMessage(t *testing.T) {
	e := FromResponse(502, []byte("<html>"), "request failed")
	if e.Message != "request failed" {
		t.Errorf("Message = %q, want default", e.Message)
	}
	if e.Code != "" {
		t.Errorf("Code = %q, want empty", e.Code)
	}
	if !errors.Is(e, ErrAPI) {
		t.Error("errors.Is(e, ErrAPI) should be true")
	}

	e = FromResponse(400, []byte(`{"code":"VALIDATION_ERROR","message":"name is required"}`), "request failed")
	if e.Message != "name is required" || e.Code != "VALIDATION_ERROR" || e.Status != 400 {
		t.Errorf("FromResponse = %+v", e)
	}
}
