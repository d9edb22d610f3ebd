package vegehub

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func fastVerify() *VerificationOptions {
	return &VerificationOptions{MaxAttempts: 2, Retries: 1}
}

func TestCheckSetup(t *testing.T) {
	tests := []struct {
		name          string
		blob          string
		wantMismatch  int
		wantSubstring string
	}{
		{
			name: "endpoints match",
			blob: `{"endpoints": [{"id": 1, "name": "HomeAssistant", "type": "custom", "enabled": true,
				"config": {"api_key": "1234567890ABCD", "data_format": "json", "url": "http://example.com"}}]}`,
		},
		{
			name:          "endpoint missing",
			blob:          `{"endpoints": [` + vegeCloudEndpoint + `]}`,
			wantMismatch:  1,
			wantSubstring: "not found",
		},
		{
			name: "endpoint disabled with wrong url",
			blob: `{"endpoints": [{"id": 1, "name": "HomeAssistant", "type": "custom", "enabled": false,
				"config": {"api_key": "1234567890ABCD", "data_format": "json", "url": "http://old"}}]}`,
			wantMismatch:  2,
			wantSubstring: "endpoint url",
		},
		{
			name: "legacy match",
			blob: `{"api_key": "1234567890ABCD", "hub": {"server_url": "http://example.com", "server_type": 3}}`,
		},
		{
			name:          "legacy wrong server type",
			blob:          `{"api_key": "1234567890ABCD", "hub": {"server_url": "http://example.com", "server_type": 1}}`,
			wantMismatch:  1,
			wantSubstring: "server_type",
		},
		{
			name:          "unrecognized",
			blob:          `{"hub": {}}`,
			wantMismatch:  1,
			wantSubstring: "unrecognized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckSetup(decodeBlob(t, tt.blob), testAPIKey, testServer)
			if len(got) != tt.wantMismatch {
				t.Fatalf("CheckSetup() = %v, want %d mismatch(es)", got, tt.wantMismatch)
			}
			if tt.wantSubstring != "" && !strings.Contains(strings.Join(got, "; "), tt.wantSubstring) {
				t.Errorf("CheckSetup() = %v, want mention of %q", got, tt.wantSubstring)
			}
		})
	}
}

func TestCheckSetup_AfterReconcile(t *testing.T) {
	for _, raw := range []string{
		`{"endpoints": [` + vegeCloudEndpoint + `]}`,
		`{"hub": {"server_type": 1}, "api_key": "old"}`,
	} {
		updated, ok := ReconcileConfig(decodeBlob(t, raw), testAPIKey, testServer)
		if !ok {
			t.Fatalf("ReconcileConfig(%s) = false", raw)
		}
		if m := CheckSetup(updated, testAPIKey, testServer); len(m) != 0 {
			t.Errorf("reconciled config should verify, got %v", m)
		}
	}
}

func TestFormatMismatches(t *testing.T) {
	if got := formatMismatches(nil); got != "none" {
		t.Errorf("formatMismatches(nil) = %q", got)
	}
	if got := formatMismatches([]string{"a"}); got != "a" {
		t.Errorf("formatMismatches(1) = %q", got)
	}
	if got := formatMismatches([]string{"a", "b"}); got != "2 mismatches: a; b" {
		t.Errorf("formatMismatches(2) = %q", got)
	}
}

func TestSetupAndVerify(t *testing.T) {
	device := newStatefulConfigHub(t, `{"endpoints": [`+vegeCloudEndpoint+`]}`)
	hub := device.hub()

	result := hub.SetupAndVerify(context.Background(), testAPIKey, testServer, DefaultRetries, fastVerify())
	if !result.Success {
		t.Fatalf("SetupAndVerify() failed: %v", result.Error)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if result.Schema != "endpoints" {
		t.Errorf("Schema = %q, want endpoints", result.Schema)
	}
	if result.Error != nil {
		t.Errorf("Error = %v, want nil", result.Error)
	}
}

func TestVerifySetup_Mismatch(t *testing.T) {
	fake := newFakeHub(t).on(http.MethodPost, PathConfigGet,
		replyJSON(`{"hub": {"server_url": "http://old", "server_type": 1}, "api_key": "old"}`))
	hub := fake.hub()

	result := hub.VerifySetup(context.Background(), testAPIKey, testServer, fastVerify())
	if result.Success {
		t.Fatal("VerifySetup() succeeded against an unchanged config")
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", result.Attempts)
	}
	if len(result.Mismatches) != 3 {
		t.Errorf("Mismatches = %v, want 3", result.Mismatches)
	}
	if result.Schema != "legacy" {
		t.Errorf("Schema = %q, want legacy", result.Schema)
	}
	if result.Error == nil || !strings.Contains(result.Error.Error(), "after 2 attempt(s)") {
		t.Errorf("Error = %v", result.Error)
	}
}

func TestVerifySetup_ReadFailure(t *testing.T) {
	fake := newFakeHub(t).on(http.MethodPost, PathConfigGet, replyStatus(http.StatusInternalServerError))
	hub := fake.hub()

	result := hub.VerifySetup(context.Background(), testAPIKey, testServer, fastVerify())
	if result.Success {
		t.Fatal("VerifySetup() succeeded without a readable config")
	}
	if !IsConnectionError(result.Error) {
		t.Errorf("Error = %v, want connection error", result.Error)
	}
}

func TestSetupAndVerify_Unrecognized(t *testing.T) {
	fake := newFakeHub(t).on(http.MethodPost, PathConfigGet, replyJSON(`{"hub": {}}`))
	hub := fake.hub()

	result := hub.SetupAndVerify(context.Background(), testAPIKey, testServer, 1, fastVerify())
	if result.Success || result.Error == nil {
		t.Fatalf("SetupAndVerify() = %+v, want failure", result)
	}
	if result.Attempts != 0 {
		t.Errorf("Attempts = %d, verification should not run", result.Attempts)
	}
}

func TestVerifySetup_CancelledContext(t *testing.T) {
	fake := newFakeHub(t).on(http.MethodPost, PathConfigGet, replyJSON(`{}`))
	hub := fake.hub()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := hub.VerifySetup(ctx, testAPIKey, testServer, fastVerify())
	if result.Success || result.Error == nil {
		t.Fatalf("VerifySetup() = %+v, want context error", result)
	}
	if fake.callCount(http.MethodPost, PathConfigGet) != 0 {
		t.Error("no config read should happen once the context is done")
	}
}
