package validator

import (
	"errors"
	"testing"
)

func TestValidateCrawlRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		url     string
		wantMsg string
	}{
		{"valid https", "https://example.com/page", ""},
		{"valid http with spaces", "  http://example.com  ", ""},
		{"missing", "", "URL is required"},
		{"blank", "   ", "URL is required"},
		{"relative", "page.html", "URL must be an absolute http or https URL"},
		{"mailto", "mailto:someone@example.com", "URL must be an absolute http or https URL"},
		{"no host", "https://", "URL must be an absolute http or https URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := &CrawlRequest{URL: tt.url}
			err := ValidateCrawlRequest(req)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if got := ve.Message(); got != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestValidateTrimsURL(t *testing.T) {
	req := &CrawlRequest{URL: " https://example.com/ "}
	if err := ValidateCrawlRequest(req); err != nil {
		t.Fatal(err)
	}
	if req.URL != "https://example.com/" {
		t.Errorf("URL = %q", req.URL)
	}
}
