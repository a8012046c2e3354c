package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedact(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"q=alice@example.com", "q=[REDACTED:email]"},
		{"phone is 919876543210", "phone is [REDACTED:phone]"},
		{"pan ABCDE1234F end", "pan [REDACTED:pan] end"},
		{"id 0b9a3f2e-1c4d-4a5b-8f6e-0d1c2b3a4f5e", "id [REDACTED:id]"},
		{"nothing sensitive here", "nothing sensitive here"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := redact(tc.in); got != tc.want {
			t.Errorf("redact(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLogger_MasksTokenHeaderAndAttachesLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	var hadLogger bool
	r.GET("/", func(c *gin.Context) {
		_, hadLogger = c.Get("logger")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/?email=alice@example.com", nil)
	req.Header.Set("X-Bot-Token", "topsecret")
	req.Header.Set("X-Api-Key", "alsosecret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !hadLogger {
		t.Fatal("request-scoped logger not attached")
	}
}

func TestRedact_MixedLine(t *testing.T) {
	line := "user alice@example.com called +91 98765 43210 with PAN ABCDE1234F"
	got := redact(line)
	for _, leak := range []string{"alice@example.com", "98765", "ABCDE1234F"} {
		if strings.Contains(got, leak) {
			t.Fatalf("redacted line leaks %q: %s", leak, got)
		}
	}
}
