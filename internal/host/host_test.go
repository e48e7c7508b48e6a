package host

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrSnakeDoc/parley/internal/logger"
)

func TestExposeAndRoute(t *testing.T) {
	h := NewHTTPHost("example.org", ":0", logger.Nop())

	if err := h.Expose("conference", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})); err != nil {
		t.Fatalf("Expose() = %v", err)
	}

	tests := []struct {
		name       string
		host       string
		wantStatus int
	}{
		{
			name:       "exposed subdomain",
			host:       "conference.example.org",
			wantStatus: http.StatusTeapot,
		},
		{
			name:       "exposed subdomain with port",
			host:       "conference.example.org:5270",
			wantStatus: http.StatusTeapot,
		},
		{
			name:       "unknown subdomain",
			host:       "other.example.org",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrong base domain",
			host:       "conference.example.com",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "bare base domain",
			host:       "example.org",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestWithdraw(t *testing.T) {
	h := NewHTTPHost("example.org", ":0", logger.Nop())

	if err := h.Expose("conference", http.NotFoundHandler()); err != nil {
		t.Fatalf("Expose() = %v", err)
	}
	if err := h.Withdraw("conference"); err != nil {
		t.Errorf("Withdraw() = %v", err)
	}
	if err := h.Withdraw("conference"); !errors.Is(err, ErrNotExposed) {
		t.Errorf("second Withdraw() = %v, want ErrNotExposed", err)
	}
}

func TestExposeEmptySubdomainFails(t *testing.T) {
	h := NewHTTPHost("example.org", ":0", logger.Nop())
	if err := h.Expose("", http.NotFoundHandler()); err == nil {
		t.Error("Expose(\"\") = nil, want error")
	}
}
