package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPCheckerHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL)
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("expected healthy result, got %s", result.Message)
	}
}

func TestHTTPCheckerUnhealthyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Error("expected unhealthy result for 503 response")
	}
}

func TestHTTPCheckerUnreachable(t *testing.T) {
	checker := NewHTTPChecker("http://127.0.0.1:1")
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Error("expected unhealthy result for unreachable endpoint")
	}
}

func TestHTTPCheckerCustomStatusRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL).WithStatusRange(201, 201)
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("expected 201 to be in custom range, got %s", result.Message)
	}
}
