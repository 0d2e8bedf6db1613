package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSplitAndTrim(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"https://a.example", []string{"https://a.example"}},
		{" https://a.example , ,https://b.example ", []string{"https://a.example", "https://b.example"}},
	}
	for _, tc := range cases {
		if got := splitAndTrim(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("splitAndTrim(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRouterReadinessGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newRouter(quietLogger())

	cases := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/healthz", http.StatusNoContent},
		// no database or redis connected yet
		{http.MethodGet, "/api/imports/runs", http.StatusServiceUnavailable},
		{http.MethodPost, "/pubsub/lease-import", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.code {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.code, w.Code)
		}
	}
}

func TestIntFromEnv(t *testing.T) {
	t.Setenv("RATE_TEST_VALUE", "42")
	if got := intFromEnv("RATE_TEST_VALUE", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("RATE_TEST_VALUE", "-3")
	if got := intFromEnv("RATE_TEST_VALUE", 7); got != 7 {
		t.Fatalf("expected default for negative value, got %d", got)
	}
	if got := intFromEnv("RATE_TEST_MISSING", 7); got != 7 {
		t.Fatalf("expected default, got %d", got)
	}
}
