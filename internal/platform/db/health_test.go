package db

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type fakePinger struct {
	name string
	err  error
}

func (f fakePinger) Name() string { return f.name }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestCheckAll(t *testing.T) {
	got := checkAll(context.Background(),
		fakePinger{name: "redis"},
		fakePinger{name: "amqp", err: errors.New("connection refused")},
	)

	if got["redis"].Status != "up" {
		t.Errorf("expected redis up, got %+v", got["redis"])
	}
	if got["amqp"].Status != "down" || got["amqp"].Error != "connection refused" {
		t.Errorf("expected amqp down with error, got %+v", got["amqp"])
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		deps     map[string]DependencyStatus
		wantCode int
		want     string
	}{
		{
			name:     "all up",
			deps:     map[string]DependencyStatus{"postgres": {Status: "up"}, "redis": {Status: "up"}},
			wantCode: http.StatusOK,
			want:     "healthy",
		},
		{
			name:     "cache down",
			deps:     map[string]DependencyStatus{"postgres": {Status: "up"}, "redis": {Status: "down"}},
			wantCode: http.StatusOK,
			want:     "degraded",
		},
		{
			name:     "postgres down",
			deps:     map[string]DependencyStatus{"postgres": {Status: "down"}, "redis": {Status: "up"}},
			wantCode: http.StatusServiceUnavailable,
			want:     "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, status := overallStatus(tt.deps)
			if code != tt.wantCode || status != tt.want {
				t.Errorf("overallStatus() = %d %s, want %d %s", code, status, tt.wantCode, tt.want)
			}
		})
	}
}
