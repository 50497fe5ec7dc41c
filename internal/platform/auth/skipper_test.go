package auth

import "testing"

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/health/live", true},
		{"/health/db", false},
		{"/api/v1/visits", false},
		{"/api/v1/patients/:id/history", false},
	}
	for _, tt := range tests {
		if got := IsPublicPath(tt.path); got != tt.want {
			t.Errorf("IsPublicPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
