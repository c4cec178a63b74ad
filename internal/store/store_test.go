package store

import (
	"testing"
	"time"
)

func TestDetectionCacheFresh(t *testing.T) {
	ttl := time.Hour

	tests := []struct {
		name  string
		cache *DetectionCache
		want  bool
	}{
		{"nil cache", nil, false},
		{"zero timestamp", &DetectionCache{}, false},
		{"recent", &DetectionCache{Timestamp: time.Now().Add(-10 * time.Minute).Unix()}, true},
		{"expired", &DetectionCache{Timestamp: time.Now().Add(-2 * time.Hour).Unix()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cache.Fresh(ttl); got != tt.want {
				t.Errorf("Fresh(%v) = %v, want %v", ttl, got, tt.want)
			}
		})
	}
}
