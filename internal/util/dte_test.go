package util

import (
	"testing"
	"time"
)

func TestOptionDTEAt(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expiration string
		expected   int
	}{
		{
			name:       "compact layout",
			expiration: "20250627",
			expected:   25,
		},
		{
			name:       "iso layout",
			expiration: "2025-06-27",
			expected:   25,
		},
		{
			name:       "same day",
			expiration: "20250602",
			expected:   0,
		},
		{
			name:       "expired date is negative",
			expiration: "20250530",
			expected:   -3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dte, err := optionDTEAt(tt.expiration, now)
			if err != nil {
				t.Fatalf("optionDTEAt(%q) returned error: %v", tt.expiration, err)
			}
			if dte != tt.expected {
				t.Errorf("optionDTEAt(%q) = %d, expected %d", tt.expiration, dte, tt.expected)
			}
		})
	}
}

func TestOptionDTEUnparseable(t *testing.T) {
	for _, expiration := range []string{"", "June 27 2025", "2025/06/27"} {
		if _, err := OptionDTE(expiration); err == nil {
			t.Errorf("OptionDTE(%q) expected error, got nil", expiration)
		}
	}
}
