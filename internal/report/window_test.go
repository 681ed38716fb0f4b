package report

import (
	"errors"
	"testing"
	"time"

	"github.com/franz/music-ledger/internal/util"
)

func TestParseWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		input    string
		expected time.Time
	}{
		{"0D", now},
		{"30D", time.Date(2024, 2, 14, 18, 30, 0, 0, time.UTC)},
		{"2w", time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC)},
		{"1M", time.Date(2024, 2, 15, 18, 30, 0, 0, time.UTC)},
		{"6M", time.Date(2023, 9, 15, 18, 30, 0, 0, time.UTC)},
		{" 1Y ", time.Date(2023, 3, 15, 18, 30, 0, 0, time.UTC)},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := ParseWindow(tt.input, now)
		if err != nil {
			t.Errorf("ParseWindow(%q) failed: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.expected) {
			t.Errorf("ParseWindow(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseWindowInvalid(t *testing.T) {
	now := time.Now()

	for _, input := range []string{"", "D", "30", "5X", "-3D", "2024-13-01", "yesterday"} {
		if _, err := ParseWindow(input, now); !errors.Is(err, util.ErrInvalidConfig) {
			t.Errorf("ParseWindow(%q): expected ErrInvalidConfig, got %v", input, err)
		}
	}
}
