package util

import (
	"testing"
	"time"
)

func TestStepClock(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewStepClock(start, time.Second)

	if got := c.Peek(); !got.Equal(start) {
		t.Fatalf("Peek() = %v, want %v", got, start)
	}

	for i := 0; i < 3; i++ {
		want := start.Add(time.Duration(i) * time.Second)
		if got := c.Now(); !got.Equal(want) {
			t.Errorf("Now() call %d = %v, want %v", i, got, want)
		}
	}
}

func TestStepClockDefaultStep(t *testing.T) {
	c := NewStepClock(time.Unix(0, 0), 0)
	c.Now()
	if got := c.Now().Unix(); got != 1 {
		t.Errorf("expected default step of one second, got %d", got)
	}
}
