package backoff_test

import (
	"testing"
	"time"

	"github.com/ddeklerk28/groupq/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(2 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 2*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 2*time.Second)
		}
	}
}

func TestLinear_GrowsLinearly(t *testing.T) {
	l := backoff.NewLinear(time.Second, time.Minute)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{5, 5 * time.Second},
		{30, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := l.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestLinear_CapsAtMax(t *testing.T) {
	l := backoff.NewLinear(time.Second, 10*time.Second)
	if got := l.Delay(100); got != 10*time.Second {
		t.Errorf("Delay(100) = %v, want cap %v", got, 10*time.Second)
	}
}

func TestExponential_Doubles(t *testing.T) {
	e := backoff.NewExponential(time.Second, 0)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 5*time.Second)
	if got := e.Delay(10); got != 5*time.Second {
		t.Errorf("Delay(10) = %v, want cap %v", got, 5*time.Second)
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 8*time.Second)

	for attempt := 1; attempt <= 6; attempt++ {
		upper := e.Delay(attempt)
		_ = upper
		for range 50 {
			got := e.Delay(attempt)
			if got < 0 {
				t.Fatalf("Delay(%d) = %v, negative", attempt, got)
			}
			if got > 8*time.Second {
				t.Fatalf("Delay(%d) = %v, exceeds max", attempt, got)
			}
		}
	}
}

func TestDefaultStrategy_NotNil(t *testing.T) {
	s := backoff.DefaultStrategy()
	if s == nil {
		t.Fatal("DefaultStrategy returned nil")
	}
	if d := s.Delay(1); d < 0 || d > 30*time.Second {
		t.Errorf("Delay(1) = %v, outside [0, 30s]", d)
	}
}
