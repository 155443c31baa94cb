package fatcore

import (
	"testing"
	"time"
)

func TestEncodeDate(t *testing.T) {
	date := time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)

	encoded := EncodeDate(date)
	if got := ParseDate(encoded); !got.Equal(date) {
		t.Errorf("ParseDate(EncodeDate()) = %v, want %v", got, date)
	}

	if got := EncodeDate(time.Time{}); got != 0 {
		t.Errorf("EncodeDate(zero) = %v, want 0", got)
	}
	if got := EncodeDate(time.Date(1975, 1, 1, 0, 0, 0, 0, time.UTC)); got != 0 {
		t.Errorf("EncodeDate(before epoch) = %v, want 0", got)
	}
	if !ParseDate(0).IsZero() {
		t.Error("ParseDate(0) is not the zero time")
	}
}

func TestEncodeTime(t *testing.T) {
	clock := time.Date(1, 1, 1, 13, 45, 31, 0, time.UTC)

	// The on-disk form has a granularity of 2 seconds, 31 comes back as 30.
	want := time.Date(1, 1, 1, 13, 45, 30, 0, time.UTC)
	if got := ParseTime(EncodeTime(clock)); !got.Equal(want) {
		t.Errorf("ParseTime(EncodeTime()) = %v, want %v", got, want)
	}

	if got := EncodeTime(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)); got != 0 {
		t.Errorf("EncodeTime(midnight) = %v, want 0", got)
	}
}
