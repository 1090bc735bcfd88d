package clock

import (
	"testing"
	"time"
)

func TestNowTruncatesToStoragePrecision(t *testing.T) {
	local := time.FixedZone("UTC+2", 2*60*60)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 123456789, local)

	got := Now(func() time.Time { return fixed })

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
	if got.Nanosecond() != 123456000 {
		t.Fatalf("expected microsecond truncation, got %d ns", got.Nanosecond())
	}
	if !got.Equal(fixed.Truncate(time.Microsecond)) {
		t.Fatalf("expected same instant, got %v", got)
	}
}

func TestAfterAlwaysAdvancesPastPrevious(t *testing.T) {
	previous := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	testCases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{name: "clock-ahead", now: previous.Add(time.Second), want: previous.Add(time.Second)},
		{name: "clock-equal", now: previous, want: previous.Add(time.Microsecond)},
		{name: "clock-behind", now: previous.Add(-time.Hour), want: previous.Add(time.Microsecond)},
		{name: "clock-sub-precision", now: previous.Add(500 * time.Nanosecond), want: previous.Add(time.Microsecond)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := After(func() time.Time { return testCase.now }, previous)
			if !got.Equal(testCase.want) {
				t.Fatalf("got %v want %v", got, testCase.want)
			}
		})
	}
}
