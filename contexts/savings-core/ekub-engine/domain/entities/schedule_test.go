package entities

import (
	"testing"
	"time"
)

func TestNextDueDateMonthlyClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "plain mid-month",
			from: time.Date(2026, time.April, 15, 9, 30, 0, 0, time.UTC),
			want: time.Date(2026, time.May, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "jan 31 clamps to feb 28",
			from: time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "jan 31 clamps to feb 29 in a leap year",
			from: time.Date(2028, time.January, 31, 0, 0, 0, 0, time.UTC),
			want: time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "mar 31 clamps to apr 30",
			from: time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.April, 30, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "december rolls into january",
			from: time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
			want: time.Date(2027, time.January, 31, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextDueDate(FrequencyMonthly, tc.from)
			if !got.Equal(tc.want) {
				t.Fatalf("NextDueDate(%s) = %s, want %s", tc.from, got, tc.want)
			}
		})
	}
}

func TestNextDueDateWeekly(t *testing.T) {
	from := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	want := time.Date(2026, time.March, 9, 9, 0, 0, 0, time.UTC)
	if got := NextDueDate(FrequencyWeekly, from); !got.Equal(want) {
		t.Fatalf("NextDueDate(weekly) = %s, want %s", got, want)
	}
}

func TestIsPermutationOf(t *testing.T) {
	members := []string{"a", "b", "c"}
	if !IsPermutationOf([]string{"c", "a", "b"}, members) {
		t.Fatalf("rearrangement should be accepted")
	}
	if IsPermutationOf([]string{"a", "a", "b"}, members) {
		t.Fatalf("duplicates should be rejected")
	}
	if IsPermutationOf([]string{"a", "b"}, members) {
		t.Fatalf("short order should be rejected")
	}
	if IsPermutationOf([]string{"a", "b", "x"}, members) {
		t.Fatalf("non-roster id should be rejected")
	}
}
