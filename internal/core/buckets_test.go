package core

import (
	"testing"
	"time"
)

func TestGroupByTimeBucket_DayOfWeek(t *testing.T) {
	// Mon 2024-03-04 through Sun 2024-03-10, amounts 10..70.
	amounts := []string{"10", "20", "30", "40", "50", "60", "70"}
	var expenses []Expense
	for i, a := range amounts {
		expenses = append(expenses, Expense{
			ID: "e", Amount: amt(a), CategoryID: "c1",
			CreatedAt: day(2024, 3, 4+i),
		})
	}

	groups := GroupByTimeBucket(expenses, BucketDayOfWeek, day(2024, 3, 4))
	if len(groups) != 7 {
		t.Fatalf("got %d buckets, want 7", len(groups))
	}
	if groups[0].Label != "Sun" || groups[6].Label != "Sat" {
		t.Errorf("buckets not in Sun..Sat order: %s..%s", groups[0].Label, groups[6].Label)
	}

	sum := NetTotal(nil)
	for _, g := range groups {
		sum = sum.Add(g.Total)
	}
	if sum.StringFixed(2) != "280.00" {
		t.Errorf("bucket sum = %s, want 280.00", sum.StringFixed(2))
	}

	// Monday holds 10, Sunday holds 70: non-overlapping mapping.
	if groups[1].Total.StringFixed(2) != "10.00" {
		t.Errorf("Mon total = %s, want 10.00", groups[1].Total.StringFixed(2))
	}
	if groups[0].Total.StringFixed(2) != "70.00" {
		t.Errorf("Sun total = %s, want 70.00", groups[0].Total.StringFixed(2))
	}
}

func TestGroupByTimeBucket_DayOfWeek_ZeroFilled(t *testing.T) {
	groups := GroupByTimeBucket(nil, BucketDayOfWeek, day(2024, 3, 1))
	if len(groups) != 7 {
		t.Fatalf("got %d buckets, want 7", len(groups))
	}
	for _, g := range groups {
		if !g.Total.IsZero() {
			t.Errorf("empty bucket %s has total %s", g.Label, g.Total)
		}
	}
}

func TestGroupByTimeBucket_UnknownKind(t *testing.T) {
	expenses := []Expense{
		{ID: "e1", Amount: amt("-10"), CategoryID: "c1", CreatedAt: day(2024, 3, 4)},
	}
	if groups := GroupByTimeBucket(expenses, BucketKind("fortnight"), day(2024, 3, 4)); groups != nil {
		t.Errorf("unknown kind must not coerce to another bucketing, got %+v", groups)
	}
}

func TestWeekOfMonthFormula(t *testing.T) {
	// May 2024 starts on a Wednesday: firstWeekdayOfMonth = 3.
	tests := []struct {
		dayOfMonth   int
		firstWeekday int
		want         int
	}{
		{1, 3, 1},  // ceil((1+3)/7) = 1
		{5, 3, 2},  // ceil((5+3)/7) = 2
		{4, 3, 1},  // last day of week 1
		{31, 3, 5}, // ceil((31+3)/7) = 5
		{1, 0, 1},  // month starting on Sunday
		{31, 6, 6}, // month starting on Saturday reaches week 6
	}
	for _, tt := range tests {
		if got := weekOfMonth(tt.dayOfMonth, tt.firstWeekday); got != tt.want {
			t.Errorf("weekOfMonth(%d, %d) = %d, want %d", tt.dayOfMonth, tt.firstWeekday, got, tt.want)
		}
	}
}

func TestGroupByTimeBucket_WeekOfMonth(t *testing.T) {
	// May 2024: starts Wednesday, 31 days, 5 week buckets.
	expenses := []Expense{
		{ID: "e1", Amount: amt("-10"), CategoryID: "c1", CreatedAt: day(2024, 5, 1)},
		{ID: "e2", Amount: amt("-20"), CategoryID: "c1", CreatedAt: day(2024, 5, 5)},
		{ID: "e3", Amount: amt("-30"), CategoryID: "c1", CreatedAt: day(2024, 5, 31)},
		// Outside the reference month, must not count.
		{ID: "e4", Amount: amt("-99"), CategoryID: "c1", CreatedAt: day(2024, 6, 1)},
	}

	groups := GroupByTimeBucket(expenses, BucketWeekOfMonth, day(2024, 5, 15))
	if len(groups) != 5 {
		t.Fatalf("got %d buckets, want 5", len(groups))
	}
	if groups[0].Label != "Week 1" || groups[4].Label != "Week 5" {
		t.Errorf("bucket labels %s..%s, want Week 1..Week 5", groups[0].Label, groups[4].Label)
	}

	wants := []string{"-10.00", "-20.00", "0.00", "0.00", "-30.00"}
	for i, want := range wants {
		if got := groups[i].Total.StringFixed(2); got != want {
			t.Errorf("%s total = %s, want %s", groups[i].Label, got, want)
		}
	}
}

func TestGroupByTimeBucket_MonthOfYear(t *testing.T) {
	expenses := []Expense{
		{ID: "e1", Amount: amt("100"), CategoryID: "c1", CreatedAt: day(2024, 1, 15)},
		{ID: "e2", Amount: amt("-40"), CategoryID: "c1", CreatedAt: day(2024, 12, 24)},
	}

	groups := GroupByTimeBucket(expenses, BucketMonthOfYear, time.Now())
	if len(groups) != 12 {
		t.Fatalf("got %d buckets, want 12", len(groups))
	}
	if groups[0].Label != "Jan" || groups[11].Label != "Dec" {
		t.Errorf("buckets not Jan..Dec: %s..%s", groups[0].Label, groups[11].Label)
	}
	if groups[0].Total.StringFixed(2) != "100.00" {
		t.Errorf("Jan total = %s, want 100.00", groups[0].Total.StringFixed(2))
	}
	if groups[11].Total.StringFixed(2) != "-40.00" {
		t.Errorf("Dec total = %s, want -40.00", groups[11].Total.StringFixed(2))
	}
	if !groups[5].Total.IsZero() {
		t.Errorf("Jun total = %s, want zero-filled", groups[5].Total)
	}
}
