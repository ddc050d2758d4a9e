package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// BucketDayOfWeek yields seven buckets, Sun..Sat.
	BucketDayOfWeek BucketKind = "day-of-week"
	// BucketWeekOfMonth yields "Week 1".."Week N" buckets for the month of
	// the reference date.
	BucketWeekOfMonth BucketKind = "week-of-month"
	// BucketMonthOfYear yields twelve buckets, Jan..Dec.
	BucketMonthOfYear BucketKind = "month-of-year"
)

// BucketKind selects the calendar bucketing used by GroupByTimeBucket.
type BucketKind string

var weekdayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var monthLabels = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// GroupByTimeBucket sums expense amounts into fixed calendar buckets in
// chronological order. Every bucket of the kind's canonical range is
// emitted, zero-filled when nothing falls into it; week-of-month runs from
// week 1 through the last week of the reference month.
//
// For day-of-week and month-of-year every expense is bucketed by its own
// creation date. For week-of-month only expenses inside the reference
// month count, since the week number formula is anchored to that month's
// first weekday. An unknown kind yields nil.
func GroupByTimeBucket(expenses []Expense, kind BucketKind, ref time.Time) []TimeBucketGroup {
	switch kind {
	case BucketDayOfWeek:
		return bucketByLabel(expenses, weekdayLabels[:], func(t time.Time) int {
			return int(t.In(time.Local).Weekday())
		})
	case BucketWeekOfMonth:
		return bucketByWeekOfMonth(expenses, ref)
	case BucketMonthOfYear:
		return bucketByLabel(expenses, monthLabels[:], func(t time.Time) int {
			return int(t.In(time.Local).Month()) - 1
		})
	default:
		return nil
	}
}

func bucketByLabel(expenses []Expense, labels []string, index func(time.Time) int) []TimeBucketGroup {
	groups := make([]TimeBucketGroup, len(labels))
	for i, label := range labels {
		groups[i] = TimeBucketGroup{Label: label, Total: decimal.Zero}
	}
	for _, e := range expenses {
		i := index(e.CreatedAt)
		groups[i].Total = groups[i].Total.Add(e.Amount)
	}
	return groups
}

func bucketByWeekOfMonth(expenses []Expense, ref time.Time) []TimeBucketGroup {
	ref = Day(ref)
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.Local)
	firstWeekday := int(first.Weekday()) // 0-indexed, Sun=0
	lastDay := first.AddDate(0, 1, -1).Day()

	weeks := weekOfMonth(lastDay, firstWeekday)
	groups := make([]TimeBucketGroup, weeks)
	for i := range groups {
		groups[i] = TimeBucketGroup{Label: fmt.Sprintf("Week %d", i+1), Total: decimal.Zero}
	}
	for _, e := range expenses {
		day := Day(e.CreatedAt)
		if day.Year() != ref.Year() || day.Month() != ref.Month() {
			continue
		}
		w := weekOfMonth(day.Day(), firstWeekday)
		groups[w-1].Total = groups[w-1].Total.Add(e.Amount)
	}
	return groups
}

// weekOfMonth computes the 1-based week bucket for a day of the month:
// ceil((dayOfMonth + firstWeekdayOfMonth) / 7).
func weekOfMonth(dayOfMonth, firstWeekday int) int {
	return (dayOfMonth + firstWeekday + 6) / 7
}
