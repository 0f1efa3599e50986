// Copyright 2026 Peter Edge
//
// All rights reserved.

package xtime

import (
	"iter"
	"time"
)

// BusinessDays returns an iterator over the Monday-to-Friday dates in [from, to],
// in chronological order.
//
// Weekends are never yielded: a Saturday or Sunday jumps directly to the following
// Monday. Holidays are not taken into account. If from is after to, nothing is yielded.
func BusinessDays(from Date, to Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for date := NextBusinessDay(from); date.EqualOrBefore(to); date = NextBusinessDay(date.AddDays(1)) {
			if !yield(date) {
				return
			}
		}
	}
}

// NextBusinessDay returns date if it is a business day, otherwise the following Monday.
func NextBusinessDay(date Date) Date {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDays(2)
	case time.Sunday:
		return date.AddDays(1)
	default:
		return date
	}
}

// Yesterday returns the date before today in the given location.
func Yesterday(now time.Time, loc *time.Location) Date {
	return TimeToDate(now.In(loc)).AddDays(-1)
}
