package entities

import "time"

// ComputeRotationOrder is the default payout-order policy: join order. It is
// a pure function of the roster so an alternative policy (lottery, bidding)
// can replace it without touching the coordinator.
func ComputeRotationOrder(members []string) []string {
	return append([]string(nil), members...)
}

// NextDueDate adds one contribution period to from. Monthly arithmetic clamps
// to the last valid day of the target month (Jan 31 + 1 month -> Feb 28/29)
// instead of letting time.AddDate roll over into March.
func NextDueDate(frequency Frequency, from time.Time) time.Time {
	from = from.UTC()
	if frequency == FrequencyWeekly {
		return from.Add(7 * 24 * time.Hour)
	}

	year, month, day := from.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day,
		from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
