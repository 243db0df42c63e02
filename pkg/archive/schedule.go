package archive

import "time"

// LastRunTime returns the start of the most recent run of c that should be
// completely archived at from: the run start at or before from-c.Delay,
// aligned to a multiple of c.Interval since the Unix epoch. A time exactly on
// a boundary resolves to that boundary.
func LastRunTime(c Collection, from time.Time) time.Time {
	adjusted := from.Add(-c.Delay).Unix()
	interval := int64(c.Interval / time.Second)
	if interval <= 0 {
		return time.Unix(adjusted, 0).UTC()
	}

	// floor division, also for instants before the epoch
	rem := adjusted % interval
	if rem < 0 {
		rem += interval
	}
	return time.Unix(adjusted-rem, 0).UTC()
}

// RunLabel formats a run start as yymmddHHMM in UTC, e.g. 2501010300.
func RunLabel(t time.Time) string {
	return t.UTC().Format("0601021504")
}
