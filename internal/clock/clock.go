// Package clock provides time sources pinned to the Vietnam timezone.
//
// Every timestamp the crawler persists, and every per-month file path it
// computes, derives from a Clock so tests can freeze the instant.
package clock

import "time"

// Clock returns the current time in the Vietnam timezone.
type Clock interface {
	Now() time.Time
}

// Vietnam returns the UTC+7 location used for all persisted timestamps.
// Asia/Bangkok shares Vietnam's offset and is present in every tzdata
// distribution; when the zone database is unavailable a fixed offset is
// used instead.
func Vietnam() *time.Location {
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		return time.FixedZone("+07", 7*60*60)
	}
	return loc
}

// System reads the wall clock.
type System struct{}

// Now returns the current wall-clock time in the Vietnam timezone.
func (System) Now() time.Time {
	return time.Now().In(Vietnam())
}

// Fixed always returns the same instant. Test helper.
type Fixed struct {
	T time.Time
}

// Now returns the frozen instant.
func (f Fixed) Now() time.Time {
	return f.T
}
