package visit

import "time"

// Clock decides which calendar day is "today" for the clinic.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

func NewClock(loc *time.Location, now func() time.Time) Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return Clock{now: now, loc: loc}
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Today is the clinic-local date as YYYY-MM-DD.
func (c Clock) Today() string {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return c.Now().In(loc).Format(time.DateOnly)
}
