package directory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Clinic struct {
	ID        uuid.UUID
	Name      string
	Code      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID         uuid.UUID
	Name       string
	ClinicID   uuid.UUID
	ClinicName string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Schedule struct {
	ID         uuid.UUID
	DoctorID   uuid.UUID
	DoctorName string
	Day        time.Weekday
	StartTime  string // HH:MM
	EndTime    string // HH:MM
	CreatedAt  time.Time
}

// ScheduleFilter narrows ListSchedules. Nil fields are ignored.
type ScheduleFilter struct {
	DoctorID *uuid.UUID
	Day      *time.Weekday
}

var dayNames = map[string]time.Weekday{
	"minggu": time.Sunday,
	"senin":  time.Monday,
	"selasa": time.Tuesday,
	"rabu":   time.Wednesday,
	"kamis":  time.Thursday,
	"jumat":  time.Friday,
	"sabtu":  time.Saturday,
}

// ParseDay accepts Indonesian day names as used at the front desk and English
// names as used by time.Weekday.
func ParseDay(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "'", "")
	if d, ok := dayNames[key]; ok {
		return d, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), key) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown day %q", ErrInvalidInput, s)
}

// DayName is the Indonesian label for d.
func DayName(d time.Weekday) string {
	for name, wd := range dayNames {
		if wd == d {
			return strings.ToUpper(name[:1]) + name[1:]
		}
	}
	return d.String()
}

func parseClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidInput, s)
	}
	return t, nil
}
