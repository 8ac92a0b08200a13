package visit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCalled    Status = "called"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// FallbackPrefix is used when a clinic has no usable code, so registration
// never blocks on incomplete reference data.
const FallbackPrefix = "X"

type Visit struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	ClinicID         uuid.UUID
	DoctorID         uuid.UUID
	RegistrationDate string // YYYY-MM-DD, clinic-local
	QueueNumber      int
	DisplayCode      string
	Status           Status
	PatientName      string
	ClinicName       string
	DoctorName       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CalledAt         *time.Time
	CompletedAt      *time.Time
}

// Scope is the unit within which queue numbers are sequential and at most
// one visit may be called.
type Scope struct {
	ClinicID uuid.UUID
	Date     string
}

func (v Visit) Scope() Scope {
	return Scope{ClinicID: v.ClinicID, Date: v.RegistrationDate}
}

// NewVisit is everything InsertNext needs besides the number it assigns.
type NewVisit struct {
	PatientID   uuid.UUID
	ClinicID    uuid.UUID
	DoctorID    uuid.UUID
	Date        string
	Prefix      string
	PatientName string
	ClinicName  string
	DoctorName  string
}

func (nv NewVisit) Scope() Scope {
	return Scope{ClinicID: nv.ClinicID, Date: nv.Date}
}

type CreateVisitInput struct {
	NationalID string
	ClinicID   uuid.UUID
	DoctorID   uuid.UUID
}

// Filter narrows the monitoring list. Zero fields are ignored.
type Filter struct {
	Month    string // YYYY-MM
	Date     string // YYYY-MM-DD
	ClinicID *uuid.UUID
	DoctorID *uuid.UUID
	Limit    int
	Offset   int
}

const (
	defaultListLimit = 200
	maxListLimit     = 1000
)

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// DisplayPrefix derives the ticket prefix from a clinic code.
func DisplayPrefix(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return FallbackPrefix
	}
	return code
}

// FormatDisplayCode renders a ticket such as "U-003".
func FormatDisplayCode(prefix string, number int) string {
	return fmt.Sprintf("%s-%03d", prefix, number)
}

// displayPriority orders the public board: the visit being served first,
// then the waiting line, then finished visits.
func displayPriority(s Status) int {
	switch s {
	case StatusCalled:
		return 0
	case StatusWaiting:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 3
	}
}

// canCall reports whether a visit in status s may become the called one.
// Calling the visit that is already called is allowed and changes nothing.
func canCall(s Status) bool {
	return s == StatusWaiting || s == StatusCalled
}

// completeTransition decides what Complete does for status s.
func completeTransition(s Status) (changed bool, err error) {
	switch s {
	case StatusCompleted:
		return false, nil
	case StatusCancelled:
		return false, ErrInvalidTransition
	default:
		return true, nil
	}
}

func validDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func validMonth(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil
}
