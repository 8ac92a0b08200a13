package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NationalIDLength is the length of an Indonesian NIK.
const NationalIDLength = 16

type Patient struct {
	ID                  uuid.UUID
	NationalID          string
	Name                string
	BirthDate           string
	Address             string
	Phone               string
	MedicalRecordNumber string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Registration is the identity plus contact data submitted at the front desk.
type Registration struct {
	NationalID string
	Name       string
	BirthDate  string
	Address    string
	Phone      string
}

// SameName reports whether two names denote the same identity. Whitespace
// and letter case are not significant.
func SameName(a, b string) bool {
	return strings.EqualFold(normalizeName(a), normalizeName(b))
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidNationalID reports whether id is exactly sixteen ASCII digits.
func ValidNationalID(id string) bool {
	if len(id) != NationalIDLength {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func formatMRN(n int64) string {
	return fmt.Sprintf("RM-%06d", n)
}
