package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/metrics"
)

type ClinicLookup interface {
	GetClinic(ctx context.Context, id uuid.UUID) (*directory.Clinic, error)
}

// Sequencer hands out per clinic, per day queue numbers.
type Sequencer struct {
	repo        Repository
	clinics     ClinicLookup
	maxAttempts int
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

func NewSequencer(repo Repository, clinics ClinicLookup, maxAttempts int, m *metrics.Metrics, log zerolog.Logger) *Sequencer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Sequencer{
		repo:        repo,
		clinics:     clinics,
		maxAttempts: maxAttempts,
		metrics:     m,
		log:         log.With().Str("component", "queue_sequencer").Logger(),
	}
}

// Peek previews the number and display code the next visit of the scope
// would get. It reserves nothing. An unknown clinic gets the fallback prefix.
func (s *Sequencer) Peek(ctx context.Context, clinicID uuid.UUID, date string) (int, string, error) {
	prefix := FallbackPrefix
	c, err := s.clinics.GetClinic(ctx, clinicID)
	switch {
	case err == nil:
		prefix = DisplayPrefix(c.Code)
	case errors.Is(err, directory.ErrClinicNotFound):
	default:
		return 0, "", fmt.Errorf("load clinic: %w", err)
	}

	n, err := s.repo.CountInScope(ctx, Scope{ClinicID: clinicID, Date: date})
	if err != nil {
		return 0, "", fmt.Errorf("peek queue number: %w", err)
	}

	next := n + 1
	return next, FormatDisplayCode(prefix, next), nil
}

// Assign inserts the visit under the next number of its scope. Collisions
// are retried a bounded number of times before ErrQueueConflict surfaces.
func (s *Sequencer) Assign(ctx context.Context, nv NewVisit) (*Visit, error) {
	nv.Prefix = DisplayPrefix(nv.Prefix)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		v, err := s.repo.InsertNext(ctx, nv)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrQueueNumberTaken) {
			return nil, fmt.Errorf("assign queue number: %w", err)
		}

		s.metrics.SequenceRetries.Inc()
		s.log.Warn().
			Str("clinic_id", nv.ClinicID.String()).
			Str("date", nv.Date).
			Int("attempt", attempt).
			Msg("queue number collision, retrying")
	}

	s.metrics.SequenceConflicts.Inc()
	s.log.Error().
		Str("clinic_id", nv.ClinicID.String()).
		Str("date", nv.Date).
		Int("attempts", s.maxAttempts).
		Msg("queue number assignment exhausted retries")

	return nil, ErrQueueConflict
}
