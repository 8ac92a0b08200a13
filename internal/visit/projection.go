package visit

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/metrics"
)

// Projection builds the read side of the queue for displays and operators.
// It always reads straight from storage.
type Projection struct {
	repo    Repository
	clock   Clock
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewProjection(repo Repository, clock Clock, m *metrics.Metrics, log zerolog.Logger) *Projection {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Projection{
		repo:    repo,
		clock:   clock,
		metrics: m,
		log:     log.With().Str("component", "queue_projection").Logger(),
	}
}

type Stats struct {
	Waiting   int `json:"waiting"`
	Called    int `json:"called"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

type Board struct {
	Date       string
	Visits     []Visit
	NowServing []Visit
	Stats      Stats
	// Consistent is false when some clinic has more than one called visit.
	Consistent bool
}

// SortForDisplay orders visits called first, then waiting, completed and
// cancelled, each group by ascending queue number.
func SortForDisplay(visits []Visit) {
	sort.SliceStable(visits, func(i, j int) bool {
		pi, pj := displayPriority(visits[i].Status), displayPriority(visits[j].Status)
		if pi != pj {
			return pi < pj
		}
		return visits[i].QueueNumber < visits[j].QueueNumber
	})
}

// Today lists today's visits, optionally for one clinic, in display order.
func (p *Projection) Today(ctx context.Context, clinicID *uuid.UUID) ([]Visit, error) {
	date := p.clock.Today()

	visits, err := p.repo.ListByDate(ctx, date, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list today's visits: %w", err)
	}

	SortForDisplay(visits)
	p.checkCalled(date, visits)
	return visits, nil
}

// NowServing returns the called visit of a clinic today, nil when nobody is
// being served, or ErrCalledInvariant when more than one visit is called.
func (p *Projection) NowServing(ctx context.Context, clinicID uuid.UUID) (*Visit, error) {
	visits, err := p.Today(ctx, &clinicID)
	if err != nil {
		return nil, err
	}

	called := calledVisits(visits)
	switch len(called) {
	case 0:
		return nil, nil
	case 1:
		return &called[0], nil
	default:
		return nil, ErrCalledInvariant
	}
}

func (p *Projection) Board(ctx context.Context, clinicID *uuid.UUID) (*Board, error) {
	visits, err := p.Today(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	b := &Board{
		Date:       p.clock.Today(),
		Visits:     visits,
		NowServing: calledVisits(visits),
		Stats:      CountStats(visits),
		Consistent: len(violations(visits)) == 0,
	}
	if b.Visits == nil {
		b.Visits = []Visit{}
	}
	return b, nil
}

func CountStats(visits []Visit) Stats {
	var s Stats
	for _, v := range visits {
		switch v.Status {
		case StatusWaiting:
			s.Waiting++
		case StatusCalled:
			s.Called++
		case StatusCompleted:
			s.Completed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	s.Total = len(visits)
	return s
}

func calledVisits(visits []Visit) []Visit {
	called := []Visit{}
	for _, v := range visits {
		if v.Status == StatusCalled {
			called = append(called, v)
		}
	}
	return called
}

// violations returns the clinics with more than one called visit.
func violations(visits []Visit) map[uuid.UUID][]Visit {
	byClinic := make(map[uuid.UUID][]Visit)
	for _, v := range visits {
		if v.Status == StatusCalled {
			byClinic[v.ClinicID] = append(byClinic[v.ClinicID], v)
		}
	}
	for id, called := range byClinic {
		if len(called) < 2 {
			delete(byClinic, id)
		}
	}
	return byClinic
}

func (p *Projection) checkCalled(date string, visits []Visit) {
	for clinicID, called := range violations(visits) {
		codes := make([]string, 0, len(called))
		for _, v := range called {
			codes = append(codes, v.DisplayCode)
		}
		p.metrics.CalledInvariantHits.WithLabelValues(called[0].ClinicName).Inc()
		p.log.Error().
			Str("clinic_id", clinicID.String()).
			Str("clinic", called[0].ClinicName).
			Str("date", date).
			Strs("called", codes).
			Msg("more than one visit called in the same clinic and day")
	}
}
