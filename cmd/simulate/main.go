package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/config"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/db"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/logger"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit"
)

type SimConfig struct {
	APIBaseURL   string
	Workers      int
	Visits       int
	Calls        int
	CompleteRate float64
	PatientLimit int
	PostgresDSN  string
	Today        string
}

type doctorRef struct {
	ID       uuid.UUID
	ClinicID uuid.UUID
}

type DataPool struct {
	NationalIDs []string
	Doctors     []doctorRef

	mu     sync.Mutex
	visits map[uuid.UUID][]uuid.UUID // clinic -> created visits
}

func (dp *DataPool) AddVisit(clinicID, visitID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.visits[clinicID] = append(dp.visits[clinicID], visitID)
}

func (dp *DataPool) VisitsByClinic() map[uuid.UUID][]uuid.UUID {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	out := make(map[uuid.UUID][]uuid.UUID, len(dp.visits))
	for k, v := range dp.visits {
		out[k] = append([]uuid.UUID(nil), v...)
	}
	return out
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	CreateVisit OperationMetrics
	Call        OperationMetrics
	Complete    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     zerolog.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info")
		bootLog.Fatal().Err(err).Msg("failed to load base config")
	}
	log := logger.New(baseCfg.Env, baseCfg.LogLevel)

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:      getInt("SIM_WORKERS", 20),
		Visits:       getInt("SIM_VISITS", 300),
		Calls:        getInt("SIM_CALLS", 200),
		CompleteRate: getFloat("SIM_COMPLETE_RATE", 0.5),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 1000),
		PostgresDSN:  baseCfg.PostgresDSN,
		Today:        visit.NewClock(baseCfg.Location(), nil).Today(),
	}
	if cfg.Workers <= 0 || cfg.Visits <= 0 {
		log.Fatal().Msg("SIM_WORKERS and SIM_VISITS must be > 0")
	}

	log.Info().
		Int("workers", cfg.Workers).
		Int("visits", cfg.Visits).
		Int("calls", cfg.Calls).
		Str("date", cfg.Today).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().Int("patients", len(dataPool.NationalIDs)).Int("doctors", len(dataPool.Doctors)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	sim.Run(context.Background())
	sim.PrintReport()

	if err := verify(context.Background(), pgPool, cfg.Today); err != nil {
		log.Error().Err(err).Msg("queue verification failed")
		os.Exit(1)
	}
	log.Info().Msg("queue verification passed")
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{visits: make(map[uuid.UUID][]uuid.UUID)}

	rows, err := pool.Query(ctx, `SELECT national_id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var nid string
		if err := rows.Scan(&nid); err != nil {
			rows.Close()
			return nil, err
		}
		dp.NationalIDs = append(dp.NationalIDs, nid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `SELECT id, clinic_id FROM doctors WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for rows.Next() {
		var d doctorRef
		if err := rows.Scan(&d.ID, &d.ClinicID); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Doctors = append(dp.Doctors, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dp.NationalIDs) == 0 {
		return nil, fmt.Errorf("no patients loaded, run the seed first")
	}
	if len(dp.Doctors) == 0 {
		return nil, fmt.Errorf("no active doctors loaded, run the seed first")
	}
	return dp, nil
}

// Run registers visits concurrently and then races call/complete traffic
// against every clinic queue.
func (s *Simulator) Run(ctx context.Context) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i := 0; i < s.config.Visits; i++ {
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
		g.Go(func() error {
			s.doCreateVisit(gctx, rng)
			return nil
		})
	}
	_ = g.Wait()
	s.log.Info().Dur("took", time.Since(start)).Msg("registration phase complete")

	start = time.Now()
	byClinic := s.pool.VisitsByClinic()
	clinicIDs := make([]uuid.UUID, 0, len(byClinic))
	for id := range byClinic {
		clinicIDs = append(clinicIDs, id)
	}
	if len(clinicIDs) == 0 {
		return
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i := 0; i < s.config.Calls; i++ {
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
		visits := byClinic[clinicIDs[rng.Intn(len(clinicIDs))]]
		target := visits[rng.Intn(len(visits))]
		g.Go(func() error {
			s.doAction(gctx, target, "call", &s.metrics.Call)
			if rng.Float64() < s.config.CompleteRate {
				s.doAction(gctx, target, "complete", &s.metrics.Complete)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.log.Info().Dur("took", time.Since(start)).Msg("call phase complete")
}

func (s *Simulator) doCreateVisit(ctx context.Context, rng *rand.Rand) {
	doc := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	body, _ := json.Marshal(map[string]string{
		"national_id": s.pool.NationalIDs[rng.Intn(len(s.pool.NationalIDs))],
		"clinic_id":   doc.ClinicID.String(),
		"doctor_id":   doc.ID.String(),
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/visits", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.CreateVisit.Record(latency, 0, err)
		return
	}
	defer resp.Body.Close()

	s.metrics.CreateVisit.Record(latency, resp.StatusCode, nil)
	if resp.StatusCode != http.StatusCreated {
		return
	}

	var created struct {
		ID       uuid.UUID `json:"id"`
		ClinicID uuid.UUID `json:"clinic_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.ID != uuid.Nil {
		s.pool.AddVisit(created.ClinicID, created.ID)
	}
}

func (s *Simulator) doAction(ctx context.Context, visitID uuid.UUID, action string, om *OperationMetrics) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/visits/%s/%s", s.config.APIBaseURL, visitID, action), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		om.Record(latency, 0, err)
		return
	}
	resp.Body.Close()
	om.Record(latency, resp.StatusCode, nil)
}

// verify checks the stored queues directly: numbers per clinic-day run 1..N
// with no gaps and at most one visit per clinic-day is being called.
func verify(ctx context.Context, pool *pgxpool.Pool, date string) error {
	rows, err := pool.Query(ctx, `
		SELECT clinic_id, count(*), min(queue_number), max(queue_number),
		       count(*) FILTER (WHERE status = 'called')
		FROM visits
		WHERE registration_date = $1
		GROUP BY clinic_id
	`, date)
	if err != nil {
		return err
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var (
			clinicID          uuid.UUID
			total, minN, maxN int
			called            int
		)
		if err := rows.Scan(&clinicID, &total, &minN, &maxN, &called); err != nil {
			return err
		}
		if minN != 1 || maxN != total {
			problems = append(problems, fmt.Sprintf("clinic %s: %d visits numbered %d..%d", clinicID, total, minN, maxN))
		}
		if called > 1 {
			problems = append(problems, fmt.Sprintf("clinic %s: %d visits called at once", clinicID, called))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Date: %s\n", s.config.Today)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Create visit", &s.metrics.CreateVisit)
	printOperationReport("Call", &s.metrics.Call)
	printOperationReport("Complete", &s.metrics.Complete)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
