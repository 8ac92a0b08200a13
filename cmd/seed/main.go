package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/config"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/db"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/logger"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
)

type clinicSeed struct {
	name string
	code string
}

var clinics = []clinicSeed{
	{"Poli Umum", "U"},
	{"Poli Gigi", "G"},
	{"Poli Anak", "A"},
	{"Poli Penyakit Dalam", "PD"},
}

// Every doctor practises on weekdays in one of these shifts.
var shifts = [][2]string{
	{"08:00", "12:00"},
	{"13:00", "16:00"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool, log); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	gofakeit.Seed(time.Now().UnixNano())

	// Service loggers stay quiet; the seed reports progress itself.
	quiet := log.Level(zerolog.WarnLevel)
	dir := directory.NewService(directory.NewPgRepository(pool), cfg.DirectoryCacheTTL, quiet)
	registry := patient.NewRegistry(patient.NewPgRepository(pool), quiet)

	doctorsPerClinic := getInt("SEED_DOCTORS_PER_CLINIC", 3)
	patientCount := getInt("SEED_PATIENTS", 500)

	if err := seedDirectory(context.Background(), log, dir, doctorsPerClinic); err != nil {
		log.Fatal().Err(err).Msg("seed directory")
	}
	if err := seedPatients(context.Background(), log, registry, patientCount); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	log.Info().Msg("seed complete")
}

func seedDirectory(ctx context.Context, log zerolog.Logger, dir *directory.Service, doctorsPerClinic int) error {
	existing, err := dir.ListClinics(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]directory.Clinic, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(c.Name)] = c
	}

	for _, cs := range clinics {
		c, ok := byName[strings.ToLower(cs.name)]
		if ok {
			log.Info().Str("clinic", c.Name).Msg("clinic already present, skipping")
			continue
		}

		created, err := dir.CreateClinic(ctx, cs.name, cs.code)
		if err != nil {
			return fmt.Errorf("create clinic %s: %w", cs.name, err)
		}

		for i := 0; i < doctorsPerClinic; i++ {
			doc, err := dir.CreateDoctor(ctx, "dr. "+gofakeit.Name(), created.ID)
			if err != nil {
				return fmt.Errorf("create doctor: %w", err)
			}

			shift := shifts[i%len(shifts)]
			for day := time.Monday; day <= time.Friday; day++ {
				if _, err := dir.CreateSchedule(ctx, doc.ID, day, shift[0], shift[1]); err != nil {
					return fmt.Errorf("create schedule: %w", err)
				}
			}
		}

		log.Info().Str("clinic", created.Name).Int("doctors", doctorsPerClinic).Msg("clinic seeded")
	}

	return nil
}

func seedPatients(ctx context.Context, log zerolog.Logger, registry *patient.Registry, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	created := 0
	for i := 0; i < count; i++ {
		addr := gofakeit.Address()
		reg := patient.Registration{
			NationalID: nationalID(i),
			Name:       gofakeit.Name(),
			BirthDate:  gofakeit.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Now()).Format(time.DateOnly),
			Address:    addr.Street + ", " + addr.City,
			Phone:      gofakeit.Phone(),
		}

		_, isNew, err := registry.Register(ctx, reg)
		if err != nil {
			if errors.Is(err, patient.ErrIdentityConflict) {
				// Rerun of the seed with a different fake name for the same NIK.
				continue
			}
			return err
		}
		if isNew {
			created++
		}

		if (i+1)%100 == 0 {
			log.Info().Int("done", i+1).Int("total", count).Msg("patients progress")
		}
	}

	log.Info().Int("created", created).Msg("patients seeded")
	return nil
}

// nationalID builds a well formed sixteen digit NIK that is stable per index,
// so reruns reuse the same identities.
func nationalID(i int) string {
	return fmt.Sprintf("3171%012d", i+1)
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
