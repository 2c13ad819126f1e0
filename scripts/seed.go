package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospital-appointments/internal/adapters/cache"
	"github.com/zatekoja/hospital-appointments/internal/adapters/database"
	"github.com/zatekoja/hospital-appointments/internal/adapters/search"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/auth"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	"github.com/zatekoja/hospital-appointments/migrations"
	"github.com/zatekoja/hospital-appointments/pkg/config"
	"github.com/zatekoja/hospital-appointments/pkg/secrets"
)

type seedHospital struct {
	name, address, city, phone, email string
}

type seedDoctor struct {
	name, title, bio, category string
	minutes                    int
	hospitals                  []int
	start, end                 string
	weekdays                   []time.Weekday
}

var seedCategories = []services.CategoryInput{
	{Name: "Cardiology", Description: "Heart and blood vessels"},
	{Name: "Dermatology", Description: "Skin, hair and nails"},
	{Name: "Pediatrics", Description: "Children's health"},
	{Name: "General Practice", Description: "Primary care"},
}

var seedHospitals = []seedHospital{
	{"St. Mary General Hospital", "12 Marina Road", "Lagos", "+234-1-555-0100", "info@stmary.example.com"},
	{"Riverside Medical Centre", "4 Unity Avenue", "Abuja", "+234-9-555-0200", "contact@riverside.example.com"},
}

var seedDoctors = []seedDoctor{
	{"Dr. Ada Obi", "Consultant Cardiologist", "Heart failure clinic lead.", "Cardiology", 20, []int{0, 1}, "09:00", "13:00", []time.Weekday{time.Monday, time.Wednesday}},
	{"Dr. Tunde Bello", "Dermatologist", "Acne and eczema care.", "Dermatology", 15, []int{0}, "10:00", "16:00", []time.Weekday{time.Tuesday, time.Thursday}},
	{"Dr. Grace Eze", "Paediatrician", "Newborn and child wellness.", "Pediatrics", 30, []int{1}, "08:00", "12:00", []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}},
	{"Dr. Musa Ali", "General Practitioner", "Family medicine.", "General Practice", 10, []int{0, 1}, "14:00", "18:00", []time.Weekday{time.Friday, time.Saturday}},
}

func main() {
	if _, err := secrets.ApplyFromEnv(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault credentials: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("seed", cfg.App.Env)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if _, err := pgClient.Migrate(ctx, migrations.FS); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				reviews,
				appointments,
				doctor_hospital_schedules,
				doctors,
				hospitals,
				categories
			CASCADE
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to truncate tables")
		}
	}

	var searchRepo repositories.DoctorSearchRepository
	if cfg.Typesense.URL != "" {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; skipping search index")
		} else if err := tsClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to init Typesense schema")
		} else {
			searchRepo = search.NewTypesenseAdapter(tsClient)
		}
	}

	lru, err := cache.NewLRUAdapter(cfg.Cache.LRUSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create cache")
	}

	categoryRepo := database.NewCategoryAdapter(pgClient)
	hospitalRepo := database.NewHospitalAdapter(pgClient)
	doctorRepo := database.NewDoctorAdapter(pgClient)
	scheduleRepo := database.NewScheduleAdapter(pgClient)
	appointmentRepo := database.NewAppointmentAdapter(pgClient)

	slots := services.NewSlotService(doctorRepo, hospitalRepo, scheduleRepo, appointmentRepo, lru, services.SlotServiceOptions{})
	indexer := services.NewDoctorIndexer(doctorRepo, scheduleRepo, searchRepo)
	catalog := services.NewCatalogService(categoryRepo, hospitalRepo, doctorRepo, scheduleRepo, searchRepo, indexer, slots)

	root := &entities.Principal{UserID: "seed-super-admin", Role: entities.RoleSuperAdmin}

	categoryIDs := make(map[string]string, len(seedCategories))
	for _, input := range seedCategories {
		category, err := catalog.CreateCategory(ctx, root, input)
		if err != nil {
			log.Fatal().Err(err).Str("category", input.Name).Msg("Failed to create category")
		}
		categoryIDs[category.Name] = category.ID
	}

	hospitalIDs := make([]string, len(seedHospitals))
	for i, h := range seedHospitals {
		hospital, err := catalog.CreateHospital(ctx, root, services.HospitalInput{
			Name:    &h.name,
			Address: &h.address,
			City:    &h.city,
			Phone:   &h.phone,
			Email:   &h.email,
		})
		if err != nil {
			log.Fatal().Err(err).Str("hospital", h.name).Msg("Failed to create hospital")
		}
		hospitalIDs[i] = hospital.ID
	}

	doctorIDs := make([]string, len(seedDoctors))
	for i, d := range seedDoctors {
		categoryID := categoryIDs[d.category]
		doctor, err := catalog.CreateDoctor(ctx, root, services.DoctorInput{
			Name:              &d.name,
			Title:             &d.title,
			Bio:               &d.bio,
			CategoryID:        &categoryID,
			AvgTimePerPatient: &d.minutes,
		})
		if err != nil {
			log.Fatal().Err(err).Str("doctor", d.name).Msg("Failed to create doctor")
		}
		doctorIDs[i] = doctor.ID

		for _, idx := range d.hospitals {
			if _, err := catalog.UpsertSchedule(ctx, root, doctor.ID, hospitalIDs[idx], services.ScheduleInput{
				StartTime: d.start,
				EndTime:   d.end,
				Weekdays:  d.weekdays,
			}); err != nil {
				log.Fatal().Err(err).Str("doctor", d.name).Msg("Failed to create schedule")
			}
		}
	}

	log.Info().
		Int("categories", len(seedCategories)).
		Int("hospitals", len(hospitalIDs)).
		Int("doctors", len(doctorIDs)).
		Msg("Seed complete")

	if cfg.Auth.JWTSecret == "" {
		log.Info().Msg("AUTH_JWT_SECRET not set; skipping demo tokens")
		return
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 24*time.Hour)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token manager")
	}

	demo := []struct {
		label     string
		principal entities.Principal
	}{
		{"super admin", entities.Principal{UserID: "demo-super-admin", Role: entities.RoleSuperAdmin}},
		{"hospital admin", entities.Principal{UserID: "demo-hospital-admin", Role: entities.RoleHospitalAdmin, HospitalID: hospitalIDs[0]}},
		{"doctor", entities.Principal{UserID: "demo-doctor", Role: entities.RoleDoctor, DoctorID: doctorIDs[0]}},
		{"patient", entities.Principal{UserID: "demo-patient", Role: entities.RolePatient}},
	}
	for _, d := range demo {
		token, err := tokens.Issue(d.principal)
		if err != nil {
			log.Fatal().Err(err).Str("role", string(d.principal.Role)).Msg("Failed to issue token")
		}
		fmt.Printf("%-15s %s\n", d.label+":", token)
	}
}
