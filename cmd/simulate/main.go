package main

// Booking-race driver: fires concurrent createAppointment requests for the
// same doctor at identical and overlapping times, then reports how many won,
// how many were rejected with a conflict, and how many errored. With the
// schedule lock in place, each distinct time slot must have exactly one
// winner.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type simConfig struct {
	APIBaseURL string
	TenantID   uuid.UUID
	Workers    int
	Rounds     int
}

type tally struct {
	Success  int64
	Conflict int64
	Busy     int64
	Error    int64
}

func main() {
	cfg := loadConfig()

	fmt.Printf("simulate: %d workers x %d rounds against %s\n", cfg.Workers, cfg.Rounds, cfg.APIBaseURL)

	client := &http.Client{Timeout: 10 * time.Second}
	doctorID := uuid.New()

	var t tally
	day := time.Now().AddDate(0, 0, 1)

	for round := 0; round < cfg.Rounds; round++ {
		// Every worker in a round fights for the same 30-minute slot.
		slotTime := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC).
			Add(time.Duration(round) * 30 * time.Minute)

		var wg sync.WaitGroup
		var roundWins int64

		for w := 0; w < cfg.Workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				switch book(client, cfg, doctorID, slotTime) {
				case http.StatusCreated:
					atomic.AddInt64(&roundWins, 1)
					atomic.AddInt64(&t.Success, 1)
				case http.StatusConflict:
					atomic.AddInt64(&t.Conflict, 1)
				default:
					atomic.AddInt64(&t.Error, 1)
				}
			}()
		}
		wg.Wait()

		if roundWins > 1 {
			fmt.Printf("round %d: OVERLAP VIOLATION, %d bookings won the same slot\n", round, roundWins)
			os.Exit(1)
		}
	}

	fmt.Printf("done: success=%d conflict=%d error=%d\n", t.Success, t.Conflict, t.Error)
	if t.Success != int64(cfg.Rounds) {
		fmt.Printf("warning: expected %d winners (one per round), got %d\n", cfg.Rounds, t.Success)
	}
}

func book(client *http.Client, cfg simConfig, doctorID uuid.UUID, at time.Time) int {
	body, _ := json.Marshal(map[string]any{
		"doctor_id":        doctorID.String(),
		"patient_id":       uuid.NewString(),
		"appointment_time": at.Format(time.RFC3339),
		"duration_minutes": 30,
	})

	req, err := http.NewRequest(http.MethodPost, cfg.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", cfg.TenantID.String())

	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode
}

func loadConfig() simConfig {
	cfg := simConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		TenantID:   uuid.New(),
		Workers:    getEnvInt("SIM_WORKERS", 16),
		Rounds:     getEnvInt("SIM_ROUNDS", 10),
	}

	if raw := os.Getenv("SIM_TENANT_ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid SIM_TENANT_ID: %v\n", err)
			os.Exit(1)
		}
		cfg.TenantID = id
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
