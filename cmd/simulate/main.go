// Command simulate fires concurrent booking requests at a running
// api-server and reports how the conflict guard held up: every slot must
// end with at most one active appointment, so contention shows up as
// slot_taken responses, never as double bookings.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbook/scheduling/internal/db"
	"github.com/clinicbook/scheduling/internal/logging"
)

type counters struct {
	total    atomic.Int64
	booked   atomic.Int64
	conflict atomic.Int64
	rejected atomic.Int64
	errored  atomic.Int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "api-server base URL")
	workers := flag.Int("workers", 16, "concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "how long to run")
	providerLimit := flag.Int("provider-limit", 10, "providers to target")
	patientLimit := flag.Int("patient-limit", 200, "patients to book as")
	flag.Parse()

	log := logging.New("simulate", "dev")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, dsn)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	providers, err := loadIDs(pool, "providers", *providerLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("load providers")
	}
	patients, err := loadIDs(pool, "patients", *patientLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("load patients")
	}
	pool.Close()

	if len(providers) == 0 || len(patients) == 0 {
		log.Fatal().Msg("no providers or patients; run cmd/seed first")
	}

	log.Info().
		Int("providers", len(providers)).
		Int("patients", len(patients)).
		Int("workers", *workers).
		Dur("duration", *duration).
		Msg("simulation starting")

	// Everyone fights over tomorrow, the first day the reminder sweep also
	// cares about.
	date := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	starts := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	types := []string{"in-person", "remote", "phone"}

	client := &http.Client{Timeout: 5 * time.Second}
	var c counters

	runCtx, stop := context.WithTimeout(context.Background(), *duration)
	defer stop()

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for runCtx.Err() == nil {
				book(runCtx, client, *baseURL, &c, bookPayload{
					PatientID:  patients[rng.Intn(len(patients))].String(),
					ProviderID: providers[rng.Intn(len(providers))].String(),
					Date:       date,
					Start:      starts[rng.Intn(len(starts))],
					Type:       types[rng.Intn(len(types))],
					Reason:     "load simulation",
				})
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	total := c.total.Load()
	fmt.Printf("\n--- simulation report ---\n")
	fmt.Printf("requests:   %d\n", total)
	fmt.Printf("booked:     %d\n", c.booked.Load())
	fmt.Printf("slot_taken: %d\n", c.conflict.Load())
	fmt.Printf("rejected:   %d (outside availability etc.)\n", c.rejected.Load())
	fmt.Printf("errors:     %d\n", c.errored.Load())
	if total > 0 {
		fmt.Printf("conflict rate: %.1f%%\n", 100*float64(c.conflict.Load())/float64(total))
	}
}

type bookPayload struct {
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	Start      string `json:"start"`
	Type       string `json:"type"`
	Reason     string `json:"reason"`
}

func book(ctx context.Context, client *http.Client, baseURL string, c *counters, p bookPayload) {
	body, _ := json.Marshal(p)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", p.PatientID)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.total.Add(1)
			c.errored.Add(1)
		}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.total.Add(1)
	switch resp.StatusCode {
	case http.StatusCreated:
		c.booked.Add(1)
	case http.StatusConflict:
		c.conflict.Add(1)
	case http.StatusUnprocessableEntity:
		c.rejected.Add(1)
	default:
		c.errored.Add(1)
	}
}

func loadIDs(pool *pgxpool.Pool, table string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(context.Background(),
		fmt.Sprintf(`SELECT id FROM %s ORDER BY created_at LIMIT $1`, table), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
