package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samasante/scheduling-service/internal/api"
	"github.com/samasante/scheduling-service/internal/config"
	"github.com/samasante/scheduling-service/internal/db"
)

// The simulator hammers a small set of doctors on the same day so different
// workers race for the same slots. A healthy run ends with zero overlapping
// booked appointments in Postgres no matter how many 409s the API returned.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	DoctorLimit  int
	PatientLimit int
	SlotMinutes  int
	TargetDate   string
	PostgresDSN  string
	JWTSecret    string
}

type DataPool struct {
	Doctors  []uuid.UUID
	Patients []uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, p50, p95
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	token   string
	booking OperationMetrics
	reads   OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d doctors=%d date=%s",
		cfg.Duration, cfg.Workers, cfg.DoctorLimit, cfg.TargetDate)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d doctors, %d patients", len(dataPool.Doctors), len(dataPool.Patients))

	token, err := signStaffToken(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		token:  token,
	}

	sim.Run()
	sim.PrintReport()

	overlaps, err := countOverlaps(context.Background(), pgPool)
	if err != nil {
		log.Fatalf("integrity check: %v", err)
	}
	log.Printf("integrity check: %d overlapping booked appointment pairs", overlaps)
	if overlaps > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 5),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 2000),
		SlotMinutes:  getInt("SIM_SLOT_MINUTES", 20),
		TargetDate:   getEnv("SIM_TARGET_DATE", time.Now().AddDate(0, 0, 7).Format("2006-01-02")),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func signStaffToken(secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{
		UserID: "simulator",
		Role:   api.RoleStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(2 * time.Hour)),
		},
	})
	return token.SignedString([]byte(secret))
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT DISTINCT doctor_id FROM availability_rules LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}

	rows, err = pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors with rules loaded, run the seed first")
	}
	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run the seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
			slots := s.fetchDaySlots(ctx, doctorID)
			if len(slots) == 0 {
				continue
			}
			// Everyone aims for the earliest slots, maximizing contention.
			slot := slots[rng.Intn(min(3, len(slots)))]
			s.tryBooking(ctx, rng, doctorID, slot)
		}
	}
}

type simSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s *Simulator) fetchDaySlots(ctx context.Context, doctorID uuid.UUID) []simSlot {
	start := time.Now()

	url := fmt.Sprintf("%s/doctors/%s/slots?date=%s&duration=%d",
		s.config.APIBaseURL, doctorID, s.config.TargetDate, s.config.SlotMinutes)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.reads.Record(latency, false, false)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.reads.Record(latency, false, false)
		return nil
	}

	var body struct {
		Slots []simSlot `json:"slots"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &body); err != nil {
		s.reads.Record(latency, false, false)
		return nil
	}

	s.reads.Record(latency, true, false)
	return body.Slots
}

func (s *Simulator) tryBooking(ctx context.Context, rng *rand.Rand, doctorID uuid.UUID, slot simSlot) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()

	reqBody, _ := json.Marshal(map[string]string{
		"doctor_id":  doctorID.String(),
		"patient_id": patientID.String(),
		"start":      slot.Start.Format(time.RFC3339),
		"end":        slot.End.Format(time.RFC3339),
		"motive":     "simulation",
		"source":     "simulate",
	})

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.APIBaseURL+"/appointments", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
		case http.StatusConflict:
			conflict = true
		}
	}

	s.booking.Record(latency, success, conflict)
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== Simulation Report ===")
	printOp("bookings", &s.booking)
	printOp("slot reads", &s.reads)
}

func printOp(name string, om *OperationMetrics) {
	avg, p50, p95 := om.Stats()
	fmt.Printf("%-12s total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
		name,
		atomic.LoadInt64(&om.Total),
		atomic.LoadInt64(&om.Success),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Error),
		avg, p50, p95)
}

func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.id < b.id
		 AND a.start_time < b.end_time
		 AND a.end_time > b.start_time
		WHERE a.status = 'booked' AND b.status = 'booked'
	`).Scan(&count)
	return count, err
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
