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

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/priority-appointment-scheduling/internal/api"
	"github.com/hackgods/priority-appointment-scheduling/internal/config"
	"github.com/hackgods/priority-appointment-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	SubmitRatio   float64
	ProcessRatio  float64
	CancelRatio   float64
	ReadRatio     float64
	MaxFlexMin    int
	DesiredWindow time.Duration
}

type DataPool struct {
	Calendars []uuid.UUID
	mu        sync.RWMutex
	confirmed map[uuid.UUID]uuid.UUID // request id -> calendar id
}

func (dp *DataPool) AddConfirmed(requestID, calendarID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.confirmed[requestID] = calendarID
}

// TakeConfirmed removes and returns a random confirmed request.
func (dp *DataPool) TakeConfirmed(rng *rand.Rand) (uuid.UUID, uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.confirmed) == 0 {
		return uuid.Nil, uuid.Nil, false
	}
	skip := rng.Intn(len(dp.confirmed))
	for reqID, calID := range dp.confirmed {
		if skip == 0 {
			delete(dp.confirmed, reqID)
			return reqID, calID, true
		}
		skip--
	}
	return uuid.Nil, uuid.Nil, false
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
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

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

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
	Submit       OperationMetrics
	Process      OperationMetrics
	Cancel       OperationMetrics
	Appointments OperationMetrics
	Slots        OperationMetrics

	confirmed atomic.Int64
	rejected  atomic.Int64
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		logging.New("", "info").Fatal().Err(err).Msg("failed to load base config")
	}
	log := logging.New(baseCfg.Env, baseCfg.LogLevel).With().Str("service", "simulate").Logger()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("submit", cfg.SubmitRatio).
		Float64("process", cfg.ProcessRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	sim.pool = dataPool
	log.Info().Int("calendars", len(dataPool.Calendars)).Msg("data pool loaded")

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		SubmitRatio:   getFloat("SIM_SUBMIT_RATIO", 0.5),
		ProcessRatio:  getFloat("SIM_PROCESS_RATIO", 0.1),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		MaxFlexMin:    getInt("SIM_MAX_FLEX_MINUTES", 120),
		DesiredWindow: getDuration("SIM_DESIRED_WINDOW", 5*24*time.Hour),
	}

	total := cfg.SubmitRatio + cfg.ProcessRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.SubmitRatio /= total
		cfg.ProcessRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.MaxFlexMin < 0 {
		return fmt.Errorf("SIM_MAX_FLEX_MINUTES must be >= 0")
	}
	if cfg.DesiredWindow <= 0 {
		return fmt.Errorf("SIM_DESIRED_WINDOW must be > 0")
	}
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/calendars", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	defer resp.Body.Close()

	var calendars []api.CalendarResponse
	if err := json.NewDecoder(resp.Body).Decode(&calendars); err != nil {
		return nil, fmt.Errorf("decode calendars: %w", err)
	}

	pool := &DataPool{confirmed: make(map[uuid.UUID]uuid.UUID)}
	for _, c := range calendars {
		pool.Calendars = append(pool.Calendars, c.ID)
	}
	if len(pool.Calendars) == 0 {
		return nil, fmt.Errorf("no calendars found, run cmd/seed first")
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	seed := time.Now().UnixNano() + int64(workerID)
	rng := rand.New(rand.NewSource(seed))
	faker := gofakeit.New(uint64(seed))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.SubmitRatio:
				s.doSubmit(ctx, rng, faker)
			case r < s.config.SubmitRatio+s.config.ProcessRatio:
				s.doProcess(ctx, rng)
			case r < s.config.SubmitRatio+s.config.ProcessRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doListAppointments(ctx, rng)
				} else {
					s.doListFreeSlots(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) randomCalendar(rng *rand.Rand) uuid.UUID {
	return s.pool.Calendars[rng.Intn(len(s.pool.Calendars))]
}

func (s *Simulator) doSubmit(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) {
	calID := s.randomCalendar(rng)

	tomorrow := time.Now().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	desired := tomorrow.Add(time.Duration(rng.Int63n(int64(s.config.DesiredWindow)))).Truncate(30 * time.Minute)

	body := api.SubmitRequest{
		Patient:            faker.Name(),
		Contact:            faker.Email(),
		Reason:             faker.Word(),
		DesiredStart:       desired,
		Priority:           []string{"emergency", "urgent", "routine"}[rng.Intn(3)],
		FlexibilityMinutes: rng.Intn(s.config.MaxFlexMin + 1),
	}

	status, err := s.send(ctx, http.MethodPost, fmt.Sprintf("/calendars/%s/requests", calID), body, nil)
	s.metrics.Submit.Record(status.latency, err == nil && status.code == http.StatusAccepted, status.code == http.StatusConflict)
}

func (s *Simulator) doProcess(ctx context.Context, rng *rand.Rand) {
	calID := s.randomCalendar(rng)

	var report api.ReportResponse
	status, err := s.send(ctx, http.MethodPost, fmt.Sprintf("/calendars/%s/process", calID), nil, &report)
	ok := err == nil && status.code == http.StatusOK
	if ok {
		for _, o := range report.Outcomes {
			if o.Status == "confirmed" {
				s.pool.AddConfirmed(o.RequestID, calID)
			}
		}
		s.metrics.confirmed.Add(int64(report.Confirmed))
		s.metrics.rejected.Add(int64(report.Rejected))
	}
	s.metrics.Process.Record(status.latency, ok, status.code == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	reqID, calID, ok := s.pool.TakeConfirmed(rng)
	if !ok {
		return
	}

	status, err := s.send(ctx, http.MethodPost, fmt.Sprintf("/calendars/%s/appointments/%s/cancel", calID, reqID), nil, nil)
	s.metrics.Cancel.Record(status.latency, err == nil && status.code == http.StatusOK, status.code == http.StatusConflict)
}

func (s *Simulator) doListAppointments(ctx context.Context, rng *rand.Rand) {
	calID := s.randomCalendar(rng)
	status, err := s.send(ctx, http.MethodGet, fmt.Sprintf("/calendars/%s/appointments", calID), nil, nil)
	s.metrics.Appointments.Record(status.latency, err == nil && status.code == http.StatusOK, false)
}

func (s *Simulator) doListFreeSlots(ctx context.Context, rng *rand.Rand) {
	calID := s.randomCalendar(rng)
	status, err := s.send(ctx, http.MethodGet, fmt.Sprintf("/calendars/%s/slots?status=free", calID), nil, nil)
	s.metrics.Slots.Record(status.latency, err == nil && status.code == http.StatusOK, false)
}

type callStatus struct {
	code    int
	latency time.Duration
}

func (s *Simulator) send(ctx context.Context, method, path string, body any, out any) (callStatus, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return callStatus{}, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return callStatus{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	status := callStatus{latency: time.Since(start)}
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()

	status.code = resp.StatusCode
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return status, err
		}
	}
	return status, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Requests confirmed: %d, rejected: %d\n", s.metrics.confirmed.Load(), s.metrics.rejected.Load())
	fmt.Println()

	printOperationReport("Submit request", &s.metrics.Submit)
	printOperationReport("Process queue", &s.metrics.Process)
	printOperationReport("Cancel appointment", &s.metrics.Cancel)
	printOperationReport("List appointments", &s.metrics.Appointments)
	printOperationReport("List free slots", &s.metrics.Slots)
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

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
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
