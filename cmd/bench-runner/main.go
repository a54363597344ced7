// Package main drives simulated shoppers through storefront-api and reports
// latency and error figures as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type benchResult struct {
	Timestamp          string         `json:"timestamp"`
	BaseURL            string         `json:"base_url"`
	Scenario           string         `json:"scenario"`
	Shoppers           int            `json:"shoppers"`
	Concurrency        int            `json:"concurrency"`
	RequestsPerShopper int            `json:"requests_per_shopper"`
	TotalRequests      int            `json:"total_requests"`
	SuccessfulRuns     int            `json:"successful_runs"`
	FailedRuns         int            `json:"failed_runs"`
	Orders             int            `json:"orders"`
	DurationSeconds    float64        `json:"duration_seconds"`
	AvgLatencyMs       float64        `json:"avg_latency_ms"`
	MinLatencyMs       float64        `json:"min_latency_ms"`
	MaxLatencyMs       float64        `json:"max_latency_ms"`
	P50LatencyMs       float64        `json:"p50_latency_ms"`
	P90LatencyMs       float64        `json:"p90_latency_ms"`
	P95LatencyMs       float64        `json:"p95_latency_ms"`
	P99LatencyMs       float64        `json:"p99_latency_ms"`
	ThroughputRPS      float64        `json:"throughput_runs_per_second"`
	StatusCounts       map[string]int `json:"status_counts"`
	ErrorClasses       map[string]int `json:"error_classes"`
	FirstError         string         `json:"first_error"`
}

type metrics struct {
	mu           sync.Mutex
	success      int
	errors       int
	orders       int
	total        time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	latenciesMs  []float64
	statusCounts map[string]int
	errorClasses map[string]int
	firstError   string
}

func newMetrics() *metrics {
	return &metrics{
		statusCounts: make(map[string]int),
		errorClasses: make(map[string]int),
	}
}

func (m *metrics) recordRun(latency time.Duration, orderID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.errors++
		return
	}
	m.success++
	if orderID != "" {
		m.orders++
	}
	m.total += latency
	if m.minLatency == 0 || latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.latenciesMs = append(m.latenciesMs, float64(latency.Milliseconds()))
}

func (m *metrics) recordStatus(stepName string, status int, err error, class string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCounts[stepName+":"+strconv.Itoa(status)]++
	if class != "" {
		m.errorClasses[class]++
	}
	if err != nil && m.firstError == "" {
		m.firstError = fmt.Sprintf("%s: %v", stepName, err)
	}
}

func main() {
	baseURL := flag.String("base-url", getenv("STOREFRONT_BASE_URL", "http://localhost:8080"), "storefront-api base URL")
	scenario := flag.String("scenario", "checkout", "scenario to run: browse|checkout|decline")
	product := flag.String("product", "silk-scarf", "catalog product each shopper buys")
	quantity := flag.Int("quantity", 1, "units added to the cart")
	total := flag.Int("total", 200, "number of shoppers")
	concurrency := flag.Int("concurrency", 10, "number of concurrent shoppers")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	output := flag.String("output", "", "optional output path for JSON result")
	flag.Parse()

	if *total <= 0 {
		fmt.Fprintln(os.Stderr, "total must be > 0")
		os.Exit(1)
	}
	if *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency must be > 0")
		os.Exit(1)
	}

	steps, err := buildSteps(*scenario, *product, *quantity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	m, duration := run(&http.Client{}, *baseURL, steps, *total, *concurrency, *timeout)
	result := summarize(m, duration)
	result.BaseURL = *baseURL
	result.Scenario = *scenario
	result.Shoppers = *total
	result.Concurrency = *concurrency
	result.RequestsPerShopper = len(steps)
	result.TotalRequests = *total * len(steps)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := writeJSON(*output, result); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
			os.Exit(1)
		}
	}
	if m.success == 0 {
		os.Exit(1)
	}
}

// run starts concurrency workers that each play whole shoppers until total
// have finished.
func run(client *http.Client, baseURL string, steps []step, total, concurrency int, timeout time.Duration) (*metrics, time.Duration) {
	tasks := make(chan int)
	var wg sync.WaitGroup
	m := newMetrics()

	start := time.Now()
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range tasks {
				s := &shopper{client: client, baseURL: baseURL, timeout: timeout, n: strconv.Itoa(n)}
				latency, orderID, err := s.run(steps, m)
				m.recordRun(latency, orderID, err)
			}
		}()
	}
	for i := 0; i < total; i++ {
		tasks <- i
	}
	close(tasks)
	wg.Wait()
	return m, time.Since(start)
}

func summarize(m *metrics, duration time.Duration) benchResult {
	avgLatency, minLatency, maxLatency := 0.0, 0.0, 0.0
	if m.success > 0 {
		avgLatency = float64(m.total.Milliseconds()) / float64(m.success)
		minLatency = float64(m.minLatency.Milliseconds())
		maxLatency = float64(m.maxLatency.Milliseconds())
	}
	p50, p90, p95, p99 := calcPercentiles(m.latenciesMs)
	return benchResult{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		SuccessfulRuns:  m.success,
		FailedRuns:      m.errors,
		Orders:          m.orders,
		DurationSeconds: duration.Seconds(),
		AvgLatencyMs:    avgLatency,
		MinLatencyMs:    minLatency,
		MaxLatencyMs:    maxLatency,
		P50LatencyMs:    p50,
		P90LatencyMs:    p90,
		P95LatencyMs:    p95,
		P99LatencyMs:    p99,
		ThroughputRPS:   float64(m.success) / duration.Seconds(),
		StatusCounts:    m.statusCounts,
		ErrorClasses:    m.errorClasses,
		FirstError:      m.firstError,
	}
}

func writeJSON(path string, result benchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func calcPercentiles(values []float64) (float64, float64, float64, float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sort.Float64s(values)
	return percentile(values, 0.50), percentile(values, 0.90), percentile(values, 0.95), percentile(values, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
