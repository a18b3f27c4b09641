package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
	"github.com/goncalobsantos/desafio-database-relations/internal/service/orders"
	"github.com/goncalobsantos/desafio-database-relations/internal/storage/memory"
)

// In-process contention harness: нагружает сервис оформления заказов
// поверх memory store и проверяет, что сток никогда не уходит в минус.

type config struct {
	customers   int
	products    int
	stock       int
	maxQty      int
	concurrency int
	total       int
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt         time.Time        `json:"started_at"`
	DurationSeconds   float64          `json:"duration_seconds"`
	TotalPlacements   int              `json:"total_placements"`
	Placed            int              `json:"placed"`
	InsufficientStock int              `json:"insufficient_stock"`
	OtherErrors       int              `json:"other_errors"`
	RPS               float64          `json:"rps"`
	LatencyMs         latencySummary   `json:"latency_ms"`
	StockByProduct    map[string]int32 `json:"stock_by_product"`
	Oversold          bool             `json:"oversold"`
}

type collector struct {
	mu           sync.Mutex
	placed       int
	insufficient int
	otherErrors  int
	latencies    []float64
}

func (c *collector) record(latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
	switch {
	case err == nil:
		c.placed++
	case errors.Is(err, domain.ErrInsufficientStock):
		c.insufficient++
	default:
		c.otherErrors++
	}
}

func main() {
	cfg := readFlags()

	log.SetLevel(log.WarnLevel)
	logger := log.WithField("component", "loadtest")

	store := memory.NewStore()
	customerIDs, productIDs := seedCatalog(store, cfg)

	svc := orders.NewServiceWithoutMetrics(store, logger)

	stats := &collector{}
	startedAt := time.Now()

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for range jobs {
				customerID := customerIDs[rng.Intn(len(customerIDs))]
				lines := []domain.OrderLineRequest{
					{
						ProductID: productIDs[rng.Intn(len(productIDs))],
						Qty:       int32(rng.Intn(cfg.maxQty) + 1),
					},
				}

				start := time.Now()
				_, err := svc.PlaceOrder(context.Background(), customerID, lines)
				stats.record(time.Since(start), err)
			}
		}(startedAt.UnixNano() + int64(w))
	}

	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(startedAt)
	result := buildReport(cfg, store, productIDs, stats, startedAt, elapsed)

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fail("encode report: %v", err)
	}
	fmt.Println(string(encoded))

	if cfg.outputPath != "" {
		if err := os.WriteFile(cfg.outputPath, append(encoded, '\n'), 0o644); err != nil {
			fail("write report to %s: %v", cfg.outputPath, err)
		}
	}

	if result.Oversold {
		fail("stock oversell detected")
	}
	if result.OtherErrors > 0 {
		fail("unexpected placement errors: %d", result.OtherErrors)
	}
}

func readFlags() config {
	cfg := config{}
	flag.IntVar(&cfg.customers, "customers", 5, "number of seeded customers")
	flag.IntVar(&cfg.products, "products", 10, "number of seeded products")
	flag.IntVar(&cfg.stock, "stock", 50, "initial stock per product")
	flag.IntVar(&cfg.maxQty, "max-qty", 3, "maximum quantity per order line")
	flag.IntVar(&cfg.concurrency, "concurrency", 16, "concurrent placement workers")
	flag.IntVar(&cfg.total, "total", 2000, "total placement attempts")
	flag.StringVar(&cfg.outputPath, "output", "", "optional path for JSON report")
	flag.Parse()

	if cfg.customers <= 0 || cfg.products <= 0 || cfg.stock < 0 || cfg.maxQty <= 0 || cfg.concurrency <= 0 || cfg.total <= 0 {
		fail("all numeric flags must be positive (stock may be zero)")
	}
	return cfg
}

func seedCatalog(store *memory.Store, cfg config) (customerIDs, productIDs []string) {
	now := time.Now().UTC()

	for i := 0; i < cfg.customers; i++ {
		id := fmt.Sprintf("load-customer-%d", i)
		store.PutCustomer(domain.Customer{
			ID:        id,
			Name:      fmt.Sprintf("Load Customer %d", i),
			Email:     fmt.Sprintf("load-%d@example.com", i),
			CreatedAt: now,
		})
		customerIDs = append(customerIDs, id)
	}

	for i := 0; i < cfg.products; i++ {
		id := fmt.Sprintf("load-product-%d", i)
		store.PutProduct(domain.Product{
			ID:         id,
			SKU:        fmt.Sprintf("LOAD-%d", i),
			Name:       fmt.Sprintf("Load Product %d", i),
			Quantity:   int32(cfg.stock),
			PriceMinor: int64(100 * (i + 1)),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		productIDs = append(productIDs, id)
	}

	return customerIDs, productIDs
}

func buildReport(cfg config, store *memory.Store, productIDs []string, stats *collector, startedAt time.Time, elapsed time.Duration) report {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	result := report{
		StartedAt:         startedAt.UTC(),
		DurationSeconds:   elapsed.Seconds(),
		TotalPlacements:   cfg.total,
		Placed:            stats.placed,
		InsufficientStock: stats.insufficient,
		OtherErrors:       stats.otherErrors,
		LatencyMs:         summarizeLatencies(stats.latencies),
		StockByProduct:    make(map[string]int32, len(productIDs)),
	}
	if elapsed > 0 {
		result.RPS = float64(cfg.total) / elapsed.Seconds()
	}

	products, err := store.Products().FindAllByIDs(productIDs)
	if err != nil {
		fail("read final stock: %v", err)
	}
	for _, product := range products {
		result.StockByProduct[product.ID] = product.Quantity
		if product.Quantity < 0 {
			result.Oversold = true
		}
	}

	return result
}

func summarizeLatencies(latencies []float64) latencySummary {
	if len(latencies) == 0 {
		return latencySummary{}
	}

	sorted := append([]float64(nil), latencies...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
