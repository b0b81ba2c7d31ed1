package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	cashbook "transport-ledger/internal/cashbook/domain"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/syncclient"
)

type config struct {
	baseURL   string
	token     string
	trips     int
	parties   int
	suppliers int
	startDate string
	workers   int
	idsOut    string
}

type masters struct {
	parties   []*logistics.Party
	suppliers []*logistics.Supplier
	vehicles  []*logistics.Vehicle
}

func main() {
	cfg := parseConfig()
	if cfg.baseURL == "" {
		log.Fatal("base-url is required")
	}
	if cfg.trips <= 0 || cfg.parties <= 0 || cfg.suppliers <= 0 {
		log.Fatal("trips, parties and suppliers must be > 0")
	}
	start, err := parseStartDate(cfg.startDate)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}
	client, err := syncclient.NewClient(cfg.baseURL, cfg.token)
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx := context.Background()
	began := time.Now()
	m, err := seedMasters(ctx, client, cfg.parties, cfg.suppliers)
	if err != nil {
		log.Fatalf("seed masters: %v", err)
	}
	log.Printf("seeded masters: parties=%d suppliers=%d vehicles=%d", len(m.parties), len(m.suppliers), len(m.vehicles))

	billIDs, err := seedTrips(ctx, client, m, start, cfg.trips, cfg.workers)
	if err != nil {
		log.Fatalf("seed trips: %v", err)
	}
	if cfg.idsOut != "" {
		if err := writeLines(cfg.idsOut, billIDs); err != nil {
			log.Fatalf("write bill ids: %v", err)
		}
		log.Printf("bill ids written to %s", cfg.idsOut)
	}
	log.Printf("perf seed completed: trips=%d duration=%s", cfg.trips, time.Since(began))
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.token, "token", envOrDefault("AUTH_TOKEN", ""), "bearer token with operator role")
	flag.IntVar(&cfg.trips, "trips", envOrInt("TRIPS", 50), "number of trips (slip, bill, memo and payments) to seed")
	flag.IntVar(&cfg.parties, "parties", envOrInt("PARTIES", 5), "number of parties")
	flag.IntVar(&cfg.suppliers, "suppliers", envOrInt("SUPPLIERS", 5), "number of suppliers and vehicles")
	flag.StringVar(&cfg.startDate, "start-date", envOrDefault("START_DATE", ""), "first trip date (YYYY-MM-DD or RFC3339)")
	flag.IntVar(&cfg.workers, "workers", envOrInt("WORKERS", 4), "parallel trip writers")
	flag.StringVar(&cfg.idsOut, "bill-ids-out", envOrDefault("BILL_IDS_OUT", ""), "output file for bill ids")
	flag.Parse()
	return cfg
}

func seedMasters(ctx context.Context, client *syncclient.Client, parties, suppliers int) (masters, error) {
	var m masters
	for i := 1; i <= parties; i++ {
		p, err := create(ctx, client, logistics.CollectionParties, &logistics.Party{
			Name:           fmt.Sprintf("Perf Party %03d", i),
			OpeningBalance: decimal.NewFromInt(int64(i * 1000)),
		})
		if err != nil {
			return m, err
		}
		m.parties = append(m.parties, p)
	}
	for i := 1; i <= suppliers; i++ {
		s, err := create(ctx, client, logistics.CollectionSuppliers, &logistics.Supplier{
			Name: fmt.Sprintf("Perf Supplier %03d", i),
		})
		if err != nil {
			return m, err
		}
		m.suppliers = append(m.suppliers, s)

		v, err := create(ctx, client, logistics.CollectionVehicles, &logistics.Vehicle{
			VehicleNo: fmt.Sprintf("PF%02dAB%04d", i%100, i),
			OwnerName: s.Name,
			Ownership: "market",
		})
		if err != nil {
			return m, err
		}
		m.vehicles = append(m.vehicles, v)
	}
	return m, nil
}

func seedTrips(ctx context.Context, client *syncclient.Client, m masters, start time.Time, trips, workers int) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	var (
		mu  sync.Mutex
		ids []string
	)
	for i := 0; i < trips; i++ {
		g.Go(func() error {
			id, err := seedTrip(gctx, client, m, start, i)
			if err != nil {
				return fmt.Errorf("trip %d: %w", i, err)
			}
			mu.Lock()
			ids = append(ids, id)
			done := len(ids)
			mu.Unlock()
			if done%25 == 0 {
				log.Printf("seeded trips %d/%d", done, trips)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// seedTrip writes one loading slip with its bill, memo and the matching cashbook payments.
func seedTrip(ctx context.Context, client *syncclient.Client, m masters, start time.Time, i int) (string, error) {
	party := m.parties[i%len(m.parties)]
	supplier := m.suppliers[i%len(m.suppliers)]
	vehicle := m.vehicles[i%len(m.vehicles)]
	date := start.AddDate(0, 0, i/3)
	freight := decimal.NewFromInt(int64(15000 + (i%7)*1000))

	slip, err := create(ctx, client, logistics.CollectionLoadingSlips, &logistics.LoadingSlip{
		SlipNumber: fmt.Sprintf("LS-%05d", i+1),
		Date:       date,
		VehicleNo:  vehicle.VehicleNo,
		PartyID:    party.ID,
		SupplierID: supplier.ID,
		From:       "Nagpur",
		To:         "Pune",
		Material:   "Steel coils",
		Weight:     decimal.NewFromInt(int64(18 + i%10)),
		Freight:    freight,
		Advance:    decimal.NewFromInt(2000),
	})
	if err != nil {
		return "", err
	}

	bill, err := create(ctx, client, logistics.CollectionBills, &logistics.Bill{
		BillNumber:    fmt.Sprintf("B-%05d", i+1),
		LoadingSlipID: slip.ID,
		PartyID:       party.ID,
		VehicleNo:     vehicle.VehicleNo,
		Date:          date,
		BillAmount:    freight.Add(decimal.NewFromInt(1500)),
		Detention:     decimal.NewFromInt(int64((i % 3) * 250)),
		TDS:           decimal.NewFromInt(150),
		Advances: []logistics.AdvancePayment{
			{Date: date, Amount: decimal.NewFromInt(5000), Mode: "neft"},
		},
	})
	if err != nil {
		return "", err
	}

	memo, err := create(ctx, client, logistics.CollectionMemos, &logistics.Memo{
		MemoNumber:    fmt.Sprintf("M-%05d", i+1),
		LoadingSlipID: slip.ID,
		SupplierID:    supplier.ID,
		VehicleNo:     vehicle.VehicleNo,
		Date:          date,
		Freight:       freight,
		Commission:    decimal.NewFromInt(500),
		Mamool:        decimal.NewFromInt(100),
	})
	if err != nil {
		return "", err
	}

	payments := []*cashbook.Entry{
		{Type: logistics.Credit, Category: "party_payment", Amount: decimal.NewFromInt(5000), Date: date, PartyID: party.ID, BillID: bill.ID},
		{Type: logistics.Debit, Category: cashbook.CategoryAdvance, Amount: decimal.NewFromInt(2000), Date: date, SupplierID: supplier.ID, MemoID: memo.ID, VehicleNo: vehicle.VehicleNo},
	}
	for _, entry := range payments {
		if _, err := create(ctx, client, logistics.CollectionCashbookEntries, entry); err != nil {
			return "", err
		}
	}
	return bill.ID, nil
}

func create[T any](ctx context.Context, client *syncclient.Client, collection string, record T) (T, error) {
	var stored T
	raw, err := client.Create(ctx, collection, record)
	if err != nil {
		return stored, err
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return stored, fmt.Errorf("decode %s: %w", collection, err)
	}
	return stored, nil
}

func parseStartDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC().AddDate(0, 0, -30).Truncate(24 * time.Hour), nil
	}
	if strings.Contains(value, "T") {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func writeLines(path string, lines []string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
