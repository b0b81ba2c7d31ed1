package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	cashbookapp "transport-ledger/internal/cashbook/application"
	cashbook "transport-ledger/internal/cashbook/domain"
	ledgerstores "transport-ledger/internal/ledger/adapters/stores"
	ledgerapp "transport-ledger/internal/ledger/application"
	ledger "transport-ledger/internal/ledger/domain"
	"transport-ledger/internal/storage"
)

const timeLayout = time.RFC3339

type config struct {
	dbURL  string
	outDir string
	apply  bool
	from   string
	to     string
}

type balanceRow struct {
	Kind     ledger.ScopeKind
	Key      string
	Title    string
	Rows     int
	Totals   ledger.Totals
	Computed time.Time
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	period, err := parsePeriod(cfg.from, cfg.to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	backend, err := storage.Open(db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storage:", err)
		os.Exit(2)
	}
	logger := log.New(io.Discard, "", 0)
	cashbookService, err := cashbookapp.NewService(backend.Cashbook, cashbookapp.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, "cashbook service:", err)
		os.Exit(2)
	}

	breaks, err := cashbookService.Verify(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify cashbook:", err)
		os.Exit(2)
	}
	if err := writeBreaks(cfg.outDir, breaks); err != nil {
		fmt.Fprintln(os.Stderr, "write breaks:", err)
		os.Exit(2)
	}
	if cfg.apply && len(breaks) > 0 {
		changed, err := cashbookService.Recompute(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "recompute cashbook:", err)
			os.Exit(2)
		}
		fmt.Printf("Recomputed %d cashbook balances\n", changed)
	}

	entries, err := ledgerapp.NewEntryService(backend.Ledger, nil, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledger entries:", err)
		os.Exit(2)
	}
	source, err := ledgerstores.NewSource(ledgerstores.Stores{
		Bills:            backend.Logistics.Bills,
		Memos:            backend.Logistics.Memos,
		LoadingSlips:     backend.Logistics.LoadingSlips,
		Banking:          backend.Logistics.Banking,
		FuelWallets:      backend.Logistics.FuelWallets,
		FuelTransactions: backend.Logistics.FuelTransactions,
		Parties:          backend.Logistics.Parties,
		Suppliers:        backend.Logistics.Suppliers,
		Vehicles:         backend.Logistics.Vehicles,
		Commissions:      backend.Logistics.Commissions,
		Cashbook:         cashbookService,
		Entries:          entries,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledger source:", err)
		os.Exit(2)
	}
	snapshots, err := ledgerapp.NewSnapshotService(source, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "snapshot service:", err)
		os.Exit(2)
	}

	scopes, err := loadScopes(ctx, backend)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load scopes:", err)
		os.Exit(2)
	}
	rows := make([]balanceRow, 0, len(scopes))
	for _, scope := range scopes {
		snap, err := snapshots.Build(ctx, scope, period)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build %s ledger %s: %v\n", scope.Kind, scope.Key, err)
			os.Exit(2)
		}
		rows = append(rows, balanceRow{
			Kind:     scope.Kind,
			Key:      scope.Key,
			Title:    snap.Title,
			Rows:     len(snap.Rows),
			Totals:   snap.Totals,
			Computed: snap.GeneratedAt,
		})
	}
	if err := writeBalances(cfg.outDir, rows); err != nil {
		fmt.Fprintln(os.Stderr, "write balances:", err)
		os.Exit(2)
	}

	fmt.Printf("Cashbook breaks: %d, ledgers: %d\n", len(breaks), len(rows))
	fmt.Printf("Reconciliation outputs written to %s\n", cfg.outDir)
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.BoolVar(&cfg.apply, "apply", false, "recompute cashbook running balances when breaks are found")
	flag.StringVar(&cfg.from, "from", "", "ledger period start (YYYY-MM-DD, optional)")
	flag.StringVar(&cfg.to, "to", "", "ledger period end (YYYY-MM-DD, optional)")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parsePeriod(from, to string) (ledger.Period, error) {
	var period ledger.Period
	var err error
	if from != "" {
		if period.From, err = time.Parse("2006-01-02", from); err != nil {
			return period, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if period.To, err = time.Parse("2006-01-02", to); err != nil {
			return period, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if !period.From.IsZero() && !period.To.IsZero() && period.To.Before(period.From) {
		return period, errors.New("--to is before --from")
	}
	return period, nil
}

// loadScopes lists the general ledger plus one ledger per party and supplier.
func loadScopes(ctx context.Context, backend storage.Backend) ([]ledger.Scope, error) {
	scopes := []ledger.Scope{{Kind: ledger.ScopeGeneral}}
	parties, err := backend.Logistics.Parties.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range parties {
		scopes = append(scopes, ledger.Scope{Kind: ledger.ScopeParty, Key: p.ID})
	}
	suppliers, err := backend.Logistics.Suppliers.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range suppliers {
		scopes = append(scopes, ledger.Scope{Kind: ledger.ScopeSupplier, Key: s.ID})
	}
	return scopes, nil
}

func writeBreaks(outDir string, rows []cashbook.BalanceBreak) error {
	path := filepath.Join(outDir, "cashbook_breaks.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"position", "entry_id", "stored_balance", "expected_balance", "difference"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			strconv.Itoa(row.Position),
			row.EntryID,
			row.Stored.StringFixed(2),
			row.Expected.StringFixed(2),
			row.Stored.Sub(row.Expected).StringFixed(2),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeBalances(outDir string, rows []balanceRow) error {
	path := filepath.Join(outDir, "ledger_balances.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"kind",
		"key",
		"title",
		"rows",
		"credit",
		"debit_payment",
		"debit_advance",
		"current_balance",
		"computed_at",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			string(row.Kind),
			row.Key,
			row.Title,
			strconv.Itoa(row.Rows),
			row.Totals.Credit.StringFixed(2),
			row.Totals.DebitPayment.StringFixed(2),
			row.Totals.DebitAdvance.StringFixed(2),
			row.Totals.CurrentBalance.StringFixed(2),
			formatTime(row.Computed),
		}); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}
