// Package main provides the operator god view: the ranked black book
// of mother wallets, funding-cluster pattern analysis, the current
// risk posture, and ledger-wide counters.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/albarami/Whale-hunter/internal/config"
	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/honeypot"
	"github.com/albarami/Whale-hunter/internal/risk"
	"github.com/albarami/Whale-hunter/internal/storage/memory"
	"github.com/albarami/Whale-hunter/internal/storage/migrations"
	pgstore "github.com/albarami/Whale-hunter/internal/storage/postgres"
	"github.com/albarami/Whale-hunter/internal/trust"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "YAML config overlay path (defaults apply when empty)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	minWinners := flag.Int("min-winners", 0, "Minimum winning children to qualify (0 uses the config value)")
	limit := flag.Int("limit", 20, "Number of entries to display")
	output := flag.String("output", "", "Export the black book to a JSON file (empty disables export)")
	flag.Parse()

	ctx := context.Background()

	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *minWinners > 0 {
		cfg.Trust.MinFundedWinners = *minWinners
	}

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "Error running migrations: %v\n", err)
		os.Exit(1)
	}

	wallets := pgstore.NewWalletStore(pool)
	funding := pgstore.NewFundingStore(pool)
	signals := pgstore.NewSignalStore(pool)
	trades := pgstore.NewTradeStore(pool)
	state := pgstore.NewSystemStateStore(pool)
	events := pgstore.NewKillSwitchEventStore(pool)
	stats := pgstore.NewStatsStore(pool, cfg.Trust.MinFundedWinners, cfg.Trust.EdgeConfidenceFloor)

	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	trustEngine := trust.NewEngine(wallets, funding, trust.NewCEXBook(), cfg.Trust, slogger)

	book, err := trustEngine.BlackBook(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building black book: %v\n", err)
		os.Exit(1)
	}

	printBlackBook(book, *limit)
	printClusterPatterns(book)

	// The snapshot reads only postgres-backed state; graph-trigger
	// evaluation against the outcome timeseries is the engine's job.
	riskManager := risk.NewManager(cfg, state, events, trades, funding, memory.NewOutcomeStore(), 0, slogger)
	if err := riskManager.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading risk state: %v\n", err)
		os.Exit(1)
	}
	report, err := riskManager.Snapshot(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building risk snapshot: %v\n", err)
		os.Exit(1)
	}
	printRiskReport(report)

	ledger, err := stats.LedgerStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading ledger stats: %v\n", err)
		os.Exit(1)
	}
	printLedgerSummary(ledger)

	resolved, err := signals.Resolved(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading resolved signals: %v\n", err)
		os.Exit(1)
	}
	eventCount, err := events.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error counting kill-switch events: %v\n", err)
		os.Exit(1)
	}
	accuracy := honeypot.ComputeAccuracy(resolved, cfg.Honeypot.ReadinessSignals, cfg.Honeypot.ReadinessFloor)
	printGoNoGo(risk.EvaluateGoNoGo(cfg.GoNoGo, risk.GoNoGoInput{
		SignalsTracked:    ledger.TotalSignals,
		SimulatorAccuracy: accuracy.RawAccuracy,
		SimulatorReady:    accuracy.Ready,
		CapitalUSD:        report.Capital,
		WinRate:           winRate(ledger),
		CumulativePnL:     ledger.TotalPnL,
		KillSwitchTested:  eventCount > 0,
	}))

	if *output != "" && len(book) > 0 {
		if err := exportBlackBook(book, *output); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting black book: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nBlack book exported to %s\n", *output)
	}
}

func printBlackBook(book []*trust.BlackBookEntry, limit int) {
	fmt.Println()
	fmt.Println("================================================================================")
	fmt.Println("BLACK BOOK - TOP MOTHER WALLETS TO MONITOR")
	fmt.Println("================================================================================")
	fmt.Printf("\nGenerated: %s\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("Total entries: %d\n\n", len(book))
	fmt.Println("--------------------------------------------------------------------------------")
	fmt.Printf("%-6s%-16s%-10s%-10s%-12s%s\n", "Rank", "Address", "Children", "Trust", "PnL", "Last Win")
	fmt.Println("--------------------------------------------------------------------------------")

	shown := book
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for _, e := range shown {
		lastWin := "Never"
		if e.LastWin != nil {
			lastWin = e.LastWin.Format("2006-01-02")
		}
		fmt.Printf("%-6d%-16s%-10d%-10.2f$%-11.2f%s\n",
			e.Rank, shortAddress(e.Address), e.FundedWinnerCount, e.TrustScore, e.ChildrenPnL, lastWin)
	}
	if len(book) > limit {
		fmt.Printf("\n... and %d more\n", len(book)-limit)
	}
}

func printClusterPatterns(book []*trust.BlackBookEntry) {
	fmt.Println()
	fmt.Println("============================================================")
	fmt.Println("CLUSTER PATTERN ANALYSIS")
	fmt.Println("============================================================")

	if len(book) == 0 {
		fmt.Println("\nNo mother wallets to analyze.")
		return
	}

	childCounts := make(map[string]int)
	total := 0
	maxChildren := 0
	for _, e := range book {
		if len(e.Children) > maxChildren {
			maxChildren = len(e.Children)
		}
		total += len(e.Children)
		for _, c := range e.Children {
			childCounts[c]++
		}
	}

	shared := 0
	for _, count := range childCounts {
		if count > 1 {
			shared++
		}
	}

	fmt.Printf("\nTotal unique child wallets: %d\n", len(childCounts))
	fmt.Printf("Average children per mother: %.1f\n", float64(total)/float64(len(book)))
	fmt.Printf("Max children from single mother: %d\n", maxChildren)
	fmt.Printf("\nChildren shared across mothers: %d\n", shared)
	if shared > 0 {
		fmt.Println("\nWARNING: Shared children may indicate cluster overlap or coordination")
	}
}

func printRiskReport(r *risk.Report) {
	fmt.Println()
	fmt.Println("----------------------------------------")
	fmt.Println("RISK POSTURE")
	fmt.Println("----------------------------------------")
	fmt.Printf("Mode: %s\n", r.Mode)
	fmt.Printf("Capital: $%.2f (peak $%.2f)\n", r.Capital, r.PeakCapital)
	fmt.Printf("Drawdown: %.1f%%\n", r.DrawdownPct)
	fmt.Printf("Trades: %d (loss streak %d)\n", r.TradeCount, r.ConsecutiveLosses)
	fmt.Printf("Hourly PnL: $%.2f\n", r.HourlyPnL)
	if len(r.OpenEvents) == 0 {
		fmt.Println("Open kill-switch events: none")
		return
	}
	fmt.Printf("Open kill-switch events: %d\n", len(r.OpenEvents))
	for _, e := range r.OpenEvents {
		fmt.Printf("  [%s] %s: %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Trigger, e.Reason)
	}
}

func printLedgerSummary(s *domain.LedgerStats) {
	fmt.Println()
	fmt.Println("----------------------------------------")
	fmt.Println("LEDGER SUMMARY")
	fmt.Println("----------------------------------------")
	fmt.Printf("Total wallets tracked: %d\n", s.TotalWallets)
	for _, tier := range []domain.Tier{domain.TierS, domain.TierA, domain.TierB, domain.TierC} {
		if count, ok := s.WalletsByTier[tier]; ok {
			fmt.Printf("  %s: %d\n", tier, count)
		}
	}
	fmt.Printf("Total signals: %d\n", s.TotalSignals)
	fmt.Printf("Total trades: %d\n", s.TotalTrades)
	fmt.Printf("Total PnL: $%.2f\n", s.TotalPnL)
	fmt.Printf("Mother wallets: %d\n", s.MotherCount)
}

func printGoNoGo(result *risk.GoNoGoResult) {
	fmt.Println()
	fmt.Println("----------------------------------------")
	fmt.Printf("GO/NO-GO: %s\n", result.Decision)
	fmt.Println("----------------------------------------")
	for _, c := range result.Criteria {
		mark := "PASS"
		if !c.Pass {
			mark = "FAIL"
		}
		fmt.Printf("  [%s] %-24s %s (actual %s)\n", mark, c.Name, c.Threshold, c.Actual)
	}
}

// winRate is wins over decided outcomes, ignoring neutral resolutions.
func winRate(s *domain.LedgerStats) float64 {
	wins := s.SignalsByOutcome[domain.OutcomeWin]
	losses := s.SignalsByOutcome[domain.OutcomeLoss]
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) / float64(wins+losses)
}

// blackBookExport is the JSON file layout.
type blackBookExport struct {
	GeneratedAt  time.Time               `json:"generated_at"`
	TotalEntries int                     `json:"total_entries"`
	Wallets      []*trust.BlackBookEntry `json:"wallets"`
}

func exportBlackBook(book []*trust.BlackBookEntry, path string) error {
	data, err := json.MarshalIndent(blackBookExport{
		GeneratedAt:  time.Now().UTC(),
		TotalEntries: len(book),
		Wallets:      book,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal black book: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write black book: %w", err)
	}
	return nil
}

func shortAddress(addr string) string {
	if len(addr) > 14 {
		return addr[:12] + ".."
	}
	return addr
}
