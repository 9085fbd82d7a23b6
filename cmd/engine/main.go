// Package main provides the unified trading engine service:
// - Signal intake (HTTP): POST /signals runs the full decision flow
// - Funding ingestion (continuous): WebSocket transfer stream
// - Background loops: outcome reconciliation, trust decay, kill-switch monitoring
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albarami/Whale-hunter/internal/clients"
	"github.com/albarami/Whale-hunter/internal/config"
	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/engine"
	"github.com/albarami/Whale-hunter/internal/entropy"
	"github.com/albarami/Whale-hunter/internal/feedback"
	"github.com/albarami/Whale-hunter/internal/honeypot"
	"github.com/albarami/Whale-hunter/internal/observability"
	"github.com/albarami/Whale-hunter/internal/pipeline"
	"github.com/albarami/Whale-hunter/internal/risk"
	"github.com/albarami/Whale-hunter/internal/storage"
	chstore "github.com/albarami/Whale-hunter/internal/storage/clickhouse"
	"github.com/albarami/Whale-hunter/internal/storage/memory"
	"github.com/albarami/Whale-hunter/internal/storage/migrations"
	pgstore "github.com/albarami/Whale-hunter/internal/storage/postgres"
	"github.com/albarami/Whale-hunter/internal/trust"
)

// Server holds all components of the unified service.
type Server struct {
	engine *engine.Engine
	trust  *trust.Engine
	risk   *risk.Manager
	stats  storage.StatsStore
	buys   storage.BuyStore
	stream *clients.TransferStream
	logger *log.Logger
}

// allStores holds all storage implementations.
type allStores struct {
	walletStore     storage.WalletStore
	fundingStore    storage.FundingStore
	signalStore     storage.SignalStore
	tradeStore      storage.TradeStore
	buyStore        storage.BuyStore
	statsStore      storage.StatsStore
	stateStore      storage.SystemStateStore
	killSwitchStore storage.KillSwitchEventStore
	outcomeStore    storage.OutcomeStore
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "YAML config overlay path (defaults apply when empty)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	priceEndpoint := flag.String("price-endpoint", os.Getenv("PRICE_ENDPOINT"), "Price oracle JSON-RPC endpoint")
	simEndpoint := flag.String("sim-endpoint", os.Getenv("SIM_ENDPOINT"), "Swap simulator JSON-RPC endpoint")
	traceEndpoint := flag.String("trace-endpoint", os.Getenv("TRACE_ENDPOINT"), "Funding trace JSON-RPC endpoint")
	traceWS := flag.String("trace-ws", os.Getenv("TRACE_WS_ENDPOINT"), "Funding transfer WebSocket endpoint (optional)")
	listenAddr := flag.String("listen-addr", ":8080", "HTTP listen address for signals/metrics/status")
	capital := flag.Float64("capital", envFloat("INITIAL_CAPITAL", 1000), "Initial capital in USD")
	wallets := flag.String("wallets", os.Getenv("EXECUTION_WALLETS"), "Comma-separated execution wallet addresses")
	entropySeed := flag.Int64("entropy-seed", 0, "Entropy RNG seed (0 seeds from the clock)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *priceEndpoint == "" {
		logger.Fatal("--price-endpoint is required")
	}
	if *simEndpoint == "" {
		logger.Fatal("--sim-endpoint is required")
	}
	if *traceEndpoint == "" {
		logger.Fatal("--trace-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	walletList := splitList(*wallets)
	if len(walletList) == 0 {
		logger.Fatal("--wallets is required: at least one execution wallet")
	}
	for _, w := range walletList {
		if err := domain.ValidateAddress(w); err != nil {
			logger.Fatalf("Invalid execution wallet %q: %v", w, err)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	seed := *entropySeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, cfg.Trust.MinFundedWinners, cfg.Trust.EdgeConfidenceFloor)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Component logger
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Create components
	trustEngine := trust.NewEngine(stores.walletStore, stores.fundingStore, trust.NewCEXBook(), cfg.Trust, slogger)
	riskManager := risk.NewManager(cfg, stores.stateStore, stores.killSwitchStore, stores.tradeStore,
		stores.fundingStore, stores.outcomeStore, *capital, slogger)
	checker := honeypot.NewChecker(clients.NewSwapSimulator(*simEndpoint), cfg.Honeypot, slogger)
	evaluator := pipeline.NewEvaluator(cfg, pipeline.NewCooldownTracker(cfg.Cooldowns), slogger)
	entropyLayer := entropy.New(cfg.Entropy, walletList, seed)
	tracker := feedback.NewTracker(cfg.Feedback, slogger)
	metrics := observability.NewMetrics("whalehunter")

	eng := engine.New(engine.Options{
		Config:    cfg,
		Signals:   stores.signalStore,
		Trades:    stores.tradeStore,
		Buys:      stores.buyStore,
		Outcomes:  stores.outcomeStore,
		State:     stores.stateStore,
		Trust:     trustEngine,
		Checker:   checker,
		Evaluator: evaluator,
		Risk:      riskManager,
		Entropy:   entropyLayer,
		Feedback:  tracker,
		Prices:    clients.NewHTTPPriceService(*priceEndpoint),
		Tracer:    clients.NewHTTPFundingTracer(*traceEndpoint),
		Metrics:   metrics,
		Logger:    slogger,
	})

	server := &Server{
		engine: eng,
		trust:  trustEngine,
		risk:   riskManager,
		stats:  stores.statsStore,
		buys:   stores.buyStore,
		logger: logger,
	}

	// Optional live transfer stream
	if *traceWS != "" {
		server.stream = clients.NewTransferStream(ctx, *traceWS, slogger)
		go func() {
			if err := eng.ConsumeTransfers(ctx, server.stream.C()); err != nil && err != context.Canceled {
				logger.Printf("Transfer consumer error: %v", err)
			}
		}()
		logger.Printf("Consuming transfer stream from %s", *traceWS)
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(ctx, *listenAddr)

	// Run the engine's background loops
	err = eng.Run(ctx)
	if server.stream != nil {
		server.stream.Close()
	}
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Engine error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, minWinners int, edgeFloor float64) (*allStores, func(), error) {
	if useMemory {
		wallets := memory.NewWalletStore()
		funding := memory.NewFundingStore(wallets)
		signals := memory.NewSignalStore()
		trades := memory.NewTradeStore()
		stores := &allStores{
			walletStore:     wallets,
			fundingStore:    funding,
			signalStore:     signals,
			tradeStore:      trades,
			buyStore:        memory.NewBuyStore(wallets),
			statsStore:      memory.NewStatsStore(wallets, signals, trades, funding, minWinners, edgeFloor),
			stateStore:      memory.NewSystemStateStore(),
			killSwitchStore: memory.NewKillSwitchEventStore(),
			outcomeStore:    memory.NewOutcomeStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL (ledger)
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	// ClickHouse (outcome timeseries)
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	stores := &allStores{
		walletStore:     pgstore.NewWalletStore(pool),
		fundingStore:    pgstore.NewFundingStore(pool),
		signalStore:     pgstore.NewSignalStore(pool),
		tradeStore:      pgstore.NewTradeStore(pool),
		buyStore:        pgstore.NewBuyStore(pool),
		statsStore:      pgstore.NewStatsStore(pool, minWinners, edgeFloor),
		stateStore:      pgstore.NewSystemStateStore(pool),
		killSwitchStore: pgstore.NewKillSwitchEventStore(pool),
		outcomeStore:    chstore.NewOutcomeStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// startHTTPServer starts the HTTP server for signals/health/metrics/status.
func (s *Server) startHTTPServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/signals", s.handleSignal)
	mux.HandleFunc("/risk", s.handleRisk)
	mux.HandleFunc("/blackbook", s.handleBlackBook)
	mux.HandleFunc("/earlybuyers", s.handleEarlyBuyers)
	mux.HandleFunc("/provenance", s.handleProvenance)
	mux.HandleFunc("/status", s.handleStatus)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// SignalRequest is the JSON body for POST /signals.
type SignalRequest struct {
	Wallet     string  `json:"wallet"`
	Token      string  `json:"token"`
	Price      float64 `json:"price"`
	AmountUSD  float64 `json:"amount_usd"`
	SignalType string  `json:"signal_type"`
	Confidence float64 `json:"confidence"`
}

// SignalResponse summarizes one decision as JSON.
type SignalResponse struct {
	SignalID     int64   `json:"signal_id"`
	Action       string  `json:"action"`
	RejectReason string  `json:"reject_reason,omitempty"`
	Executed     bool    `json:"executed"`
	SkipReason   string  `json:"skip_reason,omitempty"`
	SizeUSD      float64 `json:"size_usd,omitempty"`
	TradeID      int64   `json:"trade_id,omitempty"`
	Wallet       string  `json:"execution_wallet,omitempty"`
}

// handleSignal runs one signal through the full decision flow.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode signal: %v", err), http.StatusBadRequest)
		return
	}

	sig := &domain.Signal{
		Timestamp:  time.Now().UTC(),
		Wallet:     req.Wallet,
		Token:      req.Token,
		Price:      req.Price,
		AmountUSD:  req.AmountUSD,
		SignalType: req.SignalType,
		Confidence: req.Confidence,
	}

	decision, err := s.engine.HandleSignal(r.Context(), sig)
	if err != nil {
		http.Error(w, fmt.Sprintf("handle signal: %v", err), http.StatusBadRequest)
		return
	}

	resp := SignalResponse{
		SignalID:   sig.ID,
		Executed:   decision.Executed,
		SkipReason: decision.SkipReason,
	}
	if decision.Evaluation != nil {
		resp.Action = string(decision.Evaluation.Decision)
		resp.RejectReason = decision.Evaluation.RejectReason
	}
	if decision.Executed && decision.Trade != nil {
		resp.SizeUSD = decision.Trade.AmountUSD
		resp.TradeID = decision.Trade.ID
		resp.Wallet = decision.Trade.WalletUsed
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleRisk returns the current risk snapshot as JSON.
func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	report, err := s.risk.Snapshot(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("risk snapshot: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// handleBlackBook returns the ranked mother wallet book as JSON.
func (s *Server) handleBlackBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.trust.BlackBook(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("black book: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(book)
}

// handleEarlyBuyers returns the first buyers of a token as JSON.
func (s *Server) handleEarlyBuyers(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token query parameter is required", http.StatusBadRequest)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	buyers, err := s.buys.EarlyBuyers(r.Context(), token, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("early buyers: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(buyers)
}

// handleProvenance returns the funding edges behind a wallet, grouped
// by hop, as JSON.
func (s *Server) handleProvenance(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		http.Error(w, "wallet query parameter is required", http.StatusBadRequest)
		return
	}
	hops := 2
	if raw := r.URL.Query().Get("hops"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 10 {
			http.Error(w, "hops must be an integer between 1 and 10", http.StatusBadRequest)
			return
		}
		hops = n
	}

	levels, err := s.trust.Provenance(r.Context(), wallet, hops)
	if err != nil {
		http.Error(w, fmt.Sprintf("provenance: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(levels)
}

// handleStatus returns ledger-wide counters as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.LedgerStats(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("ledger stats: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// splitList splits a comma-separated flag value.
func splitList(value string) []string {
	var list []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}

// envFloat reads a float env var, falling back when unset or invalid.
func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
