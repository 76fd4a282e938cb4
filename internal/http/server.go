package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"conti/internal/log"
	"conti/internal/middleware/ratelimit"
	"conti/internal/middleware/recovery"
	"conti/internal/middleware/security"
	"conti/internal/middleware/trace"
	"conti/internal/services"
)

const apiPrefix = "/api/v1"

// Services are the use cases behind the API.
type Services struct {
	Accounts     *services.AccountService
	Transactions *services.TransactionService
	Transfers    *services.TransferService
	Categories   *services.CategoryService
	Budgets      *services.BudgetService
	Rates        *services.RateService
	Settings     *services.SettingsService
}

// Pinger is checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	Logger         *log.Logger
}

type Server struct {
	http.Server
	svc    Services
	db     Pinger
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer wires the middleware chain and routes, returning a ready-to-run
// http.Server. Call Shutdown to stop background goroutines.
func NewServer(cfg Config, svc Services, db Pinger) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		svc:              svc,
		db:               db,
		logger:           logger,
		securityDetector: detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}),
		traceMiddleware: trace.NewMiddleware(detector.ExtractClientIP, logger),
		started:         time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(h)
	h = detector.Middleware(h)
	h = security.NewCORS(security.DefaultCORSConfig(cfg.CORSOrigins)).Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = recovery.Middleware(h)
	h = s.traceMiddleware.Middleware(h)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Each resource group logs under its own component.
	group := func(component string) func(string, http.HandlerFunc) {
		withComponent := log.ComponentMiddleware(component)
		return func(pattern string, h http.HandlerFunc) {
			method, path, _ := strings.Cut(pattern, " ")
			mux.Handle(method+" "+apiPrefix+path, withComponent(h))
		}
	}

	accounts := group(log.ComponentAccount)
	accounts("POST /accounts", s.handleCreateAccount)
	accounts("GET /accounts", s.handleListAccounts)
	accounts("GET /accounts/total-balance", s.handleTotalBalance)
	accounts("GET /accounts/{id}", s.handleGetAccount)
	accounts("PATCH /accounts/{id}", s.handleUpdateAccount)
	accounts("DELETE /accounts/{id}", s.handleDeleteAccount)

	transactions := group(log.ComponentTransaction)
	transactions("POST /transactions", s.handleCreateTransaction)
	transactions("GET /transactions", s.handleListTransactions)
	transactions("GET /transactions/{id}", s.handleGetTransaction)
	transactions("PATCH /transactions/{id}", s.handleUpdateTransaction)
	transactions("DELETE /transactions/{id}", s.handleDeleteTransaction)

	transfers := group(log.ComponentTransfer)
	transfers("POST /transfers", s.handleCreateTransfer)
	transfers("GET /transfers", s.handleListTransfers)
	transfers("GET /transfers/{id}", s.handleGetTransfer)
	transfers("PATCH /transfers/{id}", s.handleUpdateTransfer)
	transfers("DELETE /transfers/{id}", s.handleDeleteTransfer)

	categories := group(log.ComponentCategory)
	categories("POST /categories", s.handleCreateCategory)
	categories("GET /categories", s.handleListCategories)
	categories("GET /categories/hierarchy", s.handleCategoryHierarchy)
	categories("GET /categories/{id}", s.handleGetCategory)
	categories("PATCH /categories/{id}", s.handleUpdateCategory)
	categories("DELETE /categories/{id}", s.handleDeleteCategory)

	budgets := group(log.ComponentBudget)
	budgets("POST /budgets", s.handleCreateBudget)
	budgets("GET /budgets", s.handleListBudgets)
	budgets("GET /budgets/{id}", s.handleGetBudget)
	budgets("PATCH /budgets/{id}", s.handleUpdateBudget)
	budgets("DELETE /budgets/{id}", s.handleDeleteBudget)

	rates := group(log.ComponentRates)
	rates("GET /currency-rates", s.handleListRates)
	rates("GET /currency-rates/current", s.handleCurrentRates)
	rates("POST /currency-rates/import/json", s.handleImportRatesJSON)
	rates("POST /currency-rates/import/csv", s.handleImportRatesCSV)

	settings := group(log.ComponentSettings)
	settings("GET /settings", s.handleGetSettings)
	settings("PATCH /settings", s.handleUpdateSettings)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(ctx, http.StatusTooManyRequests, "rate limit exceeded, please try again later", nil).Write(w)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
