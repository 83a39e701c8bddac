package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/TobiSchelling/ESGLens/internal/analysis"
	"github.com/TobiSchelling/ESGLens/internal/classify"
	"github.com/TobiSchelling/ESGLens/internal/clova"
	"github.com/TobiSchelling/ESGLens/internal/database"
	"github.com/TobiSchelling/ESGLens/internal/disclosure"
	"github.com/TobiSchelling/ESGLens/internal/fetch"
	"github.com/TobiSchelling/ESGLens/internal/report"
)

// AnalysisService runs and reads ESG analyses.
type AnalysisService interface {
	AnalyzeCompany(ctx context.Context, ref analysis.CompanyRef) (*analysis.BatchReport, error)
	Results(ctx context.Context, ref analysis.CompanyRef) ([]analysis.Record, error)
	AnalyzeRemote(ctx context.Context, req analysis.RemoteRequest) (*analysis.RemoteResult, error)
}

// CompanyStore looks companies up.
type CompanyStore interface {
	GetCompanyByCode(stockCode string) (*database.Company, error)
	ListCompanies(trackedOnly bool) ([]database.Company, error)
}

// Financials reads income statements from the disclosure service.
type Financials interface {
	IncomeStatement(ctx context.Context, corpCode string, years int, now time.Time) (*disclosure.Statement, error)
}

// Assistant answers free-form questions.
type Assistant interface {
	Ask(ctx context.Context, query string) (map[string]any, error)
}

// Reports builds company reports.
type Reports interface {
	Build(stockCode string) (*report.Report, error)
}

// Deps are the collaborators behind the HTTP API. Financials and Assistant
// may be nil, in which case their endpoints answer 503.
type Deps struct {
	Analysis       AnalysisService
	Companies      CompanyStore
	Financials     Financials
	Assistant      Assistant
	Reports        Reports
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server is the JSON HTTP API.
type Server struct {
	deps   Deps
	router chi.Router
	logger *slog.Logger
	now    func() time.Time
}

// New creates the server and registers its routes.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{deps: deps, router: chi.NewRouter(), logger: logger.With("component", "server"), now: time.Now}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.RequestLogger(requestLogger{logger: s.logger}))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/companies", s.handleCompanies)
	s.router.Get("/report/{stock_code}", s.handleReport)

	s.router.Post("/esg_analysis", s.handleAnalysis)
	s.router.Post("/esg_results", s.handleResults)
	s.router.Post("/esg_result", s.handleRemoteResult)
	s.router.Post("/financial_statements", s.handleFinancials)
	s.router.Post("/clova_chat", s.handleAssistant)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type companyJSON struct {
	StockCode string `json:"stock_code"`
	Name      string `json:"name"`
	CorpCode  string `json:"corp_code,omitempty"`
	Tracked   bool   `json:"tracked"`
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.deps.Companies.ListCompanies(r.URL.Query().Get("tracked") == "true")
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]companyJSON, len(companies))
	for i, c := range companies {
		out[i] = companyJSON{StockCode: c.StockCode, Name: c.Name, Tracked: c.Tracked}
		if c.CorpCode != nil {
			out[i].CorpCode = *c.CorpCode
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var ref analysis.CompanyRef
	if !decode(w, r, &ref) {
		return
	}
	if ref.Empty() {
		writeError(w, http.StatusBadRequest, "company_name or company_stock_code is required")
		return
	}

	batch, err := s.deps.Analysis.AnalyzeCompany(r.Context(), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	records := batch.Records
	if records == nil {
		records = []analysis.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	var ref analysis.CompanyRef
	if !decode(w, r, &ref) {
		return
	}
	if ref.Empty() {
		writeError(w, http.StatusBadRequest, "company_name or company_stock_code is required")
		return
	}

	records, err := s.deps.Analysis.Results(r.Context(), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRemoteResult(w http.ResponseWriter, r *http.Request) {
	var req analysis.RemoteRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ArticleID) == "" {
		writeError(w, http.StatusBadRequest, "article_id is required")
		return
	}

	result, err := s.deps.Analysis.AnalyzeRemote(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type financialRequest struct {
	StockCode string `json:"company_stock_code"`
	Period    int    `json:"period"`
	Compact   bool   `json:"compact"`
}

func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	var req financialRequest
	if !decode(w, r, &req) {
		return
	}
	if !disclosure.ValidYears(req.Period) {
		s.writeError(w, disclosure.ErrInvalidPeriod)
		return
	}
	if s.deps.Financials == nil {
		s.writeError(w, disclosure.ErrNotConfigured)
		return
	}

	company, err := s.deps.Companies.GetCompanyByCode(strings.TrimSpace(req.StockCode))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if company == nil || company.CorpCode == nil || *company.CorpCode == "" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("company %q not found; run 'esglens companies sync'", req.StockCode))
		return
	}

	stmt, err := s.deps.Financials.IncomeStatement(r.Context(), *company.CorpCode, req.Period, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Compact {
		stmt = stmt.Compact()
	}
	writeJSON(w, http.StatusOK, stmt.Rows)
}

type assistantRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if s.deps.Assistant == nil {
		s.writeError(w, clova.ErrNotConfigured)
		return
	}

	answer, err := s.deps.Assistant.Ask(r.Context(), req.Query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Reports.Build(chi.URLParam(r, "stock_code"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, rep.Markdown())
		return
	}

	body, err := rep.HTML()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s ESG report</title></head><body>\n%s</body></html>\n",
		rep.Company.StockCode, body)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var apiErr *disclosure.APIError
	switch {
	case errors.Is(err, analysis.ErrNotFound),
		errors.Is(err, report.ErrUnknownCompany),
		errors.Is(err, fetch.ErrArticleNotFound):
		return http.StatusNotFound
	case errors.Is(err, disclosure.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return apiErr.HTTPStatus()
	case errors.Is(err, classify.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, disclosure.ErrNotConfigured), errors.Is(err, clova.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, handler http.Handler, addr string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
