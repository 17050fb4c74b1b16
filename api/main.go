package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DeafMist/reflink/backend/internal/config"
	"github.com/DeafMist/reflink/backend/internal/elasticsearch"
	"github.com/DeafMist/reflink/backend/internal/fetch"
	"github.com/DeafMist/reflink/backend/internal/logger"
	"github.com/DeafMist/reflink/backend/internal/metrics"
	"github.com/DeafMist/reflink/backend/internal/models"
	"github.com/DeafMist/reflink/backend/internal/render"
	"github.com/DeafMist/reflink/backend/internal/resolve"
)

type referenceStore interface {
	GetReferenceSet(ctx context.Context, documentID string) (*models.ReferenceSet, error)
	Health(ctx context.Context) error
}

type referenceFetcher interface {
	Fetch(ctx context.Context, documentID string) (*models.ReferenceList, error)
}

func main() {
	log := logger.New("api")
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", slog.Any("err", err))
	}

	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	fetcher := fetch.NewClient(cfg.PublicHost,
		fetch.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}),
		fetch.WithRateLimit(cfg.FetchRateLimit),
	)

	// Resolution links point back at the host the page fetches from.
	srv := &server{log: log, store: esClient, fetcher: fetcher, hostname: fetcher.Hostname()}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("public_host", cfg.PublicHost),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log      *slog.Logger
	store    referenceStore
	fetcher  referenceFetcher
	hostname string
}

type errorResponse struct {
	Error string `json:"error"`
}

type explanationResponse struct {
	Explanation string `json:"explanation"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/abs/{documentID}", s.handlePage)
	r.Get("/references/{documentID}", s.handleList)
	r.Get("/references/{documentID}/ref/{referenceID}", s.handleReference)
	r.Get("/references/{documentID}/ref/{referenceID}/resolve", s.handleResolve)

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	documentID := pathParam(r, "documentID")
	set, err := s.store.GetReferenceSet(ctx, documentID)
	if err != nil {
		s.writeStoreError(w, documentID, err)
		return
	}

	refs := set.References
	if refs == nil {
		refs = []models.Reference{}
	}
	writeJSON(w, http.StatusOK, models.ReferenceList{References: refs})
}

func (s *server) handleReference(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	documentID := pathParam(r, "documentID")
	referenceID := pathParam(r, "referenceID")

	set, err := s.store.GetReferenceSet(ctx, documentID)
	if err != nil {
		s.writeStoreError(w, documentID, err)
		return
	}

	ref, ok := set.Find(referenceID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such reference"})
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	documentID := pathParam(r, "documentID")
	referenceID := pathParam(r, "referenceID")

	set, err := s.store.GetReferenceSet(ctx, documentID)
	if err != nil && !errors.Is(err, elasticsearch.ErrNotFound) {
		s.writeStoreError(w, documentID, err)
		return
	}

	var ref models.Reference
	found := false
	if set != nil {
		ref, found = set.Find(referenceID)
	}
	if !found {
		metrics.ResolutionsTotal.WithLabelValues("none").Inc()
		writeJSON(w, http.StatusNotFound, explanationResponse{Explanation: "No data exists for this reference"})
		return
	}

	target, ok := resolve.Resolve(ref)
	if !ok {
		metrics.ResolutionsTotal.WithLabelValues("none").Inc()
		writeJSON(w, http.StatusNotFound, explanationResponse{Explanation: "cannot provide redirect for reference"})
		return
	}

	metrics.ResolutionsTotal.WithLabelValues(string(target.Kind)).Inc()
	s.log.Debug("resolved reference",
		slog.String("document_id", documentID),
		slog.String("reference_id", referenceID),
		slog.String("target", string(target.Kind)),
	)
	http.Redirect(w, r, target.URL, http.StatusSeeOther)
}

// handlePage renders a document's reference list as HTML. The list is
// fetched over HTTP from the public host, the same way a browser page would.
func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	documentID := pathParam(r, "documentID")
	// Escaped once so ids such as hep-th/9901001 stay a single path segment
	// in both the fetch URL and the resolve links.
	segment := url.PathEscape(documentID)

	list, err := s.fetcher.Fetch(ctx, segment)
	if err != nil {
		failure := fetch.Classify(err)
		metrics.FetchFailuresTotal.WithLabelValues(failure.String()).Inc()

		status := http.StatusBadGateway
		if failure == fetch.NotFound {
			status = http.StatusNotFound
			s.log.Info("no references for document", slog.String("document_id", documentID))
		} else {
			s.log.Error("fetch references", slog.String("document_id", documentID), slog.Any("err", err))
		}
		s.writeHTML(w, r, status, render.Page(documentID, render.Message(failure.Message())))
		return
	}

	refs := render.Render(*list, segment, s.hostname)
	if dropped := len(list.References) - len(refs); dropped > 0 {
		s.log.Warn("dropped references without identifier",
			slog.String("document_id", documentID),
			slog.Int("dropped", dropped),
		)
	}
	metrics.ReferencesRendered.Add(float64(len(refs)))

	s.writeHTML(w, r, http.StatusOK, render.Page(documentID, render.ReferenceList(refs)))
}

func (s *server) writeStoreError(w http.ResponseWriter, documentID string, err error) {
	if errors.Is(err, elasticsearch.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no references for document"})
		return
	}
	s.log.Error("load reference set", slog.String("document_id", documentID), slog.Any("err", err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "reference store unavailable"})
}

func (s *server) writeHTML(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		s.log.Error("render page", slog.Any("err", err))
	}
}

// pathParam returns a decoded route parameter. chi matches against the raw
// path when one exists, so escaped segments such as %2F arrive encoded.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
