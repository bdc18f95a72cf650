package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"scandesk/internal/domain"
	"scandesk/internal/export"
	"scandesk/internal/ports"
	"scandesk/internal/services/pipeline"
	"scandesk/internal/services/sku"
	"scandesk/internal/workers/reverify"
)

// Reverifier re-runs verification for the pending records of a category.
type Reverifier interface {
	Reverify(ctx context.Context, category string) (reverify.Summary, error)
}

// ReverifierFunc adapts a function to Reverifier.
type ReverifierFunc func(ctx context.Context, category string) (reverify.Summary, error)

func (f ReverifierFunc) Reverify(ctx context.Context, category string) (reverify.Summary, error) {
	return f(ctx, category)
}

type Server struct {
	scanner    ports.Scanner
	reverifier Reverifier
	log        logrus.FieldLogger
	validate   *validator.Validate
}

// New builds the JSON API over scanner. A nil reverifier disables the
// reverify endpoint.
func New(scanner ports.Scanner, reverifier Reverifier, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{scanner: scanner, reverifier: reverifier, log: log, validate: validator.New()}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.getHealthz)
	r.Get("/categories", s.getCategories)
	r.Route("/categories/{category}", func(r chi.Router) {
		r.Get("/scans", s.getScans)
		r.Post("/scans", s.postScan)
		r.Post("/reverify", s.postReverify)
		r.Get("/export.xlsx", s.getExport)
	})
	r.Get("/sku/{code}", s.getSku)
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.scanner.Categories()})
}

func (s *Server) getScans(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	recs, err := s.scanner.Records(r.Context(), category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category, "records": recs})
}

type submitRequest struct {
	Fields map[string]string `json:"fields" validate:"required"`
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if _, ok := s.category(category); !ok {
		s.fail(w, r, fmt.Errorf("%w: %q", pipeline.ErrUnknownCategory, category))
		return
	}

	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "body must carry a fields object")
		return
	}
	out, err := s.scanner.Submit(r.Context(), category, req.Fields)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !out.Accepted {
		writeJSON(w, http.StatusUnprocessableEntity, out)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) postReverify(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if _, ok := s.category(category); !ok {
		s.fail(w, r, fmt.Errorf("%w: %q", pipeline.ErrUnknownCategory, category))
		return
	}
	if s.reverifier == nil {
		writeError(w, http.StatusServiceUnavailable, "verification is not configured")
		return
	}
	sum, err := s.reverifier.Reverify(r.Context(), category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recs, err := s.scanner.Records(r.Context(), category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": sum, "records": recs})
}

func (s *Server) getExport(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	cat, ok := s.category(category)
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: %q", pipeline.ErrUnknownCategory, category))
		return
	}
	recs, err := s.scanner.Records(r.Context(), category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wb, err := export.Workbook(cat, recs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer wb.Close()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s.xlsx", category, time.Now().UTC().Format("20060102")))
	if err := wb.Write(w); err != nil {
		s.log.WithError(err).WithField("category", category).Error("xlsx write failed")
	}
}

type skuResponse struct {
	Code     string          `json:"code"`
	Resolved bool            `json:"resolved"`
	ItemCode domain.ItemCode `json:"item_code,omitempty"`
}

func (s *Server) getSku(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	item, ok := sku.Resolve(code)
	if !ok {
		item, ok = sku.ResolveSerial(code)
	}
	writeJSON(w, http.StatusOK, skuResponse{Code: code, Resolved: ok, ItemCode: item})
}

func (s *Server) category(name string) (domain.Category, bool) {
	for _, c := range s.scanner.Categories() {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Category{}, false
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, pipeline.ErrUnknownCategory) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	}).WithError(err).Error("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
