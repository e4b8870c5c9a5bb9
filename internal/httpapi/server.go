package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	apimw "github.com/hamed0406/uptimeworker/internal/httpapi/middleware"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/validate"
)

const maxBody = 64 << 10

type Server struct {
	Logger      *zap.Logger
	Checks      *repo.Checks
	Validator   *validate.Validator
	MaxPerOwner int

	// NewID returns a fresh check id; replaced in tests.
	NewID func() string

	// create serializes the owner quota check with the insert.
	create sync.Mutex
}

func NewServer(l *zap.Logger, checks *repo.Checks, v *validate.Validator, maxPerOwner int) *Server {
	return &Server{
		Logger:      l,
		Checks:      checks,
		Validator:   v,
		MaxPerOwner: maxPerOwner,
		NewID:       NewCheckID,
	}
}

// NewCheckID returns validate.IDLength lowercase hex characters.
func NewCheckID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:validate.IDLength]
}

// Router wires the API. Reads need any key, writes need an admin key; each
// group has its own per-IP rate limit. Empty corsOrigins allows all origins.
func (s *Server) Router(keys apimw.Keys, corsOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)
	if len(corsOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/checks", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(pubRPM, pubBurst), apimw.RequireAny(keys))
			r.Get("/", s.handleList)
			r.Get("/{id}", s.handleGet)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(admRPM, admBurst), apimw.RequireAdmin(keys))
			r.Post("/", s.handleCreate)
			r.Delete("/{id}", s.handleDelete)
		})
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}

// checkView is a stored record plus whether the worker would accept it.
type checkView struct {
	domain.RawCheck
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

func (s *Server) view(raw domain.RawCheck) checkView {
	v := checkView{RawCheck: raw, Valid: true}
	if _, err := s.Validator.Validate(raw); err != nil {
		v.Valid = false
		var me *validate.MalformedError
		if errors.As(err, &me) {
			v.Problems = me.Fields
		}
	}
	return v
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Checks.IDs(r.Context())
	if err != nil {
		s.Logger.Warn("api_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]checkView, 0, len(ids))
	for _, id := range ids {
		raw, err := s.Checks.Read(r.Context(), id)
		if err != nil {
			// unreadable records are still listed by id
			out = append(out, checkView{RawCheck: domain.RawCheck{ID: id}, Problems: []string{"unreadable"}})
			continue
		}
		out = append(out, s.view(raw))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	raw, err := s.Checks.Read(r.Context(), id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "check not found")
	case err != nil:
		s.Logger.Warn("api_read_error", zap.String("check_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
	default:
		writeJSON(w, http.StatusOK, s.view(raw))
	}
}

// createPayload is the body of POST /api/checks. URL may be given instead of
// protocol and host.
type createPayload struct {
	OwnerContact   string  `json:"ownerContact"`
	URL            string  `json:"url,omitempty"`
	Protocol       string  `json:"protocol"`
	Host           string  `json:"host"`
	Method         string  `json:"method"`
	AcceptedCodes  []int   `json:"acceptedCodes"`
	TimeoutSeconds float64 `json:"timeoutSeconds"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var p createPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if p.URL != "" {
		proto, host, ok := splitTarget(p.URL)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed check", "fields": []string{"url"}})
			return
		}
		p.Protocol, p.Host = proto, host
	}

	raw := domain.RawCheck{
		ID:             s.NewID(),
		OwnerContact:   p.OwnerContact,
		Protocol:       p.Protocol,
		Host:           p.Host,
		Method:         p.Method,
		AcceptedCodes:  p.AcceptedCodes,
		TimeoutSeconds: p.TimeoutSeconds,
	}
	c, err := s.Validator.Validate(raw)
	if err != nil {
		body := map[string]any{"error": "malformed check"}
		var me *validate.MalformedError
		if errors.As(err, &me) {
			body["fields"] = me.Fields
		}
		writeJSON(w, http.StatusBadRequest, body)
		return
	}

	s.create.Lock()
	defer s.create.Unlock()

	n, err := s.countOwned(r, c.OwnerContact)
	if err != nil {
		s.Logger.Warn("api_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if n >= s.MaxPerOwner {
		writeError(w, http.StatusConflict, fmt.Sprintf("owner already has the maximum of %d checks", s.MaxPerOwner))
		return
	}

	if err := s.Checks.Create(r.Context(), c); err != nil {
		if errors.Is(err, repo.ErrExists) {
			writeError(w, http.StatusConflict, "id collision, retry")
			return
		}
		s.Logger.Error("api_create_error", zap.String("check_id", c.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}
	s.Logger.Info("check_created",
		zap.String("check_id", c.ID),
		zap.String("url", c.URL()),
		zap.String("method", c.HTTPMethod()))
	writeJSON(w, http.StatusCreated, s.view(c.Record()))
}

func (s *Server) countOwned(r *http.Request, owner string) (int, error) {
	ids, err := s.Checks.IDs(r.Context())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		raw, err := s.Checks.Read(r.Context(), id)
		if err != nil {
			continue
		}
		if strings.TrimSpace(raw.OwnerContact) == owner {
			n++
		}
	}
	return n, nil
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.Checks.Delete(r.Context(), id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "check not found")
	case err != nil:
		s.Logger.Error("api_delete_error", zap.String("check_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete error")
	default:
		s.Logger.Info("check_deleted", zap.String("check_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

// splitTarget turns "https://Example.com:443/health" into ("https",
// "example.com/health"). Default ports and a bare trailing slash are dropped.
func splitTarget(raw string) (protocol, host string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return "", "", false
	}
	protocol = strings.ToLower(u.Scheme)
	if protocol != "http" && protocol != "https" {
		return "", "", false
	}
	host = strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if p := u.Port(); p != "" && !(protocol == "http" && p == "80") && !(protocol == "https" && p == "443") {
		host += ":" + p
	}
	if u.EscapedPath() != "/" {
		host += u.EscapedPath()
	}
	if u.RawQuery != "" {
		host += "?" + u.RawQuery
	}
	return protocol, host, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
