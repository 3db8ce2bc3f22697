// Package ops exposes the operator HTTP API: catalog administration,
// manual credits, and reconciliation of refunds that failed to apply.
package ops

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/FAST22588/bot-Discord-v3/internal/drive"
	"github.com/FAST22588/bot-Discord-v3/internal/ledger"
	"github.com/FAST22588/bot-Discord-v3/internal/models"
	"github.com/FAST22588/bot-Discord-v3/internal/refund"
)

// Server holds the ops API dependencies.
type Server struct {
	ledger *ledger.Service
	guard  *refund.Guard

	jwtSecret    string
	jwtExpiry    time.Duration
	passwordHash string
	log          zerolog.Logger
}

func NewServer(svc *ledger.Service, guard *refund.Guard, jwtSecret string,
	jwtExpiry time.Duration, passwordHash string, log zerolog.Logger) *Server {
	return &Server{
		ledger:       svc,
		guard:        guard,
		jwtSecret:    jwtSecret,
		jwtExpiry:    jwtExpiry,
		passwordHash: passwordHash,
		log:          log.With().Str("component", "ops").Logger(),
	}
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/catalog", s.handleListCatalog)
		r.Put("/catalog/{name}", s.handleUpsertItem)
		r.Delete("/catalog/{name}", s.handleRemoveItem)
		r.Post("/accounts/{discordID}/credit", s.handleCredit)
		r.Get("/reconcile/pending", s.handlePendingRefunds)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type loginRequest struct {
	Operator string `json:"operator"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if s.passwordHash == "" || !verifyPassword(req.Password, s.passwordHash) {
		s.log.Warn().Str("operator", req.Operator).Msg("failed login")
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.issueToken(req.Operator)
	if err != nil {
		http.Error(w, "token issuance failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := s.ledger.ListCatalog(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type upsertItemRequest struct {
	DriveLinkOrID string `json:"drive_link_or_id"`
	PriceCents    int64  `json:"price_cents"`
}

func (s *Server) handleUpsertItem(w http.ResponseWriter, r *http.Request) {
	var req upsertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	item := &models.CatalogItem{
		Name:       chi.URLParam(r, "name"),
		DriveID:    drive.ParseID(req.DriveLinkOrID),
		PriceCents: req.PriceCents,
	}
	if err := s.ledger.UpsertCatalogItem(r.Context(), item); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ledger.RemoveCatalogItem(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !removed {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

type creditRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	discordID, err := strconv.ParseInt(chi.URLParam(r, "discordID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid discord id", http.StatusBadRequest)
		return
	}

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	balance, err := s.ledger.CreditAccount(r.Context(), discordID, req.AmountCents)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance_cents": balance})
}

// handlePendingRefunds lists purchase references whose compensating
// credit failed mid-flight and needs a manual fix.
func (s *Server) handlePendingRefunds(w http.ResponseWriter, r *http.Request) {
	refs, err := s.guard.Pending()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"pending": refs})
}
