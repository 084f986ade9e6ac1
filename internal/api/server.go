package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"petling/internal/config"
	"petling/internal/pet"
	"petling/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const userContextKey contextKey = "user"

// SessionCookie carries the user id of the web session. The value is only
// checked for presence in the user registry; there is no signature or expiry,
// matching the chat-first registration model. See DESIGN.md for the security
// implications.
const SessionCookie = "user_id"

type Server struct {
	cfg  config.Config
	log  *slog.Logger
	pets *pet.Service
	mux  *chi.Mux
}

func New(cfg config.Config, logger *slog.Logger, pets *pet.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		pets: pets,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	fs := http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.AssetDir)))
	r.Get("/static/*", fs.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/catalog", s.handleCatalog)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Get("/me", s.handleMe)
			r.Get("/pet", s.handlePet)
			r.Post("/pet/buy", s.handleBuy)
			r.Post("/pet/feed", s.handleCare(pet.CareFeed))
			r.Post("/pet/play", s.handleCare(pet.CarePlay))
		})

		r.Group(func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Get("/admin/user/{id}", s.handleAdminUser)
			r.Post("/admin/credit", s.handleCredit)
		})
	})
}

// sessionMiddleware resolves the session cookie to a registered user. The
// web side never creates users; registration happens on first chat contact.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil || strings.TrimSpace(c.Value) == "" {
			writeError(w, http.StatusUnauthorized, "missing session cookie")
			return
		}
		userID := strings.TrimSpace(c.Value)
		if _, err := s.pets.Profile(r.Context(), userID); err != nil {
			if errors.Is(err, pet.ErrUserNotFound) {
				writeError(w, http.StatusForbidden, "unknown session")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if s.cfg.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusForbidden, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userContextKey).(string)
	if !ok || userID == "" {
		return "", errors.New("missing session context")
	}
	return userID, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := strings.TrimSpace(in.UserID)
	profile, err := s.pets.Profile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    userID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	profile, err := s.pets.Profile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.pets.Catalog(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"catalog": entries})
}

func (s *Server) handlePet(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	status, err := s.pets.Pet(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		PetKey string `json:"pet_key"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := s.pets.Purchase(r.Context(), pet.PurchaseInput{
		UserID: userID,
		PetKey: strings.TrimSpace(in.PetKey),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCare(action pet.CareAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		status, err := s.pets.Care(r.Context(), pet.CareInput{
			UserID: userID,
			Action: action,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// handleAdminUser is the operator profile lookup; unlike login it mints no
// session cookie.
func (s *Server) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	profile, err := s.pets.Profile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID string `json:"user_id"`
		Amount int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.pets.Credit(r.Context(), strings.TrimSpace(in.UserID), in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": in.UserID, "balance": balance})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pet.ErrUserNotFound),
		errors.Is(err, pet.ErrUnknownPet),
		errors.Is(err, pet.ErrNoPetOwned):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pet.ErrInsufficientBalance),
		errors.Is(err, pet.ErrInvalidAmount),
		errors.Is(err, pet.ErrInvalidCareAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrCorruptDocument),
		errors.Is(err, pet.ErrDanglingPet):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
