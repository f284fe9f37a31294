package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mtzanidakis/digifuse/internal/catalog"
	"github.com/mtzanidakis/digifuse/internal/domain"
	"github.com/mtzanidakis/digifuse/internal/natsbus"
	"github.com/mtzanidakis/digifuse/internal/store"
)

const maxBodyBytes = 1 << 20

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api", s.welcome)
	mux.HandleFunc("GET /api/{$}", s.welcome)

	// Auth
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/google-login", s.googleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/auth/profile", s.getProfile)
	mux.HandleFunc("PUT /api/auth/profile", s.updateProfile)
	mux.HandleFunc("DELETE /api/auth/profile", s.deleteProfile)

	// Catalog
	mux.HandleFunc("GET /api/digimon", s.listDigimon)

	// Fusion
	mux.HandleFunc("POST /api/fusion", s.createFusion)
	mux.HandleFunc("GET /api/fusion/history", s.fusionHistory)

	// Favorites
	mux.HandleFunc("POST /api/favorites", s.addFavorite)
	mux.HandleFunc("GET /api/favorites", s.listFavorites)
	mux.HandleFunc("DELETE /api/favorites/{name}", s.removeFavorite)
	mux.HandleFunc("GET /api/favorites/check/{name}", s.checkFavorite)
}

func (s *Server) welcome(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{
		"message": "Welcome to the Digimon Fusion Generator API",
		"version": s.version,
		"uptime":  formatUptime(time.Since(s.startedAt)),
		"endpoints": map[string]string{
			"auth":      "/api/auth (POST /register, POST /login, POST /logout, GET /profile, PUT /profile, DELETE /profile)",
			"digimon":   "/api/digimon (GET /)",
			"fusion":    "/api/fusion (POST /, GET /history)",
			"favorites": "/api/favorites (POST /, GET /, DELETE /{name}, GET /check/{name})",
			"events":    "/api/ws (websocket)",
		},
	})
}

func (s *Server) listDigimon(w http.ResponseWriter, r *http.Request) {
	creatures, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Error("catalog list failed", "error", err)
		jsonError(w, "external API service unavailable", http.StatusServiceUnavailable)
		return
	}
	jsonResponse(w, map[string]any{
		"message": "Digimon data retrieved successfully",
		"data":    creatures,
	})
}

type fusionResponse struct {
	Digimon1           string `json:"digimon1"`
	Digimon2           string `json:"digimon2"`
	Digimon1IsFavorite bool   `json:"digimon1IsFavorite"`
	Digimon2IsFavorite bool   `json:"digimon2IsFavorite"`
	domain.FusionResult
}

func (s *Server) createFusion(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var body struct {
		Digimon1 string `json:"digimon1"`
		Digimon2 string `json:"digimon2"`
	}
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	body.Digimon1 = strings.TrimSpace(body.Digimon1)
	body.Digimon2 = strings.TrimSpace(body.Digimon2)
	if body.Digimon1 == "" || body.Digimon2 == "" {
		jsonError(w, "digimon1 and digimon2 are required", http.StatusBadRequest)
		return
	}
	if strings.EqualFold(body.Digimon1, body.Digimon2) {
		jsonError(w, "choose two different digimon", http.StatusBadRequest)
		return
	}

	a, b, err := s.catalog.FindPair(r.Context(), body.Digimon1, body.Digimon2)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		jsonError(w, "one or both digimon not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("catalog lookup failed", "error", err)
		jsonError(w, "external API service unavailable", http.StatusServiceUnavailable)
		return
	}

	if !s.limiter.Allow(userID) {
		w.Header().Set("Retry-After", "10")
		jsonError(w, "too many fusion requests, slow down", http.StatusTooManyRequests)
		return
	}

	// From here on names use the catalog spelling, not the caller's.
	result := s.fusion.Create(r.Context(), domain.FusionRequest{
		NameA:  a.Name,
		NameB:  b.Name,
		ImageA: a.Image,
		ImageB: b.Image,
	})

	favs, err := s.store.FavoriteSet(userID, a.Name, b.Name)
	if err != nil {
		s.logger.Warn("favorite check failed", "user_id", userID, "error", err)
		favs = map[string]bool{}
	}

	rec := &store.FusionRecord{
		UserID:            userID,
		Digimon1:          a.Name,
		Digimon2:          b.Name,
		FusionName:        result.Name,
		FusionDescription: result.Description,
		ImagePrompt:       result.ImagePrompt,
	}
	if err := s.store.SaveFusion(rec); err != nil {
		s.logger.Error("save fusion history failed", "user_id", userID, "error", err)
	}

	s.publish(natsbus.TopicEventsFusion(userID), natsbus.NewEvent(natsbus.EventFusionCreated, userID, map[string]string{
		"id":       rec.ID,
		"name":     result.Name,
		"digimon1": a.Name,
		"digimon2": b.Name,
	}))

	jsonResponse(w, map[string]any{
		"message": "Fusion created",
		"fusion": fusionResponse{
			Digimon1:           a.Name,
			Digimon2:           b.Name,
			Digimon1IsFavorite: favs[a.Name],
			Digimon2IsFavorite: favs[b.Name],
			FusionResult:       result,
		},
	})
}

func (s *Server) fusionHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListFusions(userIDFrom(r.Context()), 100)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.FusionRecord{}
	}
	jsonResponse(w, map[string]any{
		"message": "Fusion history retrieved",
		"data":    records,
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
