package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mtzanidakis/digifuse/internal/catalog"
	"github.com/mtzanidakis/digifuse/internal/natsbus"
	"github.com/mtzanidakis/digifuse/internal/store"
)

func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var body struct {
		DigimonName string `json:"digimonName"`
	}
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(body.DigimonName)
	if name == "" {
		jsonError(w, "digimon name is required", http.StatusBadRequest)
		return
	}

	creature, err := s.catalog.Find(r.Context(), name)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		jsonError(w, "digimon not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("catalog lookup failed", "error", err)
		jsonError(w, "external API service unavailable", http.StatusServiceUnavailable)
		return
	}

	fav := &store.Favorite{
		UserID:       userID,
		DigimonName:  creature.Name,
		DigimonLevel: creature.Level,
		DigimonImage: creature.Image,
	}
	if err := s.store.AddFavorite(fav); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			jsonError(w, "digimon already in favorites", http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.publish(natsbus.TopicEventsFavorite(userID),
		natsbus.NewEvent(natsbus.EventFavoriteAdded, userID, map[string]string{"name": fav.DigimonName}))

	jsonStatus(w, http.StatusCreated, map[string]any{
		"message":  "Digimon added to favorites",
		"favorite": fav,
	})
}

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.store.ListFavorites(userIDFrom(r.Context()))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if favs == nil {
		favs = []store.Favorite{}
	}
	jsonResponse(w, map[string]any{
		"message": "Favorites retrieved",
		"data":    favs,
	})
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	name := r.PathValue("name")

	removed, err := s.store.RemoveFavorite(userID, name)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !removed {
		jsonError(w, "favorite not found", http.StatusNotFound)
		return
	}

	s.publish(natsbus.TopicEventsFavorite(userID),
		natsbus.NewEvent(natsbus.EventFavoriteRemoved, userID, map[string]string{"name": name}))

	jsonResponse(w, map[string]string{"message": "Digimon removed from favorites"})
}

func (s *Server) checkFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := s.store.GetFavorite(userIDFrom(r.Context()), r.PathValue("name"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"isFavorite": fav != nil})
}
