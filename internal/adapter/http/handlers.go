package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starbrewcrew/brewfinder/internal/adapter/mapbox"
	"github.com/starbrewcrew/brewfinder/internal/domain"
	"github.com/starbrewcrew/brewfinder/internal/analytics"
	"github.com/starbrewcrew/brewfinder/internal/rank"
	"github.com/starbrewcrew/brewfinder/internal/search"
	"github.com/starbrewcrew/brewfinder/internal/storage"
)

// maxBodyBytes caps request bodies; enrichment payloads carry full
// provider feature lists but nothing legitimate approaches a megabyte.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleLocationSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter query is required")
		return
	}

	results, degraded := s.searcher.SearchLocation(r.Context(), query)

	if s.analytics != nil {
		event := analytics.SearchEvent{Query: query, Degraded: degraded, OccurredAt: time.Now().UTC()}
		if len(results) == 1 {
			event.ShopCount = len(results[0].Shops)
			if len(results[0].Center) == 2 {
				event.Longitude = results[0].Center[0]
				event.Latitude = results[0].Center[1]
			}
		}
		s.analytics.Publish(r.Context(), event)
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	longitude, err := strconv.ParseFloat(q.Get("longitude"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "query parameter longitude must be a number")
		return
	}
	latitude, err := strconv.ParseFloat(q.Get("latitude"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "query parameter latitude must be a number")
		return
	}
	radius := mapbox.DefaultRadius
	if raw := q.Get("radius"); raw != "" {
		radius, err = strconv.Atoi(raw)
		if err != nil || radius <= 0 {
			writeError(w, http.StatusBadRequest, "query parameter radius must be a positive integer")
			return
		}
	}

	shops, degraded := s.searcher.SearchNearby(r.Context(), longitude, latitude, radius)

	if s.analytics != nil {
		s.analytics.Publish(r.Context(), analytics.SearchEvent{
			Longitude:  longitude,
			Latitude:   latitude,
			Radius:     radius,
			ShopCount:  len(shops),
			Degraded:   degraded,
			OccurredAt: time.Now().UTC(),
		})
	}

	writeJSON(w, http.StatusOK, shops)
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	shop, err := s.searcher.GetShop(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (s *Server) handleCoordinates(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "query parameter address is required")
		return
	}

	center, err := s.searcher.Coordinates(r.Context(), address)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coordinates": center})
}

func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Coordinates [][]float64 `json:"coordinates"`
		Padding     *float64    `json:"padding"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	padding := float64(search.DefaultBoundsPadding)
	if req.Padding != nil {
		padding = *req.Padding
	}

	bounds, err := search.BoundingBox(req.Coordinates, padding)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boundingBox": bounds})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	completion, err := s.completer.Complete(r.Context(), req.Prompt)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    completion.Text(),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CoffeeShops []rank.ShopSummary `json:"coffeeShops"`
		Preferences string             `json:"userPreferences"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	insights, err := s.ranker.Rank(r.Context(), req.CoffeeShops, req.Preferences)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    insights,
	})
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SearchResult rank.SearchResult `json:"searchResult"`
		Preferences  string            `json:"preferences"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	enrichment, err := s.ranker.Enrich(r.Context(), req.SearchResult, req.Preferences)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    enrichment,
	})
}

func (s *Server) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.auth.RequestCode(r.Context(), req.PhoneNumber); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "verification code sent",
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Code        string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	token, err := s.auth.VerifyCode(r.Context(), req.PhoneNumber, req.Code)
	if err != nil {
		// A wrong or expired code is a client error, not a missing resource.
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid or expired verification code")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
	})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.favorites.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favorites})
}

func (s *Server) handleGetFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := favoriteID(w, r)
	if !ok {
		return
	}

	favorite, err := s.favorites.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favorite)
}

func (s *Server) handleCreateFavorite(w http.ResponseWriter, r *http.Request) {
	var f storage.Favorite
	if !decodeBody(w, r, &f) {
		return
	}

	created, err := s.favorites.Create(r.Context(), f)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := favoriteID(w, r)
	if !ok {
		return
	}

	var f storage.Favorite
	if !decodeBody(w, r, &f) {
		return
	}

	updated, err := s.favorites.Update(r.Context(), id, f)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := favoriteID(w, r)
	if !ok {
		return
	}

	if err := s.favorites.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func favoriteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be numeric")
		return 0, false
	}
	return id, true
}
