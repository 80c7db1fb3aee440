// Package search implements the franchise-filtering nearby-search
// pipeline and the location lookups built on the places provider.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starbrewcrew/brewfinder/internal/domain"
	"github.com/starbrewcrew/brewfinder/internal/observability"
)

// PlacesAPI is the slice of the geocoding provider the service needs.
type PlacesAPI interface {
	ForwardGeocode(ctx context.Context, query string) ([]domain.Place, error)
	Geocode(ctx context.Context, address string) ([]domain.Place, error)
	NearbyCoffeePOI(ctx context.Context, longitude, latitude float64, radius int) ([]domain.Place, error)
	Retrieve(ctx context.Context, id string) ([]domain.Place, error)
}

// LocationResult is one hit of a free-text location search, carrying
// the location's own geometry plus the local shops found around it.
type LocationResult struct {
	Center    []float64            `json:"center"`
	PlaceName string               `json:"place_name"`
	Context   []domain.ContextEntry `json:"context"`
	Shops     []domain.Shop        `json:"shops"`
}

// Service runs searches against the places provider, filters chains out
// via the franchise matcher, and normalizes survivors into Shops.
type Service struct {
	places  PlacesAPI
	matcher *domain.FranchiseMatcher
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService wires the search pipeline.
func NewService(places PlacesAPI, matcher *domain.FranchiseMatcher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		places:  places,
		matcher: matcher,
		metrics: metrics,
		logger:  logger,
	}
}

// SearchNearby returns the non-franchise coffee shops around a
// coordinate, in provider order, plus whether the result is degraded.
// An upstream failure degrades to an empty result: the listing surface
// never fails a request because one provider call was transiently down.
func (s *Service) SearchNearby(ctx context.Context, longitude, latitude float64, radius int) ([]domain.Shop, bool) {
	places, err := s.places.NearbyCoffeePOI(ctx, longitude, latitude, radius)
	if err != nil {
		s.logger.Warn("nearby search degraded to empty result",
			"longitude", longitude,
			"latitude", latitude,
			"error", err,
		)
		s.metrics.SearchRequests.WithLabelValues("degraded").Inc()
		return []domain.Shop{}, true
	}

	shops := make([]domain.Shop, 0, len(places))
	for _, place := range places {
		// The provider can emit features without geometry; they carry
		// nothing a client can plot, so skip them rather than fail.
		if len(place.Center) != 2 {
			s.logger.Warn("skipping place without coordinates", "id", place.ID, "name", place.Text)
			continue
		}
		if s.matcher.MatchesAny(place.NameVariants()) {
			s.metrics.FranchisesFiltered.Inc()
			continue
		}
		shops = append(shops, domain.TransformPlace(place))
	}

	s.metrics.SearchRequests.WithLabelValues("success").Inc()
	s.metrics.ShopsReturned.Observe(float64(len(shops)))
	return shops, false
}

// SearchLocation forward-geocodes a free-text query and attaches the
// nearby shops at the best hit's center, reporting whether any upstream
// call degraded. Missing hits and upstream failures both yield an
// empty slice.
func (s *Service) SearchLocation(ctx context.Context, query string) ([]LocationResult, bool) {
	places, err := s.places.ForwardGeocode(ctx, query)
	if err != nil {
		s.logger.Warn("location search degraded to empty result", "query", query, "error", err)
		return []LocationResult{}, true
	}
	if len(places) == 0 {
		return []LocationResult{}, false
	}

	hit := places[0]
	result := LocationResult{
		Center:    hit.Center,
		PlaceName: hit.PlaceName,
		Context:   hit.Context,
		Shops:     []domain.Shop{},
	}
	degraded := false
	if len(hit.Center) == 2 {
		result.Shops, degraded = s.SearchNearby(ctx, hit.Center[0], hit.Center[1], 0)
	}
	if result.Context == nil {
		result.Context = []domain.ContextEntry{}
	}
	return []LocationResult{result}, degraded
}

// GetShop retrieves one place by provider ID and normalizes it.
func (s *Service) GetShop(ctx context.Context, id string) (domain.Shop, error) {
	places, err := s.places.Retrieve(ctx, id)
	if err != nil {
		return domain.Shop{}, fmt.Errorf("retrieve place %q: %w", id, err)
	}
	if len(places) == 0 || len(places[0].Center) != 2 {
		return domain.Shop{}, fmt.Errorf("place %q: %w", id, domain.ErrNotFound)
	}
	return domain.TransformPlace(places[0]), nil
}

// Coordinates resolves an address to its [lon, lat] center.
func (s *Service) Coordinates(ctx context.Context, address string) ([]float64, error) {
	places, err := s.places.Geocode(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(places) == 0 || len(places[0].Center) != 2 {
		return nil, fmt.Errorf("address %q: %w", address, domain.ErrNotFound)
	}
	return places[0].Center, nil
}
