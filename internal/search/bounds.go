package search

import "github.com/starbrewcrew/brewfinder/internal/domain"

// DefaultBoundsPadding is the padding percentage applied to a bounding
// box when the caller does not supply one.
const DefaultBoundsPadding = 50

// BoundingBox folds a coordinate list into [[minLng,minLat],[maxLng,maxLat]]
// and widens each axis by padding percent of its span.
func BoundingBox(coordinates [][]float64, padding float64) ([][]float64, error) {
	if len(coordinates) == 0 {
		return nil, domain.Validationf("coordinates array must not be empty")
	}
	for _, pair := range coordinates {
		if len(pair) != 2 {
			return nil, domain.Validationf("each coordinate must be a [longitude, latitude] pair")
		}
	}

	minLng, minLat := coordinates[0][0], coordinates[0][1]
	maxLng, maxLat := minLng, minLat
	for _, pair := range coordinates[1:] {
		if pair[0] < minLng {
			minLng = pair[0]
		}
		if pair[0] > maxLng {
			maxLng = pair[0]
		}
		if pair[1] < minLat {
			minLat = pair[1]
		}
		if pair[1] > maxLat {
			maxLat = pair[1]
		}
	}

	padLng := (maxLng - minLng) * (padding / 100)
	padLat := (maxLat - minLat) * (padding / 100)

	return [][]float64{
		{minLng - padLng, minLat - padLat},
		{maxLng + padLng, maxLat + padLat},
	}, nil
}
