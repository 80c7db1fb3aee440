package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// TransformPlace converts one provider Place into a Shop.
//
// Only ID and a two-element Center are required; every other field is
// optional and falls back per the rules below. Callers are expected to
// have validated the precondition, typically by decoding a provider
// response, so violation is a caller bug rather than a user error.
func TransformPlace(place Place) Shop {
	name := place.Text
	if name == "" {
		name = place.PlaceName
	}

	city := firstContextText(place.Context, "place")
	state := firstContextText(place.Context, "region")
	location := fmt.Sprintf("%s, %s", city, state)

	address := place.Properties.Address
	if address == "" {
		address = place.PlaceName
	}

	area := city
	if area == "" {
		area = "the area"
	}

	return Shop{
		ID:          place.ID,
		Name:        name,
		Address:     address,
		City:        city,
		State:       state,
		Description: fmt.Sprintf("Local coffee shop in %s", area),
		Coordinates: Coordinates{
			Longitude: place.Center[0],
			Latitude:  place.Center[1],
		},
		Photos: []string{SelectPhoto(name, location)},
		Contact: Contact{
			Website: "https://maps.google.com/search?q=" + url.QueryEscape(name+" "+location),
		},
	}
}

// firstContextText returns the text of the first context entry whose ID
// starts with the given kind prefix, or "" if none does.
func firstContextText(entries []ContextEntry, kind string) string {
	for _, entry := range entries {
		if strings.HasPrefix(entry.ID, kind) {
			return entry.Text
		}
	}
	return ""
}
