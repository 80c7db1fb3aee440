package domain

// ContextEntry is one tag in a place's containing-region hierarchy.
// IDs are namespaced by kind, e.g. "place.12345" or "region.678".
type ContextEntry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PlaceProperties carries the free-form per-feature attributes the
// provider returns. Only the fields we read are modeled.
type PlaceProperties struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// Place is a raw geocoding provider feature. It is ephemeral: decoded
// from the provider response, transformed, and discarded.
type Place struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	PlaceName  string          `json:"place_name"`
	Center     []float64       `json:"center"` // [lon, lat]
	Context    []ContextEntry  `json:"context,omitempty"`
	Properties PlaceProperties `json:"properties,omitempty"`
}

// NameVariants returns every name-like string the provider supplied for
// the place: primary text, full display name, the properties name, and
// each context tag. Franchise matching must see all of them so a chain
// brand hidden in a secondary field is still caught.
func (p Place) NameVariants() []string {
	variants := make([]string, 0, 3+len(p.Context))
	for _, v := range []string{p.Text, p.PlaceName, p.Properties.Name} {
		if v != "" {
			variants = append(variants, v)
		}
	}
	for _, ctx := range p.Context {
		if ctx.Text != "" {
			variants = append(variants, ctx.Text)
		}
	}
	return variants
}

// Coordinates is a WGS-84 point. Longitude always comes first in the
// provider's center pair and maps here without axis swap.
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Contact holds a shop's outbound links.
type Contact struct {
	Website string `json:"website"`
}

// Shop is the normalized coffee-shop record derived from one Place.
// Constructed per request, immutable after creation, never persisted.
type Shop struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	Description string      `json:"description"`
	Coordinates Coordinates `json:"coordinates"`
	Photos      []string    `json:"photos"`
	Contact     Contact     `json:"contact"`
}
