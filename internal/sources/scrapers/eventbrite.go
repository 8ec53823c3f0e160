package scrapers

import (
	"github.com/owlfest/aggregator/internal/domain"
	"github.com/owlfest/aggregator/internal/sources"
)

// NewEventbriteAdapter builds an adapter for the Eventbrite search API,
// grounded on the teacher's EventbriteClient (eventbriteEvent.name.text,
// start.utc, venue address city/region) reimplemented atop HTTPPagedAdapter.
func NewEventbriteAdapter(token string) sources.Adapter {
	return &eventbriteAdapter{
		HTTPPagedAdapter: sources.NewHTTPPagedAdapter(sources.HTTPPagedConfig{
			Name:        "eventbrite",
			BaseURL:     "https://www.eventbriteapi.com/v3/events/search/",
			PageSize:    50,
			RecordsPath: "events",
			ExtraParams: map[string]string{
				"token":      token,
				"categories": "103",
				"expand":     "venue,category",
			},
		}),
	}
}

type eventbriteAdapter struct {
	*sources.HTTPPagedAdapter
}

func (a *eventbriteAdapter) Map(raw sources.RawRecord) domain.NormalizedDocument {
	var venueName, city, region string
	if venue, ok := raw["venue"].(map[string]any); ok {
		venueName, _ = venue["name"].(string)
		if addr, ok := venue["address"].(map[string]any); ok {
			city, _ = addr["city"].(string)
			region, _ = addr["region"].(string)
		}
	}

	location := city
	if region != "" {
		if location != "" {
			location += ", "
		}
		location += region
	}

	category := ""
	if cat, ok := raw["category"].(map[string]any); ok {
		category, _ = cat["name"].(string)
	}

	return domain.NormalizedDocument{
		EventName:   raw.StrPath("name.text"),
		StartDate:   eventbriteEpoch(raw.StrPath("start.utc")),
		URL:         raw.Str("url"),
		Location:    location,
		Place:       venueName,
		Category:    category,
		Description: raw.StrPath("description.text"),
		Source:      "eventbrite",
	}
}

func eventbriteEpoch(utc string) string {
	return startDateEpoch(utc)
}
