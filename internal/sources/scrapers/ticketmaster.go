// Package scrapers holds the concrete portal adapters built on top of the
// generic paging primitives in internal/sources.
package scrapers

import (
	"strconv"
	"strings"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
	"github.com/owlfest/aggregator/internal/sources"
)

// NewTicketmasterAdapter builds an adapter for the Ticketmaster Discovery
// API, grounded on the field shapes in the teacher's TicketmasterClient
// (ticketmasterEvent._embedded.venues, dates.start.dateTime, classifications)
// but reimplemented atop the generic HTTPPagedAdapter instead of a bespoke
// one-shot client.
func NewTicketmasterAdapter(apiKey string) sources.Adapter {
	return &ticketmasterAdapter{
		HTTPPagedAdapter: sources.NewHTTPPagedAdapter(sources.HTTPPagedConfig{
			Name:        "ticketmaster",
			BaseURL:     "https://app.ticketmaster.com/discovery/v2/events.json",
			PageSize:    50,
			RecordsPath: "_embedded.events",
			ExtraParams: map[string]string{
				"apikey":             apiKey,
				"classificationName": "music",
			},
		}),
	}
}

type ticketmasterAdapter struct {
	*sources.HTTPPagedAdapter
}

func (a *ticketmasterAdapter) Map(raw sources.RawRecord) domain.NormalizedDocument {
	venues := raw.SliceOfMaps("_embedded.venues")
	attractions := raw.SliceOfMaps("_embedded.attractions")

	var venueName, city, country string
	if len(venues) > 0 {
		venueName, _ = venues[0]["name"].(string)
		if addr, ok := venues[0]["city"].(map[string]any); ok {
			city, _ = addr["name"].(string)
		}
		if c, ok := venues[0]["country"].(map[string]any); ok {
			country, _ = c["name"].(string)
		}
	}

	location := city
	if country != "" {
		if location != "" {
			location += ", "
		}
		location += country
	}

	thumbnail := ""
	if images := raw.SliceOfMaps("images"); len(images) > 0 {
		thumbnail, _ = images[0]["url"].(string)
	}

	classifications := raw.SliceOfMaps("classifications")
	category, tags := classificationNames(classifications)

	return domain.NormalizedDocument{
		EventName:   raw.Str("name"),
		StartDate:   startDateEpoch(raw.StrPath("dates.start.dateTime")),
		Thumbnail:   thumbnail,
		URL:         raw.Str("url"),
		Location:    location,
		Place:       venueName,
		Category:    category,
		Tags:        tags,
		Artists:     sources.JoinNames(attractions, "name"),
		Description: raw.Str("info"),
		Source:      "ticketmaster",
	}
}

// classificationNames pulls the primary genre as the event category and
// every classification's genre as a tag list.
func classificationNames(classifications []map[string]any) (category, tags string) {
	var genres []string
	for _, c := range classifications {
		genre, ok := c["genre"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := genre["name"].(string)
		if name == "" {
			continue
		}
		if category == "" {
			category = name
		}
		genres = append(genres, name)
	}
	return category, strings.Join(genres, ", ")
}

// startDateEpoch parses an ISO8601 Ticketmaster dateTime into the
// NormalizedDocument's epoch-seconds-as-string contract.
func startDateEpoch(iso string) string {
	if iso == "" {
		return "null"
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "null"
	}
	return strconv.FormatInt(t.Unix(), 10)
}
