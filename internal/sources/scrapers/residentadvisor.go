package scrapers

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/owlfest/aggregator/internal/domain"
	"github.com/owlfest/aggregator/internal/sources"
)

// NewResidentAdvisorAdapter builds an adapter for a Resident-Advisor-style
// listing page: server-rendered HTML, one "eventListingItem" container per
// event, next page reachable via a "Next" link. Grounded directly on the
// teacher's ResidentAdvisorScraper (findEventNodes by CSS class,
// parseEventNode field extraction) but reworked onto the generic HTMLAdapter
// instead of a bespoke two-request (list + detail) scraper.
func NewResidentAdvisorAdapter(baseURL string) sources.Adapter {
	a := &residentAdvisorAdapter{baseURL: baseURL}
	a.HTMLAdapter = sources.NewHTMLAdapter(sources.HTMLAdapterConfig{
		Name:     "resident_advisor",
		StartURL: baseURL + "/events",
		MaxPages: 10,
		Extract:  a.extract,
	})
	return a
}

type residentAdvisorAdapter struct {
	*sources.HTMLAdapter
	baseURL string
}

func (a *residentAdvisorAdapter) extract(doc *html.Node, pageURL string) ([]sources.RawRecord, string) {
	nodes := sources.FindAll(doc, func(n *html.Node) bool {
		return sources.HasClass(n, "eventListingItem") || sources.HasClass(n, "event-item")
	})

	records := make([]sources.RawRecord, 0, len(nodes))
	for _, n := range nodes {
		rec := a.parseEventNode(n)
		if rec.Str("event_name") != "" {
			records = append(records, rec)
		}
	}

	next := ""
	for _, link := range sources.FindAll(doc, func(n *html.Node) bool { return n.Data == "a" }) {
		if strings.EqualFold(strings.TrimSpace(sources.TextContent(link)), "next") {
			next = sources.ResolveURL(pageURL, sources.Attr(link, "href"))
			break
		}
	}

	return records, next
}

func (a *residentAdvisorAdapter) parseEventNode(n *html.Node) sources.RawRecord {
	rec := sources.RawRecord{}

	titles := sources.FindAll(n, func(c *html.Node) bool { return sources.HasClass(c, "event-title") })
	if len(titles) > 0 {
		rec["event_name"] = sources.TextContent(titles[0])
	}

	venues := sources.FindAll(n, func(c *html.Node) bool { return sources.HasClass(c, "event-venue") })
	if len(venues) > 0 {
		rec["place"] = sources.TextContent(venues[0])
	}

	dates := sources.FindAll(n, func(c *html.Node) bool { return sources.HasClass(c, "event-date") })
	if len(dates) > 0 {
		rec["date_text"] = sources.TextContent(dates[0])
	}

	links := sources.FindAll(n, func(c *html.Node) bool { return c.Data == "a" })
	if len(links) > 0 {
		rec["url"] = sources.ResolveURL(a.baseURL, sources.Attr(links[0], "href"))
	}

	artists := sources.FindAll(n, func(c *html.Node) bool { return sources.HasClass(c, "event-artists") })
	if len(artists) > 0 {
		rec["artists"] = sources.TextContent(artists[0])
	}

	return rec
}

func (a *residentAdvisorAdapter) Map(raw sources.RawRecord) domain.NormalizedDocument {
	return domain.NormalizedDocument{
		EventName: raw.Str("event_name"),
		StartDate: "null", // RA's listing page shows a display date, not a parseable timestamp
		URL:       raw.Str("url"),
		Place:     raw.Str("place"),
		Artists:   raw.Str("artists"),
		Category:  "electronic",
		Source:    "resident_advisor",
	}
}
