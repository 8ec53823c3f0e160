package embedding

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/owlfest/aggregator/internal/domain"
	"github.com/owlfest/aggregator/internal/places"
)

const descriptionMaxChars = 1000

// ComposeText builds the deterministic embedding-input text for an event,
// following §4.7's ordering: name repeated for emphasis, category, artists
// (synonym-repeated as "performers"), tags, location, a venue block with a
// popularity phrase, a time-of-day/season bucket, then a truncated
// description. Fields with nothing to say are omitted entirely rather than
// emitting an empty sentence.
func ComposeText(e domain.Event) string {
	var b strings.Builder

	name := strings.TrimSpace(e.EventName)
	if name != "" {
		fmt.Fprintf(&b, "Event: %s. Title: %s. ", name, name)
	}

	if cat := strings.TrimSpace(e.Category); cat != "" {
		fmt.Fprintf(&b, "Category: %s. ", cat)
	}

	if artists := artistNames(e.Artists); artists != "" {
		fmt.Fprintf(&b, "Artists: %s. Performers: %s. ", artists, artists)
	}

	if tags := tagNames(e.Tags); tags != "" {
		fmt.Fprintf(&b, "Tags: %s. ", tags)
	}

	if loc := strings.TrimSpace(e.Location); loc != "" {
		fmt.Fprintf(&b, "Location: %s. ", loc)
	}

	if e.Venue != nil {
		b.WriteString(venueBlock(*e.Venue))
	}

	if !e.StartDate.IsZero() {
		b.WriteString(timeBlock(e.StartDate))
	}

	if desc := strings.TrimSpace(e.Description); desc != "" {
		if len(desc) > descriptionMaxChars {
			desc = desc[:descriptionMaxChars]
		}
		fmt.Fprintf(&b, "Description: %s. ", desc)
	}

	return cleanText(b.String())
}

func artistNames(artists []domain.Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

func tagNames(tags []domain.Tag) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := strings.TrimSpace(t.Name); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

// venueBlock composes §4.7's item 6: venue types/rating plus a popularity
// phrase, optionally qualified by city.
func venueBlock(v domain.Venue) string {
	var b strings.Builder

	if len(v.Types) > 0 {
		fmt.Fprintf(&b, "Venue Type: %s. ", strings.Join(v.Types, ", "))
	}
	if v.Rating != nil {
		if v.ReviewCount > 0 {
			fmt.Fprintf(&b, "Venue Rating: %.1f stars based on %d reviews. ", *v.Rating, v.ReviewCount)
		} else {
			fmt.Fprintf(&b, "Venue Rating: %.1f stars. ", *v.Rating)
		}
	}

	if v.Popularity != nil {
		score := *v.Popularity
		band := places.PopularityBand(score)
		city := strings.TrimSpace(v.City)

		switch {
		case city != "" && score >= 85:
			fmt.Fprintf(&b, "%s venue. top-rated venue in %s. ", band, city)
		case city != "" && score >= 70:
			fmt.Fprintf(&b, "%s venue. well-known venue in %s. ", band, city)
		case city != "":
			fmt.Fprintf(&b, "%s venue. venue in %s. ", band, city)
		default:
			fmt.Fprintf(&b, "%s venue. ", band)
		}
	}

	return b.String()
}

// timeBlock composes §4.7's item 7: weekend/weekday, a time-of-day bucket,
// and a season derived from the month.
func timeBlock(t time.Time) string {
	weekdayOrWeekend := "weekday"
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekdayOrWeekend = "weekend"
	}

	hour := t.Hour()
	var dayPart string
	switch {
	case hour >= 5 && hour <= 11:
		dayPart = "morning"
	case hour >= 12 && hour <= 16:
		dayPart = "afternoon"
	case hour >= 17 && hour <= 20:
		dayPart = "evening"
	default:
		dayPart = "night"
	}

	var season string
	switch t.Month() {
	case time.December, time.January, time.February:
		season = "winter"
	case time.March, time.April, time.May:
		season = "spring"
	case time.June, time.July, time.August:
		season = "summer"
	default:
		season = "autumn"
	}

	return fmt.Sprintf("%s %s in %s. ", weekdayOrWeekend, dayPart, season)
}

// cleanText collapses whitespace runs and strips everything outside
// letters (including diacritics), digits, spaces, and .,!?'- (§4.7).
func cleanText(s string) string {
	var b strings.Builder
	prevSpace := true
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) ||
			r == '.' || r == ',' || r == '!' || r == '?' || r == '\'' || r == '-':
			b.WriteRune(r)
			prevSpace = false
		default:
			// stripped
		}
	}
	return strings.TrimSpace(b.String())
}
