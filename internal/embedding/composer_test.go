package embedding

import (
	"strings"
	"testing"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
)

func TestComposeText_PopularityBandScenario(t *testing.T) {
	score := 92.0
	event := domain.Event{
		EventName: "Warehouse Night",
		StartDate: time.Date(2026, time.July, 4, 22, 0, 0, 0, time.UTC), // Saturday night, summer
		Venue: &domain.Venue{
			City:       "Warszawa",
			Popularity: &score,
		},
	}

	text := ComposeText(event)

	if !strings.Contains(text, "extremely popular venue") {
		t.Fatalf("text %q should contain %q", text, "extremely popular venue")
	}
	if !strings.Contains(text, "top-rated venue in Warszawa") {
		t.Fatalf("text %q should contain %q", text, "top-rated venue in Warszawa")
	}
}

func TestComposeText_OmitsMissingFields(t *testing.T) {
	event := domain.Event{EventName: "Bare Event"}
	text := ComposeText(event)

	if !strings.Contains(text, "Event Bare Event") {
		t.Fatalf("text %q should contain the event name", text)
	}
	if strings.Contains(text, "Category") {
		t.Fatal("text should omit a Category sentence when category is empty")
	}
	if strings.Contains(text, "Venue") {
		t.Fatal("text should omit venue block when Venue is nil")
	}
}

func TestComposeText_RepeatsNameAndArtists(t *testing.T) {
	event := domain.Event{
		EventName: "Echo Festival",
		Artists:   []domain.Artist{{Name: "DJ One"}, {Name: "DJ Two"}},
	}
	text := ComposeText(event)

	if strings.Count(text, "Echo Festival") != 2 {
		t.Fatalf("expected event name repeated twice (Event/Title), got: %q", text)
	}
	if !strings.Contains(text, "Artists DJ One, DJ Two") || !strings.Contains(text, "Performers DJ One, DJ Two") {
		t.Fatalf("expected artist list repeated as performers, got: %q", text)
	}
}

func TestComposeText_DescriptionTruncatedTo1000Chars(t *testing.T) {
	longDesc := strings.Repeat("a", 1500)
	event := domain.Event{EventName: "X", Description: longDesc}
	text := ComposeText(event)

	idx := strings.Index(text, "Description ")
	if idx == -1 {
		t.Fatal("expected a Description sentence")
	}
	body := text[idx+len("Description "):]
	body = strings.TrimSuffix(strings.TrimSpace(body), ".")
	if len(body) != descriptionMaxChars {
		t.Fatalf("description body length = %d, want %d", len(body), descriptionMaxChars)
	}
}

func TestComposeText_StripsDisallowedCharactersAndCollapsesWhitespace(t *testing.T) {
	event := domain.Event{EventName: "Café   Night #1 @ Warsaw!!"}
	text := ComposeText(event)

	if strings.Contains(text, "  ") {
		t.Fatalf("text should have no double spaces: %q", text)
	}
	if strings.ContainsAny(text, "#@") {
		t.Fatalf("text should strip disallowed punctuation: %q", text)
	}
	if !strings.Contains(text, "Café") {
		t.Fatalf("text should preserve diacritics: %q", text)
	}
}

func TestComposeText_TimeBlockBucketsCorrectly(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want []string
	}{
		{"weekday morning winter", time.Date(2026, time.January, 7, 9, 0, 0, 0, time.UTC), []string{"weekday", "morning", "winter"}},
		{"weekend night summer", time.Date(2026, time.July, 4, 23, 0, 0, 0, time.UTC), []string{"weekend", "night", "summer"}},
		{"weekday evening autumn", time.Date(2026, time.October, 8, 18, 0, 0, 0, time.UTC), []string{"weekday", "evening", "autumn"}},
	}

	for _, c := range cases {
		text := ComposeText(domain.Event{EventName: "X", StartDate: c.t})
		for _, want := range c.want {
			if !strings.Contains(text, want) {
				t.Errorf("%s: text %q should contain %q", c.name, text, want)
			}
		}
	}
}
