package places

import (
	"math"
	"testing"
)

func TestPopularityScore_NilRatingIsZero(t *testing.T) {
	if got := PopularityScore(nil, 500); got != 0 {
		t.Fatalf("PopularityScore(nil, 500) = %v, want 0", got)
	}
}

func TestPopularityScore_HighRatingHighVolume(t *testing.T) {
	rating := 4.6
	score := PopularityScore(&rating, 1200)

	// §8 scenario 3: rating=4.6, total=1200 must land in [80, 95].
	if score < 80 || score > 95 {
		t.Fatalf("score = %v, want in [80, 95]", score)
	}
}

func TestPopularityScore_MonotoneInRating(t *testing.T) {
	low, high := 3.0, 4.5
	lowScore := PopularityScore(&low, 200)
	highScore := PopularityScore(&high, 200)

	if highScore < lowScore {
		t.Fatalf("score(rating=%.1f)=%v should be >= score(rating=%.1f)=%v", high, highScore, low, lowScore)
	}
}

func TestPopularityScore_MonotoneInVolumeAboveFourFifths(t *testing.T) {
	rating := 4.5 // > 4/5 of 5
	fewRatings := PopularityScore(&rating, 5)
	manyRatings := PopularityScore(&rating, 2000)

	if manyRatings < fewRatings {
		t.Fatalf("score(N=2000)=%v should be >= score(N=5)=%v", manyRatings, fewRatings)
	}
}

func TestPopularityScore_WithinBounds(t *testing.T) {
	rating := 5.0
	score := PopularityScore(&rating, 100000)
	if score < 0 || score > 100 {
		t.Fatalf("score = %v, want within [0, 100]", score)
	}
}

func TestPopularityBand(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{92, "extremely popular"},
		{85, "highly popular"},
		{75, "very popular"},
		{55, "popular"},
		{30, "moderately popular"},
	}
	for _, c := range cases {
		if got := PopularityBand(c.score); got != c.want {
			t.Errorf("PopularityBand(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestPopularityScore_MatchesDocumentedFormula(t *testing.T) {
	rating := 4.6
	total := 1200

	confidence := math.Log(1+float64(total)) / math.Log(501)
	if confidence > 1 {
		confidence = 1
	}
	normalized := rating / 5
	bayes := normalized*confidence + 0.8*(1-confidence)
	want := (0.7*bayes + 0.3*confidence) * 100

	got := PopularityScore(&rating, total)
	if math.Abs(got-want) > 0.001 {
		t.Fatalf("PopularityScore = %v, want %v", got, want)
	}
}
