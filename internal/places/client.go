package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
)

// ClientConfig configures Client, grounded on the teacher's typed external
// API client config structs (SpotifyConfig, LastFMConfig): a base URL and
// an API key, authenticated as a query parameter (§6).
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client is a thin HTTP client over the places provider's text-search and
// details endpoints (§6), shaped after the teacher's SpotifyClient /
// LastFMClient (typed config, http.Client, JSON response structs,
// status-based error classification).
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// NewClient constructs a Client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// searchResponse is the text-search response shape (§6): status plus a
// results array.
type searchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID string `json:"place_id"`
		Name    string `json:"name"`
	} `json:"results"`
}

// TextSearch looks up placeName near locationHint, returning the first
// result's place id. ("", false, nil) means ZERO_RESULTS — a legitimate
// outcome, not an error.
func (c *Client) TextSearch(ctx context.Context, placeName, locationHint string) (placeID string, ok bool, err error) {
	query := placeName
	if locationHint != "" {
		query = placeName + " " + locationHint
	}

	u, _ := url.Parse(c.cfg.BaseURL + "/textsearch/json")
	q := u.Query()
	q.Set("query", query)
	q.Set("key", c.cfg.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", false, fmt.Errorf("places: build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, classifyNetErr(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", false, err
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("places: decode search response: %w", err)
	}

	switch body.Status {
	case "OK":
		if len(body.Results) == 0 {
			return "", false, nil
		}
		return body.Results[0].PlaceID, true, nil
	case "ZERO_RESULTS":
		return "", false, nil
	default:
		return "", false, domain.Classify(domain.KindPermanent, fmt.Errorf("places: search status %q", body.Status))
	}
}

// detailsResponse is the details-lookup response shape (§6).
type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Name               string  `json:"name"`
		FormattedAddress   string  `json:"formatted_address"`
		Geometry           struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
		Phone            string   `json:"formatted_phone_number"`
		Website          string   `json:"website"`
		Rating           float64  `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
		PriceLevel       int      `json:"price_level"`
		Types            []string `json:"types"`
		Photos           []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"result"`
}

// Details holds the attributes returned by a places Details lookup (§4.5,
// §6).
type Details struct {
	CanonicalName string
	Address       string
	Latitude      float64
	Longitude     float64
	City          string
	Country       string
	Street        string
	Neighborhood  string
	PostalCode    string
	Website       string
	Phone         string
	Rating        *float64
	TotalRatings  int
	PriceLevel    *int
	Types         []string
	PhotoRef      string
	ReviewCount   int
}

// Details looks up full attributes for placeID (§6: name, formatted_address,
// geometry, address components, phone, website, rating, user_ratings_total,
// price_level, types, photos, reviews, opening hours — the fields this
// system persists are modeled here).
func (c *Client) Details(ctx context.Context, placeID string) (Details, error) {
	u, _ := url.Parse(c.cfg.BaseURL + "/details/json")
	q := u.Query()
	q.Set("place_id", placeID)
	q.Set("key", c.cfg.APIKey)
	q.Set("fields", "name,formatted_address,geometry,address_component,formatted_phone_number,website,rating,user_ratings_total,price_level,type,photo,review")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Details{}, fmt.Errorf("places: build details request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Details{}, classifyNetErr(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return Details{}, err
	}

	var body detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Details{}, fmt.Errorf("places: decode details response: %w", err)
	}
	if body.Status != "OK" {
		return Details{}, domain.Classify(domain.KindPermanent, fmt.Errorf("places: details status %q", body.Status))
	}

	r := body.Result
	d := Details{
		CanonicalName: r.Name,
		Address:       r.FormattedAddress,
		Latitude:      r.Geometry.Location.Lat,
		Longitude:     r.Geometry.Location.Lng,
		Website:       r.Website,
		Phone:         r.Phone,
		TotalRatings:  r.UserRatingsTotal,
		Types:         r.Types,
		ReviewCount:   r.UserRatingsTotal,
	}
	if r.Rating > 0 {
		rating := r.Rating
		d.Rating = &rating
	}
	if r.PriceLevel > 0 {
		level := r.PriceLevel
		d.PriceLevel = &level
	}
	if len(r.Photos) > 0 {
		d.PhotoRef = r.Photos[0].PhotoReference
	}
	for _, comp := range r.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "locality":
				d.City = comp.LongName
			case "country":
				d.Country = comp.LongName
			case "route":
				d.Street = comp.LongName
			case "neighborhood":
				d.Neighborhood = comp.LongName
			case "postal_code":
				d.PostalCode = comp.LongName
			}
		}
	}

	return d, nil
}

func classifyNetErr(err error) error {
	return domain.Classify(domain.KindTransient, err)
}

func classifyStatus(status int) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.Classify(domain.KindTransient, fmt.Errorf("places: status %d", status))
	}
	if status >= 400 {
		return domain.Classify(domain.KindPermanent, fmt.Errorf("places: status %d", status))
	}
	return nil
}
