package domain

// NormalizedDocument is the single inter-stage contract between source
// adapters and the event integrator (§6). Every field is a string because
// adapters map heterogeneous portal payloads into this shape before any
// parsing or validation happens — timestamp coercion, id resolution, and
// comma-list splitting all happen downstream in the integrator.
type NormalizedDocument struct {
	EventName   string `json:"event_name"`
	StartDate   string `json:"start_date"` // epoch seconds as decimal digits, or "null"
	EndDate     string `json:"end_date"`
	Thumbnail   string `json:"thumbnail"`
	URL         string `json:"url"` // canonical, used as dedupe key
	Location    string `json:"location"`
	Place       string `json:"place"` // scraped venue name
	Category    string `json:"category"`
	Tags        string `json:"tags"`    // comma-separated
	Artists     string `json:"artists"` // comma-separated
	Description string `json:"description"`
	Source      string `json:"source"` // adapter identifier
}
