package sources

import (
	"fmt"
	"net/http"

	"github.com/owlfest/aggregator/internal/domain"
)

// classifyNetErr wraps a transport-level error (dial failure, timeout) as
// transient — worth retrying.
func classifyNetErr(err error) error {
	return domain.Classify(domain.KindTransient, err)
}

// classifyHTTPStatus maps an HTTP response status to an ErrorKind. 429 and
// 5xx are transient (retry, count against the circuit breaker); other 4xx
// are permanent (the request itself is malformed or unauthorized and
// retrying won't help).
func classifyHTTPStatus(status int) error {
	err := fmt.Errorf("unexpected status %d", status)
	if status == http.StatusTooManyRequests || status >= 500 {
		return domain.Classify(domain.KindTransient, err)
	}
	return domain.Classify(domain.KindPermanent, err)
}
