package whoop

import (
	"net/url"
	"strconv"
	"time"
)

// Query carries the optional filters accepted by the record endpoints.
// Zero values are omitted from the request.
type Query struct {
	// Start and End bound the records by time, inclusive of Start.
	Start time.Time
	End   time.Time

	// Limit caps the number of records returned. Must be positive to apply.
	Limit int
}

// values encodes the query as endpoint parameters. Timestamps are ISO-8601 in
// UTC with a trailing Z, as the API requires.
func (q Query) values() url.Values {
	v := url.Values{}
	if !q.Start.IsZero() {
		v.Set("start", q.Start.UTC().Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("end", q.End.UTC().Format(time.RFC3339))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}
