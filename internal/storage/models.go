// Package storage keeps a local log of navigation attempts.
package storage

import "time"

// Visit is one navigation attempt, successful or not.
type Visit struct {
	ID            int64  `json:"id"`
	URL           string `json:"url"`
	NormalizedURL string `json:"normalized_url"`
	FinalURL      string `json:"final_url,omitempty"`
	StatusCode    int    `json:"status_code"`
	ContentType   string `json:"content_type,omitempty"`
	Charset       string `json:"charset,omitempty"`
	Title         string `json:"title,omitempty"`

	// Set when the fetch failed at the transport level
	ErrorMessage string `json:"error_message,omitempty"`

	// The page was handed to the system browser instead of shown in-app
	OpenedExternal bool `json:"opened_external"`

	ResponseTime time.Duration `json:"response_time"`
	VisitedAt    time.Time     `json:"visited_at"`
}

// Failed reports whether the attempt ended without a response.
func (v *Visit) Failed() bool {
	return v.ErrorMessage != ""
}

// Stats summarises the visit log.
type Stats struct {
	TotalVisits    int `json:"total_visits"`
	DistinctURLs   int `json:"distinct_urls"`
	OpenedExternal int `json:"opened_external"`
	Failed         int `json:"failed"`
	ErrorStatuses  int `json:"error_statuses"` // 4xx and 5xx
}
