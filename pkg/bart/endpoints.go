package bart

import (
	"net/url"
	"strings"
)

const (
	// StationsEndpoint lists every station
	StationsEndpoint = "/stn.aspx"

	// DeparturesEndpoint returns real-time estimates for one origin station
	DeparturesEndpoint = "/etd.aspx"
)

// StationsURL constructs the URL for the station list
func StationsURL(baseURL, apiKey string) string {
	params := url.Values{}
	params.Set("cmd", "stns")
	params.Set("key", apiKey)
	params.Set("json", "y")

	return strings.TrimRight(baseURL, "/") + StationsEndpoint + "?" + params.Encode()
}

// DeparturesURL constructs the URL for a station's departure estimates
func DeparturesURL(baseURL, apiKey, stationID string) string {
	params := url.Values{}
	params.Set("cmd", "etd")
	params.Set("orig", stationID)
	params.Set("key", apiKey)
	params.Set("json", "y")

	return strings.TrimRight(baseURL, "/") + DeparturesEndpoint + "?" + params.Encode()
}

// redactKey hides the API key in URLs written to logs
func redactKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
