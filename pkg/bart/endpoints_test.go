package bart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStationsURL(t *testing.T) {
	got := StationsURL("https://api.bart.gov/api/", "K")
	assert.Equal(t, "https://api.bart.gov/api/stn.aspx?cmd=stns&json=y&key=K", got)
}

func TestDeparturesURL(t *testing.T) {
	got := DeparturesURL("https://api.bart.gov/api", "K", "12TH")
	assert.Equal(t, "https://api.bart.gov/api/etd.aspx?cmd=etd&json=y&key=K&orig=12TH", got)
}

func TestRedactKey(t *testing.T) {
	assert.Equal(t,
		"https://api.bart.gov/api/etd.aspx?cmd=etd&key=REDACTED&orig=EMBR",
		redactKey("https://api.bart.gov/api/etd.aspx?cmd=etd&key=SECRET&orig=EMBR"))
	assert.Equal(t, "http://x/y", redactKey("http://x/y"))
}
