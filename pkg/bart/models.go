package bart

// stationsResponse mirrors the stn.aspx?cmd=stns payload
type stationsResponse struct {
	Root struct {
		Stations struct {
			Station []apiStation `json:"station"`
		} `json:"stations"`
	} `json:"root"`
}

type apiStation struct {
	Name      string `json:"name"`
	Abbr      string `json:"abbr"`
	Latitude  string `json:"gtfs_latitude"`
	Longitude string `json:"gtfs_longitude"`
	Address   string `json:"address"`
	City      string `json:"city"`
	County    string `json:"county"`
	State     string `json:"state"`
	Zipcode   string `json:"zipcode"`
}

// departuresResponse mirrors the etd.aspx?cmd=etd payload
type departuresResponse struct {
	Root struct {
		Station []struct {
			Name string   `json:"name"`
			Abbr string   `json:"abbr"`
			ETD  []apiETD `json:"etd"`
		} `json:"station"`
	} `json:"root"`
}

type apiETD struct {
	Destination  string        `json:"destination"`
	Abbreviation string        `json:"abbreviation"`
	Estimate     []apiEstimate `json:"estimate"`
}

type apiEstimate struct {
	Minutes   string `json:"minutes"`
	Platform  string `json:"platform"`
	Direction string `json:"direction"`
	Length    string `json:"length"`
	Color     string `json:"color"`
	HexColor  string `json:"hexcolor"`
	BikeFlag  string `json:"bikeflag"`
	Delay     string `json:"delay"`
}
