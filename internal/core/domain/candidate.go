package domain

// GeoHit is one geolocated access point returned by the geolocation database.
type GeoHit struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	LastUpdate string  `json:"lastupdt,omitempty"`
}

// RawCandidate is a geolocated hit tagged with the network name it was found for.
type RawCandidate struct {
	Lat        float64
	Lon        float64
	Name       string
	LastUpdate string
}

// ScoredCandidate is a ranked location estimate produced by the scorer.
type ScoredCandidate struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Name       string  `json:"ssid"`
	LastUpdate string  `json:"lastupdt,omitempty"`
	Score      float64 `json:"score"`
}

// CandidateQuery selects what to locate. At least one of Identifier or Name is required.
type CandidateQuery struct {
	Identifier string
	Name       string
	LikelyOnly bool
}

// CandidateResult is the response of a locate call.
type CandidateResult struct {
	Identifier  string            `json:"mac,omitempty"`
	Names       []string          `json:"ssids"`
	Candidates  []ScoredCandidate `json:"candidates"`
	Diagnostics []string          `json:"diagnostics,omitempty"`
}
