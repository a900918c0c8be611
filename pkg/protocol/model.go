package protocol

import (
	"encoding/json"
	"math"
	"time"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point is usable for map placement.
// (0,0) is how the dataset encodes a missing location.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	if c.Lat == 0 && c.Lon == 0 {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// BBox is [[minLon,minLat],[maxLon,maxLat]].
type BBox [2][2]float64

func (b BBox) MinLon() float64 { return b[0][0] }
func (b BBox) MinLat() float64 { return b[0][1] }
func (b BBox) MaxLon() float64 { return b[1][0] }
func (b BBox) MaxLat() float64 { return b[1][1] }

// Contains reports whether c lies inside the box (edges inclusive).
func (b BBox) Contains(c Coordinate) bool {
	return c.Lon >= b.MinLon() && c.Lon <= b.MaxLon() && c.Lat >= b.MinLat() && c.Lat <= b.MaxLat()
}

// Project is the canonical infrastructure record. Every wire or storage
// shape is normalized into this struct at the boundary.
type Project struct {
	ID                   string
	Description          string
	Contractor           string
	ContractCost         float64
	ABC                  float64
	Municipality         string
	Province             string
	Region               string
	Coordinate           *Coordinate
	TypeOfWork           string
	InfraYear            int
	StartDate            *time.Time
	CompletionDateActual *time.Time
}

// Placeable reports whether the project can be put on the map.
func (p Project) Placeable() bool {
	return p.Coordinate != nil && p.Coordinate.Valid()
}

type projectWire struct {
	ID                   string     `json:"project_id"`
	Description          string     `json:"description"`
	Contractor           string     `json:"contractor"`
	ContractCost         float64    `json:"contract_cost"`
	ABC                  float64    `json:"abc"`
	Municipality         string     `json:"municipality"`
	Province             string     `json:"province"`
	Region               string     `json:"region"`
	Lat                  *float64   `json:"lat,omitempty"`
	Lon                  *float64   `json:"lon,omitempty"`
	TypeOfWork           string     `json:"type_of_work"`
	InfraYear            int        `json:"infra_year,omitempty"`
	StartDate            *time.Time `json:"start_date,omitempty"`
	CompletionDateActual *time.Time `json:"completion_date_actual,omitempty"`
}

// MarshalJSON always emits the canonical key names.
func (p Project) MarshalJSON() ([]byte, error) {
	w := projectWire{
		ID:                   p.ID,
		Description:          p.Description,
		Contractor:           p.Contractor,
		ContractCost:         p.ContractCost,
		ABC:                  p.ABC,
		Municipality:         p.Municipality,
		Province:             p.Province,
		Region:               p.Region,
		TypeOfWork:           p.TypeOfWork,
		InfraYear:            p.InfraYear,
		StartDate:            p.StartDate,
		CompletionDateActual: p.CompletionDateActual,
	}
	if p.Placeable() {
		lat, lon := p.Coordinate.Lat, p.Coordinate.Lon
		w.Lat, w.Lon = &lat, &lon
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts any of the historical key spellings.
func (p *Project) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NormalizeProject(raw)
	return nil
}

// Article is a news item. It has no identity beyond its URL.
type Article struct {
	Title          string   `json:"title"`
	Snippet        string   `json:"snippet"`
	Source         string   `json:"source"`
	PublishedDate  string   `json:"published_date"`
	URL            string   `json:"url"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

// Credentials is the opaque per-session bundle sent with every utterance.
type Credentials map[string]string

// Empty reports whether no credential carries a value.
func (c Credentials) Empty() bool {
	for _, v := range c {
		if v != "" {
			return false
		}
	}
	return true
}
