package protocol

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Key aliases seen across the dataset CSV, the search API and older
// stream payloads. First match wins.
var (
	idKeys           = []string{"project_id", "ProjectComponentID", "project_component_id", "ProjectID", "projectId", "id"}
	descriptionKeys  = []string{"description", "project_description", "ProjectDescription", "projectDescription"}
	contractorKeys   = []string{"contractor", "Contractor"}
	contractCostKeys = []string{"contract_cost", "ContractCost", "contractCost", "cost"}
	abcKeys          = []string{"abc", "ABC", "budget"}
	municipalityKeys = []string{"municipality", "Municipality"}
	provinceKeys     = []string{"province", "Province"}
	regionKeys       = []string{"region", "Region"}
	latKeys          = []string{"lat", "latitude", "Latitude"}
	lonKeys          = []string{"lon", "lng", "longitude", "Longitude"}
	typeOfWorkKeys   = []string{"type_of_work", "TypeofWork", "typeOfWork", "TypeOfWork"}
	infraYearKeys    = []string{"infra_year", "InfraYear", "infraYear"}
	startDateKeys    = []string{"start_date", "StartDate", "startDate"}
	completionKeys   = []string{"completion_date_actual", "CompletionDateActual", "completionDateActual"}
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// NormalizeProject maps a loosely keyed record to the canonical Project.
func NormalizeProject(raw map[string]any) Project {
	p := Project{
		ID:           lookupString(raw, idKeys),
		Description:  lookupString(raw, descriptionKeys),
		Contractor:   lookupString(raw, contractorKeys),
		ContractCost: lookupFloat(raw, contractCostKeys),
		ABC:          lookupFloat(raw, abcKeys),
		Municipality: lookupString(raw, municipalityKeys),
		Province:     lookupString(raw, provinceKeys),
		Region:       lookupString(raw, regionKeys),
		TypeOfWork:   lookupString(raw, typeOfWorkKeys),
		InfraYear:    int(lookupFloat(raw, infraYearKeys)),
	}

	lat, latOK := lookupNumber(raw, latKeys)
	lon, lonOK := lookupNumber(raw, lonKeys)
	if latOK && lonOK {
		c := Coordinate{Lat: lat, Lon: lon}
		if c.Valid() {
			p.Coordinate = &c
		}
	}

	p.StartDate = lookupTime(raw, startDateKeys)
	p.CompletionDateActual = lookupTime(raw, completionKeys)
	return p
}

func lookup(raw map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func lookupString(raw map[string]any, keys []string) string {
	v, ok := lookup(raw, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func lookupNumber(raw map[string]any, keys []string) (float64, bool) {
	v, ok := lookup(raw, keys)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func lookupFloat(raw map[string]any, keys []string) float64 {
	f, _ := lookupNumber(raw, keys)
	return f
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func lookupTime(raw map[string]any, keys []string) *time.Time {
	v, ok := lookup(raw, keys)
	if !ok {
		return nil
	}
	return ParseTime(v)
}

// ParseTime understands the date shapes found in the dataset: ISO
// strings, plain dates and unix epoch milliseconds.
func ParseTime(v any) *time.Time {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	var t time.Time
	switch {
	case f > 1e12:
		t = time.UnixMilli(int64(f)).UTC()
	case f >= 1e9:
		t = time.Unix(int64(f), 0).UTC()
	default:
		return nil
	}
	return &t
}
