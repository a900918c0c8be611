// Package retrieval holds the request/response shapes of the non-streaming
// search and news APIs, and an HTTP client for them.
package retrieval

import "floodguard-be/pkg/protocol"

const (
	DefaultLimit    = 100
	MaxLimit        = 1000
	DefaultRadiusKm = 5.0

	SpatialRadius = "radius"
	SpatialBBox   = "bbox"

	SortContractCost = "contract_cost"
	SortABC          = "abc"
	SortInfraYear    = "infra_year"
	SortStartDate    = "start_date"
)

type SearchFilters struct {
	InfraYear       []int    `json:"infra_year,omitempty" validate:"omitempty,dive,gte=1900,lte=2100"`
	Contractor      string   `json:"contractor,omitempty" validate:"omitempty,max=200"`
	MinContractCost *float64 `json:"min_contract_cost,omitempty" validate:"omitempty,gte=0"`
	MaxContractCost *float64 `json:"max_contract_cost,omitempty" validate:"omitempty,gte=0"`
	Region          string   `json:"region,omitempty" validate:"omitempty,max=200"`
	Province        string   `json:"province,omitempty" validate:"omitempty,max=200"`
	Municipality    string   `json:"municipality,omitempty" validate:"omitempty,max=200"`
	TypeOfWork      string   `json:"type_of_work,omitempty" validate:"omitempty,max=200"`
	ProjectID       string   `json:"project_id,omitempty" validate:"omitempty,max=100"`
}

// SpatialSearch is either a radius around a point or a bounding box.
type SpatialSearch struct {
	Type     string         `json:"type" validate:"required,oneof=radius bbox"`
	Lat      *float64       `json:"lat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Lon      *float64       `json:"lon,omitempty" validate:"omitempty,gte=-180,lte=180"`
	RadiusKm float64        `json:"radius_km,omitempty" validate:"omitempty,gt=0,lte=1000"`
	BBox     *protocol.BBox `json:"bbox,omitempty" validate:"required_if=Type bbox"`
}

type Sort struct {
	Field string `json:"field,omitempty" validate:"omitempty,oneof=contract_cost abc infra_year start_date ContractCost ABC InfraYear StartDate"`
	Order string `json:"order,omitempty" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// SearchRequest is the body of POST /api/search. Query, when set, ranks
// matches by semantic similarity instead of Sort.
type SearchRequest struct {
	Query   string         `json:"query,omitempty" validate:"omitempty,max=500"`
	Filters *SearchFilters `json:"filters,omitempty"`
	Spatial *SpatialSearch `json:"spatial,omitempty"`
	Limit   int            `json:"limit,omitempty" validate:"omitempty,gte=1,lte=1000"`
	Sort    *Sort          `json:"sort,omitempty"`
}

type Stats struct {
	TotalBudget   float64        `json:"total_budget"`
	TotalProjects int            `json:"total_projects"`
	AvgAward      float64        `json:"avg_award"`
	Contractors   []string       `json:"contractors"`
	ProjectTypes  map[string]int `json:"project_types"`
}

type SearchResult struct {
	Projects []protocol.Project `json:"projects"`
	Total    int                `json:"total"`
	Stats    Stats              `json:"stats"`
}

type NewsResult struct {
	Articles []protocol.Article `json:"articles"`
	Count    int                `json:"count"`
}
