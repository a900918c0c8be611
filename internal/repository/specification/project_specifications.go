package specification

import (
	"floodguard-be/pkg/protocol"

	"gorm.io/gorm"
)

// ByProjectID matches the dataset project id exactly.
type ByProjectID struct {
	ProjectID string
}

func (s ByProjectID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("project_id = ?", s.ProjectID)
}

type InfraYears struct {
	Years []int
}

func (s InfraYears) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("infra_year IN ?", s.Years)
}

type MinContractCost struct {
	Amount float64
}

func (s MinContractCost) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("contract_cost >= ?", s.Amount)
}

type MaxContractCost struct {
	Amount float64
}

func (s MaxContractCost) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("contract_cost <= ?", s.Amount)
}

// WithinBBox keeps rows whose coordinates fall inside the box, edges
// inclusive. Rows without coordinates never match.
type WithinBBox struct {
	BBox protocol.BBox
}

func (s WithinBBox) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("longitude BETWEEN ? AND ? AND latitude BETWEEN ? AND ?",
		s.BBox.MinLon(), s.BBox.MaxLon(), s.BBox.MinLat(), s.BBox.MaxLat())
}

type HasEmbedding struct{}

func (HasEmbedding) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("embedding IS NOT NULL")
}
