package specification

import (
	"fmt"

	"gorm.io/gorm"
)

// Specification narrows a project query. Specs compose in the order given.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// OrderBy applies ordering. Field must come from a whitelist; it is
// interpolated into SQL.
type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s NULLS LAST", s.Field, direction))
}

type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.Limit).Offset(s.Offset)
}

// FilterBy Generic equality filter
type FilterBy struct {
	Field string
	Value interface{}
}

func (s FilterBy) Apply(db *gorm.DB) *gorm.DB {
	query := fmt.Sprintf("%s = ?", s.Field)
	return db.Where(query, s.Value)
}

func Filter(field string, value interface{}) Specification {
	return FilterBy{Field: field, Value: value}
}

// Contains is a case-insensitive substring match.
type Contains struct {
	Field string
	Value string
}

func (s Contains) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s ILIKE ?", s.Field), "%"+s.Value+"%")
}
