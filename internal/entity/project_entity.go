package entity

import (
	"time"

	"github.com/google/uuid"
)

// Project is a stored dataset row. Attributes keeps the source columns that
// have no dedicated field (ContractID aside), keyed by their CSV header.
type Project struct {
	Id                   uuid.UUID
	ObjectId             int
	ProjectId            string
	ContractId           string
	Description          string
	Contractor           string
	ContractCost         float64
	ABC                  float64
	Region               string
	Province             string
	Municipality         string
	Latitude             *float64
	Longitude            *float64
	TypeOfWork           string
	InfraYear            int
	StartDate            *time.Time
	CompletionDateActual *time.Time
	Attributes           map[string]string
	Document             string
	Embedding            []float32
	CreatedAt            time.Time
	UpdatedAt            *time.Time
}

// ScoredProject pairs a project with its cosine similarity to a query.
type ScoredProject struct {
	Project    *Project
	Similarity float64
}
