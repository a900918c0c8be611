package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// EmbeddingDimensions matches nomic-embed-text.
const EmbeddingDimensions = 768

type Project struct {
	Id                   uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ObjectId             int              `gorm:"index"`
	ProjectId            string           `gorm:"type:varchar(100);not null;uniqueIndex"`
	ContractId           string           `gorm:"type:varchar(100)"`
	Description          string           `gorm:"type:text"`
	Contractor           string           `gorm:"type:varchar(255);index"`
	ContractCost         float64          `gorm:"type:numeric(18,2);default:0;index"`
	ABC                  float64          `gorm:"column:abc;type:numeric(18,2);default:0"`
	Region               string           `gorm:"type:varchar(100);index"`
	Province             string           `gorm:"type:varchar(100);index"`
	Municipality         string           `gorm:"type:varchar(150);index"`
	Latitude             *float64         `gorm:"type:double precision"`
	Longitude            *float64         `gorm:"type:double precision"`
	TypeOfWork           string           `gorm:"type:varchar(255)"`
	InfraYear            int              `gorm:"index"`
	StartDate            *time.Time       `gorm:"type:timestamptz"`
	CompletionDateActual *time.Time       `gorm:"type:timestamptz"`
	Attributes           datatypes.JSON   `gorm:"type:jsonb"`
	Document             string           `gorm:"type:text"`
	Embedding            *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt            time.Time        `gorm:"autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime"`
}

func (Project) TableName() string {
	return "projects"
}
