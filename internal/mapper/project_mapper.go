package mapper

import (
	"encoding/json"
	"time"

	"floodguard-be/internal/entity"
	"floodguard-be/internal/model"
	"floodguard-be/pkg/protocol"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ProjectMapper struct{}

func NewProjectMapper() *ProjectMapper {
	return &ProjectMapper{}
}

func (m *ProjectMapper) ToEntity(p *model.Project) *entity.Project {
	if p == nil {
		return nil
	}

	var updatedAt *time.Time
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		updatedAt = &t
	}

	var attrs map[string]string
	if len(p.Attributes) > 0 {
		// Malformed attribute JSON only loses the extras.
		_ = json.Unmarshal(p.Attributes, &attrs)
	}

	var embedding []float32
	if p.Embedding != nil {
		embedding = p.Embedding.Slice()
	}

	return &entity.Project{
		Id:                   p.Id,
		ObjectId:             p.ObjectId,
		ProjectId:            p.ProjectId,
		ContractId:           p.ContractId,
		Description:          p.Description,
		Contractor:           p.Contractor,
		ContractCost:         p.ContractCost,
		ABC:                  p.ABC,
		Region:               p.Region,
		Province:             p.Province,
		Municipality:         p.Municipality,
		Latitude:             p.Latitude,
		Longitude:            p.Longitude,
		TypeOfWork:           p.TypeOfWork,
		InfraYear:            p.InfraYear,
		StartDate:            p.StartDate,
		CompletionDateActual: p.CompletionDateActual,
		Attributes:           attrs,
		Document:             p.Document,
		Embedding:            embedding,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            updatedAt,
	}
}

func (m *ProjectMapper) ToModel(e *entity.Project) *model.Project {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	var attrs datatypes.JSON
	if len(e.Attributes) > 0 {
		if raw, err := json.Marshal(e.Attributes); err == nil {
			attrs = datatypes.JSON(raw)
		}
	}

	var embedding *pgvector.Vector
	if len(e.Embedding) > 0 {
		v := pgvector.NewVector(e.Embedding)
		embedding = &v
	}

	return &model.Project{
		Id:                   e.Id,
		ObjectId:             e.ObjectId,
		ProjectId:            e.ProjectId,
		ContractId:           e.ContractId,
		Description:          e.Description,
		Contractor:           e.Contractor,
		ContractCost:         e.ContractCost,
		ABC:                  e.ABC,
		Region:               e.Region,
		Province:             e.Province,
		Municipality:         e.Municipality,
		Latitude:             e.Latitude,
		Longitude:            e.Longitude,
		TypeOfWork:           e.TypeOfWork,
		InfraYear:            e.InfraYear,
		StartDate:            e.StartDate,
		CompletionDateActual: e.CompletionDateActual,
		Attributes:           attrs,
		Document:             e.Document,
		Embedding:            embedding,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            updatedAt,
	}
}

func (m *ProjectMapper) ToEntities(projects []*model.Project) []*entity.Project {
	entities := make([]*entity.Project, len(projects))
	for i, p := range projects {
		entities[i] = m.ToEntity(p)
	}
	return entities
}

// ToProtocol converts a stored row into the wire Project. Missing or (0,0)
// coordinates leave Coordinate nil.
func (m *ProjectMapper) ToProtocol(e *entity.Project) protocol.Project {
	p := protocol.Project{
		ID:                   e.ProjectId,
		Description:          e.Description,
		Contractor:           e.Contractor,
		ContractCost:         e.ContractCost,
		ABC:                  e.ABC,
		Municipality:         e.Municipality,
		Province:             e.Province,
		Region:               e.Region,
		TypeOfWork:           e.TypeOfWork,
		InfraYear:            e.InfraYear,
		StartDate:            e.StartDate,
		CompletionDateActual: e.CompletionDateActual,
	}
	if e.Latitude != nil && e.Longitude != nil {
		c := protocol.Coordinate{Lat: *e.Latitude, Lon: *e.Longitude}
		if c.Valid() {
			p.Coordinate = &c
		}
	}
	return p
}

func (m *ProjectMapper) ToProtocols(entities []*entity.Project) []protocol.Project {
	out := make([]protocol.Project, len(entities))
	for i, e := range entities {
		out[i] = m.ToProtocol(e)
	}
	return out
}
