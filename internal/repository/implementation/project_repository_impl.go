package implementation

import (
	"context"
	"errors"

	"floodguard-be/internal/entity"
	"floodguard-be/internal/mapper"
	"floodguard-be/internal/model"
	"floodguard-be/internal/repository/contract"
	"floodguard-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 500

type ProjectRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ProjectMapper
}

func NewProjectRepository(db *gorm.DB) contract.ProjectRepository {
	return &ProjectRepositoryImpl{
		db:     db,
		mapper: mapper.NewProjectMapper(),
	}
}

func (r *ProjectRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ProjectRepositoryImpl) UpsertBulk(ctx context.Context, projects []*entity.Project) error {
	if len(projects) == 0 {
		return nil
	}
	models := make([]*model.Project, len(projects))
	for i, p := range projects {
		models[i] = r.mapper.ToModel(p)
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(models, upsertBatchSize).Error
	if err != nil {
		return err
	}

	for i, m := range models {
		*projects[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *ProjectRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Project, error) {
	var m model.Project
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ProjectRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Project, error) {
	var models []*model.Project
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ProjectRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Project{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

func (r *ProjectRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int, specs ...specification.Specification) ([]*entity.ScoredProject, error) {
	if limit <= 0 {
		limit = 10
	}

	// pgvector's <=> is cosine distance, so similarity is 1 - distance.
	type result struct {
		model.Project
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)
	query := r.db.WithContext(ctx).
		Table("projects").
		Select("projects.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("embedding IS NOT NULL")
	query = r.applySpecifications(query, specs...)

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredProject, len(results))
	for i := range results {
		scored[i] = &entity.ScoredProject{
			Project:    r.mapper.ToEntity(&results[i].Project),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}
