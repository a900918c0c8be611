package contract

import (
	"context"

	"floodguard-be/internal/entity"
	"floodguard-be/internal/repository/specification"
)

type ProjectRepository interface {
	// UpsertBulk inserts rows, replacing any existing row with the same
	// dataset project id.
	UpsertBulk(ctx context.Context, projects []*entity.Project) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Project, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Project, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilar ranks rows matching specs by cosine similarity to the
	// query embedding, best first.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, specs ...specification.Specification) ([]*entity.ScoredProject, error)
}
