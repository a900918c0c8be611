package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"floodguard-be/internal/entity"
	"floodguard-be/internal/mapper"
	"floodguard-be/internal/pkg/logger"
	"floodguard-be/internal/repository/contract"
	"floodguard-be/internal/repository/specification"
	"floodguard-be/pkg/embedding"
	"floodguard-be/pkg/protocol"
	"floodguard-be/pkg/retrieval"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidSearch   = errors.New("invalid search")
)

const (
	projectModule = "ProjectService"
	topContractors = 10
)

// sortColumns maps accepted sort names, including the dataset's column
// spellings, to table columns.
var sortColumns = map[string]string{
	retrieval.SortContractCost: "contract_cost",
	"ContractCost":             "contract_cost",
	retrieval.SortABC:          "abc",
	"ABC":                      "abc",
	retrieval.SortInfraYear:    "infra_year",
	"InfraYear":                "infra_year",
	retrieval.SortStartDate:    "start_date",
	"StartDate":                "start_date",
}

type IProjectService interface {
	Search(ctx context.Context, req retrieval.SearchRequest) (*retrieval.SearchResult, error)
	GetByID(ctx context.Context, projectID string) (*protocol.Project, error)
	Readiness(ctx context.Context) (total int64, embedded int64, err error)
}

type projectService struct {
	repo     contract.ProjectRepository
	embedder embedding.EmbeddingProvider
	mapper   *mapper.ProjectMapper
	log      logger.ILogger
}

// NewProjectService builds the search service. embedder may be nil, in
// which case free-text queries fall back to a description match.
func NewProjectService(repo contract.ProjectRepository, embedder embedding.EmbeddingProvider, log logger.ILogger) IProjectService {
	return &projectService{
		repo:     repo,
		embedder: embedder,
		mapper:   mapper.NewProjectMapper(),
		log:      log,
	}
}

func (s *projectService) Search(ctx context.Context, req retrieval.SearchRequest) (*retrieval.SearchResult, error) {
	// 1. Normalize paging and ordering
	limit := req.Limit
	if limit <= 0 {
		limit = retrieval.DefaultLimit
	}
	if limit > retrieval.MaxLimit {
		limit = retrieval.MaxLimit
	}
	order := specification.OrderBy{Field: "contract_cost", Desc: true}
	if req.Sort != nil {
		if col, ok := sortColumns[req.Sort.Field]; ok {
			order.Field = col
		}
		if strings.EqualFold(req.Sort.Order, "asc") {
			order.Desc = false
		}
	}

	// 2. Attribute and spatial filters
	specs := filterSpecs(req.Filters)
	var center *protocol.Coordinate
	radiusKm := 0.0
	if sp := req.Spatial; sp != nil {
		switch sp.Type {
		case retrieval.SpatialRadius:
			if sp.Lat == nil || sp.Lon == nil {
				return nil, fmt.Errorf("%w: radius search needs lat and lon", ErrInvalidSearch)
			}
			center = &protocol.Coordinate{Lat: *sp.Lat, Lon: *sp.Lon}
			radiusKm = sp.RadiusKm
			if radiusKm <= 0 {
				radiusKm = retrieval.DefaultRadiusKm
			}
			specs = append(specs, specification.WithinBBox{BBox: radiusBBox(*center, radiusKm)})
		case retrieval.SpatialBBox:
			if sp.BBox == nil {
				return nil, fmt.Errorf("%w: bbox search needs bbox", ErrInvalidSearch)
			}
			specs = append(specs, specification.WithinBBox{BBox: *sp.BBox})
		default:
			return nil, fmt.Errorf("%w: unknown spatial type %q", ErrInvalidSearch, sp.Type)
		}
	}

	// 3. Fetch. The radius test runs after the query, so the limit is
	// applied afterwards too.
	fetchLimit := limit
	if center != nil {
		fetchLimit = retrieval.MaxLimit
	}
	rows, err := s.fetch(ctx, strings.TrimSpace(req.Query), specs, order, fetchLimit)
	if err != nil {
		return nil, err
	}

	projects := make([]protocol.Project, 0, len(rows))
	for _, row := range rows {
		p := s.mapper.ToProtocol(row)
		if center != nil && (!p.Placeable() || HaversineKm(*center, *p.Coordinate) > radiusKm) {
			continue
		}
		projects = append(projects, p)
		if len(projects) == limit {
			break
		}
	}

	return &retrieval.SearchResult{
		Projects: projects,
		Total:    len(projects),
		Stats:    ComputeStats(projects),
	}, nil
}

func (s *projectService) fetch(ctx context.Context, query string, specs []specification.Specification, order specification.OrderBy, limit int) ([]*entity.Project, error) {
	if query == "" {
		rows, err := s.repo.FindAll(ctx, append(specs, order, specification.Pagination{Limit: limit})...)
		if err != nil {
			return nil, fmt.Errorf("find projects: %w", err)
		}
		return rows, nil
	}

	if s.embedder != nil {
		res, err := s.embedder.Generate(ctx, query, embedding.TaskQuery)
		if err == nil {
			scored, err := s.repo.SearchSimilar(ctx, res.Embedding.Values, limit, specs...)
			if err != nil {
				return nil, fmt.Errorf("similarity search: %w", err)
			}
			rows := make([]*entity.Project, len(scored))
			for i, sp := range scored {
				rows[i] = sp.Project
			}
			return rows, nil
		}
		s.log.Warn(projectModule, "Query embedding failed, falling back to text match", map[string]interface{}{
			"error": err.Error(),
		})
	}

	specs = append(specs, specification.Contains{Field: "description", Value: query}, order, specification.Pagination{Limit: limit})
	rows, err := s.repo.FindAll(ctx, specs...)
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	return rows, nil
}

func filterSpecs(f *retrieval.SearchFilters) []specification.Specification {
	var specs []specification.Specification
	if f == nil {
		return specs
	}
	if len(f.InfraYear) > 0 {
		specs = append(specs, specification.InfraYears{Years: f.InfraYear})
	}
	if c := strings.TrimSpace(f.Contractor); c != "" {
		specs = append(specs, specification.Contains{Field: "contractor", Value: strings.ToUpper(c)})
	}
	if f.MinContractCost != nil {
		specs = append(specs, specification.MinContractCost{Amount: *f.MinContractCost})
	}
	if f.MaxContractCost != nil {
		specs = append(specs, specification.MaxContractCost{Amount: *f.MaxContractCost})
	}
	contains := []struct{ field, value string }{
		{"region", f.Region},
		{"province", f.Province},
		{"municipality", f.Municipality},
		{"type_of_work", f.TypeOfWork},
	}
	for _, c := range contains {
		if v := strings.TrimSpace(c.value); v != "" {
			specs = append(specs, specification.Contains{Field: c.field, Value: v})
		}
	}
	if id := strings.TrimSpace(f.ProjectID); id != "" {
		specs = append(specs, specification.ByProjectID{ProjectID: id})
	}
	return specs
}

func (s *projectService) GetByID(ctx context.Context, projectID string) (*protocol.Project, error) {
	row, err := s.repo.FindOne(ctx, specification.ByProjectID{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	if row == nil {
		return nil, ErrProjectNotFound
	}
	p := s.mapper.ToProtocol(row)
	return &p, nil
}

func (s *projectService) Readiness(ctx context.Context) (int64, int64, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	embedded, err := s.repo.Count(ctx, specification.HasEmbedding{})
	if err != nil {
		return total, 0, err
	}
	return total, embedded, nil
}

// ComputeStats summarises a result set: budget totals, the ten most
// frequent contractors and a count per type of work.
func ComputeStats(projects []protocol.Project) retrieval.Stats {
	stats := retrieval.Stats{
		TotalProjects: len(projects),
		Contractors:   []string{},
		ProjectTypes:  map[string]int{},
	}
	counts := map[string]int{}
	for _, p := range projects {
		stats.TotalBudget += p.ContractCost
		if p.Contractor != "" {
			counts[p.Contractor]++
		}
		if p.TypeOfWork != "" {
			stats.ProjectTypes[p.TypeOfWork]++
		}
	}
	if len(projects) > 0 {
		stats.AvgAward = stats.TotalBudget / float64(len(projects))
	}

	for name := range counts {
		stats.Contractors = append(stats.Contractors, name)
	}
	sort.Slice(stats.Contractors, func(i, j int) bool {
		a, b := stats.Contractors[i], stats.Contractors[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return a < b
	})
	if len(stats.Contractors) > topContractors {
		stats.Contractors = stats.Contractors[:topContractors]
	}
	return stats
}
