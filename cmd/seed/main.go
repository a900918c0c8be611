package main

import (
	"context"
	"log"
	"os"
	"time"

	"floodguard-be/internal/entity"
	"floodguard-be/internal/repository/unitofwork"
	"floodguard-be/pkg/database"
	"floodguard-be/pkg/embedding"

	"github.com/joho/godotenv"
)

const batchSize = 200

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}
	csvPath := os.Getenv("PROJECTS_CSV")
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}
	if csvPath == "" {
		csvPath = "./data/projects.csv"
	}

	// 2. Connect to Database
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 3. Read the dataset
	f, err := os.Open(csvPath)
	if err != nil {
		log.Fatalf("Error: open %s: %v", csvPath, err)
	}
	res, err := LoadCSV(f)
	f.Close()
	if err != nil {
		log.Fatalf("Error: load %s: %v", csvPath, err)
	}
	for _, skipped := range res.Skipped {
		log.Printf("Warn: skipped %v", skipped)
	}
	log.Printf("Loaded %d projects from %s (%d rows skipped)", len(res.Projects), csvPath, len(res.Skipped))

	// 4. Embed descriptions
	provider := embedding.NewProvider(
		getEnv("EMBEDDING_PROVIDER", "ollama"),
		getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
	)
	ctx := context.Background()
	if provider != nil {
		embedAll(ctx, provider, res.Projects)
	} else {
		log.Println("Info: embeddings disabled, semantic search will fall back to text match")
	}

	// 5. Upsert in batches, one transaction each
	factory := unitofwork.NewRepositoryFactory(db)
	for start := 0; start < len(res.Projects); start += batchSize {
		end := min(start+batchSize, len(res.Projects))
		if err := upsertBatch(ctx, factory, res.Projects[start:end]); err != nil {
			log.Fatalf("Error: upsert rows %d-%d: %v", start, end, err)
		}
		log.Printf("Upserted %d/%d", end, len(res.Projects))
	}

	log.Println("✅ Success: Project dataset seeded.")
}

func embedAll(ctx context.Context, provider embedding.EmbeddingProvider, projects []*entity.Project) {
	start := time.Now()
	failed := 0
	for i, p := range projects {
		if p.Document == "" {
			continue
		}
		res, err := provider.Generate(ctx, p.Document, embedding.TaskDocument)
		if err != nil {
			failed++
			log.Printf("Warn: embed %s: %v", p.ProjectId, err)
			continue
		}
		p.Embedding = res.Embedding.Values
		if (i+1)%100 == 0 {
			log.Printf("Embedded %d/%d", i+1, len(projects))
		}
	}
	log.Printf("Embedding finished in %s (%d failed)", time.Since(start).Round(time.Second), failed)
}

func upsertBatch(ctx context.Context, factory unitofwork.RepositoryFactory, batch []*entity.Project) error {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := uow.ProjectRepository().UpsertBulk(ctx, batch); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
