package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/pkg/registry"

	"github.com/lib/pq"
)

// LoadFromRegistry registers every source and region default of reg.
func (c *Catalog) LoadFromRegistry(reg *registry.SourceRegistry) int {
	for _, entry := range reg.Sources {
		c.AddSource(models.Source{
			Name:       entry.Name,
			BaseURL:    entry.BaseURL,
			Tier:       models.ReliabilityTier(entry.Tier),
			Region:     entry.Region,
			Categories: entry.Categories,
			Official:   entry.Official,
			Kind:       models.SourceKind(entry.Kind),
		})

		for _, e := range entry.Entries {
			c.AddKnowledge(entry.Name, models.KnowledgeEntry{
				Keywords:    e.Keywords,
				Title:       e.Title,
				URL:         e.URL,
				Snippet:     e.Snippet,
				Category:    e.Category,
				LastUpdated: e.LastUpdated,
			})
		}
	}

	for _, region := range reg.Regions {
		if region.DefaultSource != "" {
			c.SetDefaultSource(region.Code, region.DefaultSource)
		}
	}
	return len(reg.Sources)
}

// LoadRegistryFile reads path and registers its contents.
func (c *Catalog) LoadRegistryFile(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, errors.NewCatalogLoadFailedError(path, err)
	}
	return c.LoadFromRegistry(reg), nil
}

const (
	selectSourcesQuery = `SELECT name, base_url, reliability, region, categories, official, kind
		FROM tourism_sources ORDER BY name`

	insertSourceQuery = `INSERT INTO tourism_sources (name, base_url, reliability, region, categories, official, kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET base_url = EXCLUDED.base_url, reliability = EXCLUDED.reliability,
			region = EXCLUDED.region, categories = EXCLUDED.categories, official = EXCLUDED.official, kind = EXCLUDED.kind`
)

// PostgresSourceStore persists administratively added sources.
type PostgresSourceStore struct {
	db *sql.DB
}

func NewPostgresSourceStore(db *sql.DB) *PostgresSourceStore {
	return &PostgresSourceStore{db: db}
}

// Load reads every stored source.
func (s *PostgresSourceStore) Load(ctx context.Context) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx, selectSourcesQuery)
	if err != nil {
		return nil, errors.NewCatalogLoadFailedError("postgres", err)
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var (
			src        models.Source
			tier, kind string
			categories []string
		)
		if err := rows.Scan(&src.Name, &src.BaseURL, &tier, &src.Region, pq.Array(&categories), &src.Official, &kind); err != nil {
			return nil, errors.NewCatalogLoadFailedError("postgres", fmt.Errorf("scan source: %w", err))
		}
		src.Tier = models.ReliabilityTier(tier)
		src.Kind = models.SourceKind(kind)
		src.Categories = categories
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewCatalogLoadFailedError("postgres", err)
	}
	return out, nil
}

// Save upserts src by name.
func (s *PostgresSourceStore) Save(ctx context.Context, src models.Source) error {
	_, err := s.db.ExecContext(ctx, insertSourceQuery,
		src.Name, src.BaseURL, string(src.Tier), src.Region, pq.Array(src.Categories), src.Official, string(src.Kind))
	if err != nil {
		return errors.NewPersistenceFailureError("save source", err)
	}
	return nil
}

// LoadFromStore registers every source held by store.
func (c *Catalog) LoadFromStore(ctx context.Context, store *PostgresSourceStore) (int, error) {
	sources, err := store.Load(ctx)
	if err != nil {
		return 0, err
	}
	for _, src := range sources {
		c.AddSource(src)
	}
	return len(sources), nil
}
