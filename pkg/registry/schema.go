// pkg/registry/schema.go
package registry

// SourceRegistry is the seed file describing regions, the sources that serve
// them and any curated knowledge-base entries.
type SourceRegistry struct {
	Version     string        `yaml:"version"`
	LastUpdated string        `yaml:"last_updated"`
	Regions     []Region      `yaml:"regions"`
	Sources     []SourceEntry `yaml:"sources"`
}

type Region struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	// DefaultSource names the region's most authoritative source.
	DefaultSource string `yaml:"default_source"`
}

type SourceEntry struct {
	Name       string           `yaml:"name"`
	BaseURL    string           `yaml:"base_url"`
	Tier       string           `yaml:"tier"`
	Region     string           `yaml:"region"`
	Categories []string         `yaml:"categories"`
	Official   bool             `yaml:"official"`
	Kind       string           `yaml:"kind"`
	Entries    []KnowledgeEntry `yaml:"entries,omitempty"`
}

// KnowledgeEntry is served by knowledge_base sources when one of its keywords
// appears in the query.
type KnowledgeEntry struct {
	Keywords    []string `yaml:"keywords"`
	Title       string   `yaml:"title"`
	URL         string   `yaml:"url"`
	Snippet     string   `yaml:"snippet"`
	Category    string   `yaml:"category"`
	LastUpdated string   `yaml:"last_updated"`
}
