// Package strategy holds the ordered fetch strategies used for search and
// download. The catalog is plain data so reordering or adding a request shape
// never touches the orchestrator.
package strategy

import (
	_ "embed"
	"fmt"
	"os"

	"tubegate/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed strategies.yaml
var defaultCatalog []byte

// Catalog is an immutable, validated set of strategies
type Catalog struct {
	search   []model.FetchStrategy
	download []model.FetchStrategy
}

type document struct {
	Search   []model.FetchStrategy `yaml:"search"`
	Download []model.FetchStrategy `yaml:"download"`
}

// Default returns the embedded catalog
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the embedded one when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse strategy catalog: %w", err)
	}

	if len(doc.Search) != 2 {
		return nil, fmt.Errorf("search needs exactly a primary and a fallback strategy, got %d", len(doc.Search))
	}
	if len(doc.Download) == 0 {
		return nil, fmt.Errorf("download needs at least one strategy")
	}
	if err := validate("search", doc.Search); err != nil {
		return nil, err
	}
	if err := validate("download", doc.Download); err != nil {
		return nil, err
	}

	return &Catalog{search: doc.Search, download: doc.Download}, nil
}

func validate(section string, list []model.FetchStrategy) error {
	seen := make(map[string]bool, len(list))
	for i := range list {
		s := &list[i]
		if s.Name == "" {
			return fmt.Errorf("%s strategy %d has no name", section, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("%s strategy %q is listed twice", section, s.Name)
		}
		seen[s.Name] = true

		switch s.Cookies {
		case "":
			s.Cookies = model.CookiesNone
		case model.CookiesNone, model.CookiesHeader, model.CookiesJar:
		default:
			return fmt.Errorf("%s strategy %q: unknown cookie mode %q", section, s.Name, s.Cookies)
		}
		if s.Retries < 0 || s.FragmentRetries < 0 {
			return fmt.Errorf("%s strategy %q: retries must not be negative", section, s.Name)
		}
		if s.MaxSleepInterval > 0 && s.MaxSleepInterval < s.SleepInterval {
			return fmt.Errorf("%s strategy %q: max_sleep_interval below sleep_interval", section, s.Name)
		}
	}
	return nil
}

// Search returns the search strategies in try order
func (c *Catalog) Search() []model.FetchStrategy {
	return cloneAll(c.search, nil)
}

// Download returns the download strategies for kind in try order, each
// carrying the same media options
func (c *Catalog) Download(kind model.MediaKind) []model.FetchStrategy {
	media := model.MediaOptionsFor(kind)
	return cloneAll(c.download, &media)
}

// Names lists strategy names of a section, used by /status
func (c *Catalog) Names() (search, download []string) {
	for _, s := range c.search {
		search = append(search, s.Name)
	}
	for _, s := range c.download {
		download = append(download, s.Name)
	}
	return search, download
}

func cloneAll(list []model.FetchStrategy, media *model.MediaOptions) []model.FetchStrategy {
	out := make([]model.FetchStrategy, len(list))
	for i, s := range list {
		s.Headers = append([]string(nil), s.Headers...)
		s.Media = media
		out[i] = s
	}
	return out
}
