package persona

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/repository"
)

// StorageKey is the record holding the JSON list of custom personalities.
const StorageKey = "custom_personas_v1"

// Merge concatenates defaults and custom in their original relative order.
// Entries whose id already appeared earlier are dropped.
func Merge(defaults, custom []domain.Personality) []domain.Personality {
	seen := make(map[string]bool, len(defaults)+len(custom))
	out := make([]domain.Personality, 0, len(defaults)+len(custom))
	for _, list := range [][]domain.Personality{defaults, custom} {
		for _, p := range list {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p.Clone())
		}
	}
	return out
}

// Custom returns the personalities in all that are not built in.
func Custom(all []domain.Personality) []domain.Personality {
	var out []domain.Personality
	for _, p := range all {
		if !IsBuiltin(p.ID) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Catalog loads and saves the custom personality list.
type Catalog struct {
	store repository.Store
}

// NewCatalog creates a catalog backed by store.
func NewCatalog(store repository.Store) *Catalog {
	return &Catalog{store: store}
}

// Load reads the persisted custom personalities and merges them after the
// built-ins. A missing record yields only the built-ins. A corrupt record is
// logged and ignored.
func (c *Catalog) Load(ctx context.Context) ([]domain.Personality, error) {
	raw, ok, err := c.store.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load custom personas: %w", err)
	}
	if !ok {
		return Defaults(), nil
	}

	var custom []domain.Personality
	if err := json.Unmarshal([]byte(raw), &custom); err != nil {
		logrus.WithFields(logrus.Fields{
			"key":   StorageKey,
			"error": err,
		}).Warn("Ignoring unreadable custom persona record")
		return Defaults(), nil
	}
	return Merge(Defaults(), custom), nil
}

// Save rewrites the full custom list derived from all. Built-ins are never
// persisted.
func (c *Catalog) Save(ctx context.Context, all []domain.Personality) error {
	custom := Custom(all)
	if custom == nil {
		custom = []domain.Personality{}
	}
	data, err := json.Marshal(custom)
	if err != nil {
		return fmt.Errorf("failed to marshal custom personas: %w", err)
	}
	if err := c.store.Put(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to save custom personas: %w", err)
	}
	return nil
}
