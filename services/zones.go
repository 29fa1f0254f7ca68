package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"necc_scraper/identity"
	"necc_scraper/models"
)

// ZoneStore reads the zone directory
type ZoneStore interface {
	ActiveZones(ctx context.Context) ([]models.Zone, error)
}

// ZoneLookup maps normalized zone names to zone ids
type ZoneLookup map[string]uuid.UUID

// LoadZoneLookup reads the active zones once and indexes them by normalized
// name. When two zones normalize to the same name the first one wins and the
// collision is logged.
func LoadZoneLookup(ctx context.Context, store ZoneStore, logger *zap.Logger) (ZoneLookup, error) {
	zones, err := store.ActiveZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}

	lookup := make(ZoneLookup, len(zones))
	for _, z := range zones {
		if !z.IsActive {
			continue
		}
		name := identity.NormalizeZoneName(z.Name)
		if kept, dup := lookup[name]; dup {
			logger.Warn("Duplicate zone name in directory",
				zap.String("name", name),
				zap.String("kept_zone_id", kept.String()),
				zap.String("ignored_zone_id", z.ID.String()),
			)
			continue
		}
		lookup[name] = z.ID
	}
	return lookup, nil
}

func (l ZoneLookup) Resolve(label string) (uuid.UUID, bool) {
	id, ok := l[identity.NormalizeZoneName(label)]
	return id, ok
}
