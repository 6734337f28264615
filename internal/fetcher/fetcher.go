package fetcher

import (
	"context"

	"gsrwatch/internal/gsr"
)

// LatestFetcher retrieves the latest observation plus history from the data source.
type LatestFetcher interface {
	FetchLatest(ctx context.Context, limit int, force bool) (Payload, error)
}

// EntitlementFetcher resolves the caller's access tier. It never fails; an
// unreachable endpoint resolves to the most permissive tier.
type EntitlementFetcher interface {
	FetchTier(ctx context.Context) gsr.Tier
}
