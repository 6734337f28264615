package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"gsrwatch/internal/gsr"
)

const tierCacheKey = "tier"

// EntitlementOptions parameterise the entitlement client.
type EntitlementOptions struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Entitlement looks up the access tier, defaulting to elite so a missing
// endpoint never locks the charts.
type Entitlement struct {
	opts   EntitlementOptions
	client *http.Client
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewEntitlement constructs an entitlement client.
func NewEntitlement(opts EntitlementOptions, logger zerolog.Logger) *Entitlement {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Entitlement{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		cache:  cache.New(ttl, 2*ttl),
		logger: logger.With().Str("component", "entitlement").Logger(),
	}
}

// FetchTier returns the cached or freshly fetched tier.
func (e *Entitlement) FetchTier(ctx context.Context) gsr.Tier {
	if strings.TrimSpace(e.opts.URL) == "" {
		return gsr.TierElite
	}
	if v, found := e.cache.Get(tierCacheKey); found {
		return v.(gsr.Tier)
	}

	tier, ok := e.fetch(ctx)
	if !ok {
		return gsr.TierElite
	}
	e.cache.Set(tierCacheKey, tier, cache.DefaultExpiration)
	return tier
}

func (e *Entitlement) fetch(ctx context.Context) (gsr.Tier, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.opts.URL, nil)
	if err != nil {
		e.logger.Debug().Err(err).Msg("build entitlement request")
		return "", false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug().Err(err).Msg("entitlement endpoint unreachable")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Debug().Int("status", resp.StatusCode).Msg("entitlement endpoint returned non-2xx")
		return "", false
	}

	var body struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false
	}
	return gsr.ParseTier(body.Tier)
}

var _ EntitlementFetcher = (*Entitlement)(nil)
