package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNonJSON reports a response body that is not JSON, e.g. an HTML error page.
var ErrNonJSON = errors.New("data source returned non-JSON")

// LatestOptions parameterise the data source client.
type LatestOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Latest fetches the latest+history payload over HTTP.
type Latest struct {
	opts   LatestOptions
	logger zerolog.Logger
	client *http.Client
	now    func() time.Time
}

// NewLatest constructs a data source client.
func NewLatest(opts LatestOptions, logger zerolog.Logger) *Latest {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Latest{
		opts:   opts,
		logger: logger.With().Str("component", "latest_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// FetchLatest requests up to limit history rows. force asks the source to
// bypass its own caching. Transport failures and non-JSON bodies are returned
// as errors; a JSON body always becomes a Payload, with non-2xx statuses
// forced to ok=false.
func (l *Latest) FetchLatest(ctx context.Context, limit int, force bool) (Payload, error) {
	if strings.TrimSpace(l.opts.URL) == "" {
		return Payload{}, errors.New("source url not configured")
	}

	endpoint, err := l.buildURL(limit, force)
	if err != nil {
		return Payload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Payload{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "gsrwatch/1.0")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("request latest: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, fmt.Errorf("read latest body: %w", err)
	}

	payload, err := Decode(body)
	if err != nil {
		return Payload{}, fmt.Errorf("%w (status %d)", ErrNonJSON, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload.OK = false
		if payload.Error == "" {
			payload.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
	}
	if payload.Dropped > 0 {
		l.logger.Debug().Int("dropped", payload.Dropped).Msg("history rows without a usable date dropped")
	}

	l.logger.Debug().
		Int("status", resp.StatusCode).
		Str("shape", payload.Shape.String()).
		Int("history", len(payload.History)).
		Bool("force", force).
		Msg("latest payload received")
	return payload, nil
}

func (l *Latest) buildURL(limit int, force bool) (string, error) {
	u, err := url.Parse(l.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	q := u.Query()
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if force {
		q.Set("force", "1")
	} else {
		q.Set("force", "0")
	}
	q.Set("_t", strconv.FormatInt(l.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var _ LatestFetcher = (*Latest)(nil)
