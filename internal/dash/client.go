package dash

import (
	"context"
	"fmt"
	"net/url"

	"dashgrab/internal/fetch"
	"dashgrab/internal/logger"
)

// Fetcher is the subset of fetch.Fetcher the manifest client needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string, observe fetch.Observer) ([]byte, error)
}

// Client is the DASH client responsible for fetching and parsing manifests.
type Client struct {
	fetcher Fetcher
	logger  logger.Logger
}

// NewClient creates a new DASH client.
func NewClient(fetcher Fetcher, log logger.Logger) *Client {
	return &Client{fetcher: fetcher, logger: log}
}

// FetchManifest fetches the MPD at manifestURL and extracts its representations.
// A document that yields no representations returns the empty manifest
// together with ErrManifestEmpty.
func (c *Client) FetchManifest(ctx context.Context, manifestURL string) (Manifest, error) {
	c.logger.Debugf("Fetching MPD from URL: %s", manifestURL)

	base, err := BaseURL(manifestURL)
	if err != nil {
		return Manifest{}, err
	}

	data, err := c.fetcher.Fetch(ctx, manifestURL, nil)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to fetch MPD from %s: %w", manifestURL, err)
	}

	var manifest Manifest
	mpd, err := Unmarshal(data)
	if err != nil {
		c.logger.Debugf("Ignoring unparsable MPD from %s: %v", manifestURL, err)
	} else {
		manifest = mpd.Manifest()
	}

	manifest.URL = manifestURL
	manifest.BaseURL = base
	if manifest.PeriodBaseURL != "" {
		manifest.BaseURL, err = resolveBase(base, manifest.PeriodBaseURL)
		if err != nil {
			return Manifest{}, fmt.Errorf("failed to resolve period BaseURL: %w", err)
		}
	}

	if manifest.Empty() {
		return manifest, ErrManifestEmpty
	}
	c.logger.Debugf("Parsed MPD from %s: %d video and %d audio representations", manifestURL, len(manifest.Video), len(manifest.Audio))
	return manifest, nil
}

func resolveBase(base, periodBase string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	resolved, err := resolveURL(b, periodBase)
	if err != nil {
		return "", err
	}
	return resolved.String(), nil
}
