// Package extractor implements ports.VideoExtractor against an external
// metadata API over plain HTTP, the same outbound-call shape the teacher
// wraps in circuitbreaker/retry for its bus and CDN calls.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/pkg/cache"
	"github.com/Akitash/opentogethertube/pkg/circuitbreaker"
	"github.com/Akitash/opentogethertube/pkg/retry"
)

// metadataCacheTTL bounds how long a resolved video's metadata (title,
// description, length) is trusted without another round trip. Long enough
// that repeatedly re-adding a popular video to other rooms doesn't hammer
// the metadata API, short enough that an edited title eventually catches up.
const metadataCacheTTL = 10 * time.Minute

// knownHosts maps a URL host fragment to the service name the rest of the
// system uses to key that video, mirroring the out-of-scope InfoExtractor
// collaborator's url-to-service resolution.
var knownHosts = map[string]string{
	"youtube.com": "youtube",
	"youtu.be":    "youtube",
	"vimeo.com":   "vimeo",
}

// HTTPExtractor resolves and fetches video metadata from a configured
// metadata API base URL.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client

	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	cache   *cache.Cache
}

func NewHTTPExtractor(baseURL string) *HTTPExtractor {
	return &HTTPExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retry:   retry.DefaultConfig(),
		cache:   cache.NewCache(metadataCacheTTL),
	}
}

// ResolveURL extracts (service, id) from a video URL by recognized host,
// without any network call — resolution is purely structural.
func (e *HTTPExtractor) ResolveURL(ctx context.Context, rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid video url: %w", err)
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")

	service, ok := knownHosts[host]
	if !ok {
		return "", "", fmt.Errorf("unrecognized video host: %s", host)
	}

	var id string
	switch service {
	case "youtube":
		if host == "youtu.be" {
			id = strings.TrimPrefix(parsed.Path, "/")
		} else {
			id = parsed.Query().Get("v")
		}
	default:
		id = strings.TrimPrefix(parsed.Path, "/")
	}
	if id == "" {
		return "", "", fmt.Errorf("could not extract video id from url: %s", rawURL)
	}
	return service, id, nil
}

// FetchMetadata calls the metadata API for (service, id), wrapped in the
// circuit breaker + retry policy since this is a flaky outbound dependency.
// Results are cached by (service, id): the same video gets added to many
// rooms, and there is no reason to re-resolve metadata that hasn't gone
// stale yet.
func (e *HTTPExtractor) FetchMetadata(ctx context.Context, service, id string) (domain.Video, error) {
	cacheKey := service + ":" + id
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached.(domain.Video), nil
	}

	var video domain.Video

	err := e.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, e.retry, func() error {
			endpoint := fmt.Sprintf("%s/metadata/%s/%s", e.baseURL, url.PathEscape(service), url.PathEscape(id))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}

			resp, err := e.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("metadata API returned status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&video)
		})
	})
	if err != nil {
		return domain.Video{}, fmt.Errorf("fetch metadata for %s/%s: %w", service, id, err)
	}

	video.Service = service
	video.ID = id
	e.cache.Set(cacheKey, video)
	return video, nil
}
