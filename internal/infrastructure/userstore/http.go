// Package userstore implements ports.UserStore against the account
// service's read API, the out-of-scope user-storage collaborator named
// in spec §1. Wrapped in the same circuitbreaker/retry policy as the
// other outbound calls this system makes.
package userstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/pkg/cache"
	"github.com/Akitash/opentogethertube/pkg/circuitbreaker"
	"github.com/Akitash/opentogethertube/pkg/retry"
)

// userCacheTTL bounds how long a fetched account profile is trusted. A
// user's display name/avatar rarely changes mid-session, and every room a
// user is in re-fetches on join/update-user, so caching avoids one account-API
// round trip per room per user.
const userCacheTTL = 2 * time.Minute

type HTTPUserStore struct {
	baseURL string
	client  *http.Client

	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	cache   *cache.Cache
}

func NewHTTPUserStore(baseURL string) *HTTPUserStore {
	return &HTTPUserStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retry:   retry.DefaultConfig(),
		cache:   cache.NewCache(userCacheTTL),
	}
}

func (s *HTTPUserStore) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	cacheKey := fmt.Sprintf("%d", int64(id))
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(domain.User), nil
	}

	var user domain.User

	err := s.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, s.retry, func() error {
			endpoint := fmt.Sprintf("%s/users/%d", s.baseURL, int64(id))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("user store returned status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&user)
		})
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user %d: %w", int64(id), err)
	}

	user.ID = id
	s.cache.Set(cacheKey, user)
	return user, nil
}
