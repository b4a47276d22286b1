package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/docker/distribution/registry/client/auth"
	"github.com/docker/distribution/registry/client/auth/challenge"
	"github.com/docker/distribution/registry/client/transport"
	"golang.org/x/time/rate"
)

// credentialStore serves the same basic credentials to every realm and
// remembers refresh tokens handed out by token servers.
type credentialStore struct {
	username string
	password string

	refreshTokens map[string]string
	lock          sync.Mutex
}

func (c *credentialStore) Basic(*url.URL) (string, string) {
	return c.username, c.password
}

func (c *credentialStore) RefreshToken(u *url.URL, service string) string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.refreshTokens[u.String()+"|"+service]
}

func (c *credentialStore) SetRefreshToken(realm *url.URL, service, token string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.refreshTokens == nil {
		c.refreshTokens = make(map[string]string)
	}
	c.refreshTokens[realm.String()+"|"+service] = token
}

type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	err := t.limiter.Wait(req.Context())
	if err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

func (c *Client) ping(ctx context.Context) (challenge.Manager, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.challenges != nil {
		return c.challenges, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/", nil)
	if err != nil {
		return nil, err
	}

	resp, err := (&http.Client{Transport: c.base}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("ping %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	manager := challenge.NewSimpleManager()
	err = manager.AddResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("ping %s: %w", c.baseURL, err)
	}

	c.challenges = manager
	return manager, nil
}

// transport authorizes requests for a single repository; tokens are scoped
// to pulling and deleting in that repository.
func (c *Client) transport(ctx context.Context, repository string) (http.RoundTripper, error) {
	manager, err := c.ping(ctx)
	if err != nil {
		return nil, err
	}

	authorizer := auth.NewAuthorizer(manager,
		auth.NewTokenHandler(c.base, c.credentials, repository, "pull", "delete"),
		auth.NewBasicHandler(c.credentials))

	return transport.NewTransport(c.base, authorizer), nil
}
