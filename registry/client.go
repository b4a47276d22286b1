package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/docker/distribution"
	"github.com/docker/distribution/reference"
	v2 "github.com/docker/distribution/registry/api/v2"
	"github.com/docker/distribution/registry/client"
	"github.com/docker/distribution/registry/client/auth/challenge"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"gitlab.com/gitlab-org/registry-tag-purger/concurrency"
	"gitlab.com/gitlab-org/registry-tag-purger/digest"
	"gitlab.com/gitlab-org/registry-tag-purger/manifests"
	"gitlab.com/gitlab-org/registry-tag-purger/repositories"
)

type Config struct {
	// URL of the registry, for example https://myregistry.azurecr.io
	BaseURL  string
	Username string
	Password string
	// QPS limits requests per second, 0 disables the limit.
	QPS       float64
	Transport http.RoundTripper
}

// Client talks to a registry through the Docker Registry HTTP API v2.
type Client struct {
	baseURL     string
	base        http.RoundTripper
	credentials *credentialStore
	urls        *v2.URLBuilder
	jobs        concurrency.JobsData

	challenges   challenge.Manager
	repositories map[string]*repositoryClient
	lock         sync.Mutex
}

type repositoryClient struct {
	named      reference.Named
	repository distribution.Repository
	http       *http.Client
}

func NewClient(config Config, jobs concurrency.JobsData) (*Client, error) {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("registry URL is not set")
	}

	urls, err := v2.NewURLBuilderFromString(baseURL, false)
	if err != nil {
		return nil, fmt.Errorf("registry URL %q: %w", baseURL, err)
	}

	base := config.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if config.QPS > 0 {
		base = &limitedTransport{
			base:    base,
			limiter: rate.NewLimiter(rate.Limit(config.QPS), 1),
		}
	}

	return &Client{
		baseURL: baseURL,
		base:    base,
		credentials: &credentialStore{
			username: config.Username,
			password: config.Password,
		},
		urls:         urls,
		jobs:         jobs,
		repositories: make(map[string]*repositoryClient),
	}, nil
}

func (c *Client) repository(ctx context.Context, name string) (*repositoryClient, error) {
	c.lock.Lock()
	r := c.repositories[name]
	c.lock.Unlock()
	if r != nil {
		return r, nil
	}

	named, err := reference.WithName(name)
	if err != nil {
		return nil, fmt.Errorf("repository %q: %w", name, err)
	}

	tr, err := c.transport(ctx, name)
	if err != nil {
		return nil, err
	}

	repository, err := client.NewRepository(named, c.baseURL, tr)
	if err != nil {
		return nil, fmt.Errorf("repository %q: %w", name, err)
	}

	r = &repositoryClient{
		named:      named,
		repository: repository,
		http:       &http.Client{Transport: tr},
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if existing := c.repositories[name]; existing != nil {
		return existing, nil
	}
	c.repositories[name] = r
	return r, nil
}

// ListTags returns every tag of the repository with the digest it points at.
func (c *Client) ListTags(ctx context.Context, repository string) ([]repositories.Tag, error) {
	r, err := c.repository(ctx, repository)
	if err != nil {
		return nil, err
	}

	tagService := r.repository.Tags(ctx)
	names, err := tagService.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags of %s: %w", repository, err)
	}

	tags := make([]repositories.Tag, len(names))

	jg := c.jobs.Group()
	for i, name := range names {
		jg.Dispatch(func() error {
			descriptor, err := tagService.Get(ctx, name)
			if err != nil {
				return fmt.Errorf("resolve tag %s:%s: %w", repository, name, err)
			}

			tagDigest, err := digest.FromOCI(descriptor.Digest)
			if err != nil {
				return fmt.Errorf("resolve tag %s:%s: %w", repository, name, err)
			}

			tags[i] = repositories.Tag{Name: name, Digest: tagDigest}
			return nil
		})
	}

	err = jg.Finish()
	if err != nil {
		return nil, err
	}

	logrus.Infoln("REPOSITORY:", repository, ":", len(tags), "tags")
	return tags, nil
}

func (c *Client) FetchManifest(ctx context.Context, repository string, manifestDigest digest.Digest) (*manifests.Manifest, error) {
	r, err := c.repository(ctx, repository)
	if err != nil {
		return nil, err
	}

	manifestService, err := r.repository.Manifests(ctx)
	if err != nil {
		return nil, err
	}

	logrus.Debugln("MANIFEST:", repository, ":", manifestDigest, ": loading...")

	m, err := manifestService.Get(ctx, manifestDigest.OCI())
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s@%s: %w", repository, manifestDigest, err)
	}

	return manifests.FromDistribution(manifestDigest, m)
}

// Untag removes the tag, leaving the manifest it points at in place.
func (c *Client) Untag(ctx context.Context, repository, tag string) error {
	r, err := c.repository(ctx, repository)
	if err != nil {
		return err
	}

	ref, err := reference.WithTag(r.named, tag)
	if err != nil {
		return err
	}

	return c.delete(ctx, r, ref)
}

func (c *Client) DeleteManifest(ctx context.Context, repository string, manifestDigest digest.Digest) error {
	r, err := c.repository(ctx, repository)
	if err != nil {
		return err
	}

	ref, err := reference.WithDigest(r.named, manifestDigest.OCI())
	if err != nil {
		return err
	}

	return c.delete(ctx, r, ref)
}

// delete issues DELETE on the manifest endpoint of a tag or digest
// reference. A reference that is already gone counts as deleted.
func (c *Client) delete(ctx context.Context, r *repositoryClient, ref reference.Named) error {
	u, err := c.urls.BuildManifestURL(ref)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	defer resp.Body.Close()

	switch {
	case client.SuccessStatus(resp.StatusCode):
		return nil
	case resp.StatusCode == http.StatusNotFound:
		logrus.Warningln("DELETE", ref, ": not found")
		return nil
	default:
		return fmt.Errorf("delete %s: %w", ref, client.HandleErrorResponse(resp))
	}
}
