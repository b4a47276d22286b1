package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gitlab-org/registry-tag-purger/concurrency"
	"gitlab.com/gitlab-org/registry-tag-purger/digest"
	"gitlab.com/gitlab-org/registry-tag-purger/repositories"
	"gitlab.com/gitlab-org/registry-tag-purger/testutil"
)

const repositoryName = "library/hello-world"

func newTestClient(t *testing.T, registry *testutil.Registry, config Config) *Client {
	jobs := make(concurrency.JobsData)
	jobs.Run(4)
	t.Cleanup(jobs.Close)

	config.BaseURL = registry.URL()
	c, err := NewClient(config, jobs)
	require.NoError(t, err)
	return c
}

func newTestRegistry(t *testing.T) *testutil.Registry {
	registry := testutil.NewRegistry()
	t.Cleanup(registry.Close)
	return registry
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.Error(t, err)
}

func TestListTags(t *testing.T) {
	registry := newTestRegistry(t)
	image := testutil.Image("amd64")
	list := testutil.List(image)
	registry.Tag(repositoryName, "v1", image)
	registry.Tag(repositoryName, "latest", image)
	registry.Tag(repositoryName, "multi", list)

	c := newTestClient(t, registry, Config{})
	tags, err := c.ListTags(context.Background(), repositoryName)
	require.NoError(t, err)

	assert.Equal(t, []repositories.Tag{
		{Name: "latest", Digest: image.Digest},
		{Name: "multi", Digest: list.Digest},
		{Name: "v1", Digest: image.Digest},
	}, tags)
}

func TestListTagsUnknownRepository(t *testing.T) {
	registry := newTestRegistry(t)

	c := newTestClient(t, registry, Config{})
	_, err := c.ListTags(context.Background(), "missing")
	assert.Error(t, err)
}

func TestFetchManifest(t *testing.T) {
	registry := newTestRegistry(t)
	amd64 := testutil.Image("amd64")
	arm64 := testutil.OCIImage("arm64")
	list := testutil.List(amd64, arm64)
	registry.Push(repositoryName, amd64, arm64)
	registry.Tag(repositoryName, "multi", list)

	c := newTestClient(t, registry, Config{})

	m, err := c.FetchManifest(context.Background(), repositoryName, list.Digest)
	require.NoError(t, err)
	assert.Equal(t, list.Digest, m.Digest)
	assert.Equal(t, []digest.Digest{amd64.Digest, arm64.Digest}, m.Children)

	m, err = c.FetchManifest(context.Background(), repositoryName, amd64.Digest)
	require.NoError(t, err)
	assert.False(t, m.IsList())

	assert.Equal(t, 1, registry.Fetches(list.Digest))
}

func TestFetchManifestUnknown(t *testing.T) {
	registry := newTestRegistry(t)
	registry.Tag(repositoryName, "v1", testutil.Image("amd64"))

	c := newTestClient(t, registry, Config{})
	_, err := c.FetchManifest(context.Background(), repositoryName, digest.FromBytes([]byte("missing")))
	assert.Error(t, err)
}

func TestUntagAndDeleteManifest(t *testing.T) {
	registry := newTestRegistry(t)
	image := testutil.Image("amd64")
	registry.Tag(repositoryName, "v1", image)
	registry.Tag(repositoryName, "v2", image)

	c := newTestClient(t, registry, Config{})
	ctx := context.Background()

	require.NoError(t, c.Untag(ctx, repositoryName, "v1"))
	assert.False(t, registry.HasTag(repositoryName, "v1"))
	assert.True(t, registry.HasManifest(repositoryName, image.Digest))

	require.NoError(t, c.DeleteManifest(ctx, repositoryName, image.Digest))
	assert.False(t, registry.HasManifest(repositoryName, image.Digest))
	assert.False(t, registry.HasTag(repositoryName, "v2"))

	assert.Equal(t, []string{"v1", image.Digest.String()}, registry.Deletes())
}

func TestDeleteMissingReferenceSucceeds(t *testing.T) {
	registry := newTestRegistry(t)
	registry.Tag(repositoryName, "v1", testutil.Image("amd64"))

	c := newTestClient(t, registry, Config{})
	ctx := context.Background()

	assert.NoError(t, c.Untag(ctx, repositoryName, "missing"))
	assert.NoError(t, c.DeleteManifest(ctx, repositoryName, digest.FromBytes([]byte("missing"))))
}

func TestBasicAuthentication(t *testing.T) {
	registry := newTestRegistry(t)
	registry.Username = "user"
	registry.Password = "secret"
	image := testutil.Image("amd64")
	registry.Tag(repositoryName, "v1", image)

	c := newTestClient(t, registry, Config{Username: "user", Password: "secret"})
	tags, err := c.ListTags(context.Background(), repositoryName)
	require.NoError(t, err)
	assert.Equal(t, []repositories.Tag{{Name: "v1", Digest: image.Digest}}, tags)

	c = newTestClient(t, registry, Config{Username: "user", Password: "wrong"})
	_, err = c.ListTags(context.Background(), repositoryName)
	assert.Error(t, err)
}

func TestTokenAuthentication(t *testing.T) {
	registry := newTestRegistry(t)
	registry.Username = "user"
	registry.Password = "secret"
	registry.Token = "token-1"
	image := testutil.Image("amd64")
	registry.Tag(repositoryName, "v1", image)
	registry.Tag(repositoryName, "v2", image)
	registry.Tag("library/other", "v1", image)

	c := newTestClient(t, registry, Config{Username: "user", Password: "secret"})
	ctx := context.Background()

	tags, err := c.ListTags(ctx, repositoryName)
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	_, err = c.FetchManifest(ctx, repositoryName, image.Digest)
	require.NoError(t, err)
	require.NoError(t, c.Untag(ctx, repositoryName, "v2"))

	// one token serves every request to the repository
	assert.Equal(t, []testutil.TokenRequest{
		{Method: "GET", Scope: "repository:library/hello-world:pull,delete"},
	}, registry.TokenRequests())

	// other repositories exchange the stored refresh token
	_, err = c.ListTags(ctx, "library/other")
	require.NoError(t, err)

	requests := registry.TokenRequests()
	require.Len(t, requests, 2)
	assert.Equal(t, testutil.TokenRequest{
		Method:       "POST",
		GrantType:    "refresh_token",
		Scope:        "repository:library/other:pull,delete",
		RefreshToken: "refresh-token-1",
	}, requests[1])
}

func TestTokenAuthenticationWrongCredentials(t *testing.T) {
	registry := newTestRegistry(t)
	registry.Username = "user"
	registry.Password = "secret"
	registry.Token = "token-1"
	registry.Tag(repositoryName, "v1", testutil.Image("amd64"))

	c := newTestClient(t, registry, Config{Username: "user", Password: "wrong"})
	_, err := c.ListTags(context.Background(), repositoryName)
	assert.Error(t, err)
}

func TestRateLimitedClient(t *testing.T) {
	registry := newTestRegistry(t)
	image := testutil.Image("amd64")
	registry.Tag(repositoryName, "v1", image)

	c := newTestClient(t, registry, Config{QPS: 1000})
	_, ok := c.base.(*limitedTransport)
	assert.True(t, ok)

	m, err := c.FetchManifest(context.Background(), repositoryName, image.Digest)
	require.NoError(t, err)
	assert.Equal(t, image.Digest, m.Digest)
}

func TestInvalidRepositoryName(t *testing.T) {
	registry := newTestRegistry(t)

	c := newTestClient(t, registry, Config{})
	_, err := c.ListTags(context.Background(), "Invalid Name")
	assert.Error(t, err)
}
