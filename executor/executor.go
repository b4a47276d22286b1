package executor

import (
	"context"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

// Executor removes tags and manifests from a repository.
type Executor interface {
	Untag(ctx context.Context, repository, tag string) error
	DeleteManifest(ctx context.Context, repository string, manifestDigest digest.Digest) error
}
