package executor

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

type RegistryClient interface {
	Untag(ctx context.Context, repository, tag string) error
	DeleteManifest(ctx context.Context, repository string, manifestDigest digest.Digest) error
}

// RegistryExecutor removes tags and manifests through the registry API.
// Unless Delete is set, it only logs and counts.
type RegistryExecutor struct {
	Client  RegistryClient
	Delete  bool
	Deletes *Deletes
}

func (e *RegistryExecutor) Untag(ctx context.Context, repository, tag string) error {
	logrus.Infoln("UNTAG", repository+":"+tag)
	atomic.AddInt64(&e.Deletes.untagged, 1)

	if !e.Delete {
		return nil
	}
	return e.Client.Untag(ctx, repository, tag)
}

func (e *RegistryExecutor) DeleteManifest(ctx context.Context, repository string, manifestDigest digest.Digest) error {
	logrus.Infoln("DELETE", repository+"@"+manifestDigest.String())
	atomic.AddInt64(&e.Deletes.manifests, 1)

	if !e.Delete {
		return nil
	}
	return e.Client.DeleteManifest(ctx, repository, manifestDigest)
}
