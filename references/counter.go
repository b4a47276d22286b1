package references

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"gitlab.com/gitlab-org/registry-tag-purger/concurrency"
	"gitlab.com/gitlab-org/registry-tag-purger/digest"
	"gitlab.com/gitlab-org/registry-tag-purger/manifests"
	"gitlab.com/gitlab-org/registry-tag-purger/repositories"
)

type ManifestFetcher interface {
	FetchManifest(ctx context.Context, repository string, manifestDigest digest.Digest) (*manifests.Manifest, error)
}

// Counter counts references over the two level graph of tags, manifests
// and manifest list children. Every tag is an independent reference path:
// a digest shared by N tags is counted N times, and so are its children.
type Counter struct {
	index     *repositories.TagIndex
	manifests manifests.ManifestList
	table     Table
}

func NewCounter(index *repositories.TagIndex) *Counter {
	return &Counter{
		index: index,
		table: make(Table),
	}
}

// Build fetches the manifest of every tag, once per tag even when tags share
// a digest, and counts the references. Fetches run on jobs; counting starts
// only after all of them succeeded.
func (c *Counter) Build(ctx context.Context, fetcher ManifestFetcher, jobs concurrency.JobsData) error {
	tags := c.index.Tags()
	fetched := make([]*manifests.Manifest, len(tags))

	jg := jobs.Group()
	for i, tag := range tags {
		jg.Dispatch(func() error {
			if jg.Failed() {
				return nil
			}

			manifest, err := fetcher.FetchManifest(ctx, c.index.Repository, tag.Digest)
			if err != nil {
				return err
			}

			fetched[i] = manifest
			return nil
		})
	}

	err := jg.Finish()
	if err != nil {
		return err
	}

	for i, tag := range tags {
		if fetched[i] == nil {
			return fmt.Errorf("tag %s: no manifest fetched for %s", tag.Name, tag.Digest)
		}
		c.reference(tag.Digest, fetched[i])
	}

	logrus.Debugln("REPOSITORY:", c.index.Repository, ":", c.index.Len(), "tags reference",
		c.manifests.Len(), "manifests")
	return nil
}

func (c *Counter) reference(d digest.Digest, manifest *manifests.Manifest) {
	c.table.change(d, 1)
	c.manifests.Add(d, manifest)

	for _, child := range manifest.Children {
		c.table.change(child, 1)
	}
}

// Release removes one reference path per distinct tag name.
func (c *Counter) Release(names []string) error {
	err := c.index.Validate(names)
	if err != nil {
		return err
	}

	for _, name := range repositories.Distinct(names) {
		d, _ := c.index.Digest(name)
		c.table.change(d, -1)

		manifest := c.manifests.Get(d)
		if manifest == nil {
			return fmt.Errorf("tag %s: manifest %s was not counted", name, d)
		}

		for _, child := range manifest.Children {
			c.table.change(child, -1)
		}

		logrus.Debugln("TAG:", c.index.Repository, ":", name, ": released:", d)
	}
	return nil
}

func (c *Counter) Count(d digest.Digest) int {
	return c.table.Count(d)
}

func (c *Counter) Unreferenced() []digest.Digest {
	return c.table.Unreferenced()
}

// Manifest returns the manifest fetched for a tagged digest, or nil for
// digests only known as manifest list children.
func (c *Counter) Manifest(d digest.Digest) *manifests.Manifest {
	return c.manifests.Get(d)
}
