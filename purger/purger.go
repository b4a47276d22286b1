package purger

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"gitlab.com/gitlab-org/registry-tag-purger/concurrency"
	"gitlab.com/gitlab-org/registry-tag-purger/digest"
	"gitlab.com/gitlab-org/registry-tag-purger/executor"
	"gitlab.com/gitlab-org/registry-tag-purger/references"
	"gitlab.com/gitlab-org/registry-tag-purger/repositories"
	"gitlab.com/gitlab-org/registry-tag-purger/storage"
)

const (
	ActionPlanned = "planned"
	ActionDeleted = "deleted"

	reportsPrefix = "reports/"
)

// Registry is the read side of a registry: tag listing and manifest fetches.
type Registry interface {
	references.ManifestFetcher
	ListTags(ctx context.Context, repository string) ([]repositories.Tag, error)
}

type Purger struct {
	Registry Registry
	Executor executor.Executor
	Jobs     concurrency.JobsData
	// SoftErrors keeps executing after a failed removal and reports all
	// failures at the end.
	SoftErrors bool
	Archive    storage.StorageObject
}

// Plan computes which manifests become unreferenced once the tags are
// deleted. Every requested tag must exist; otherwise the returned error is
// a *repositories.InvalidTagError and no manifest is fetched.
func (p *Purger) Plan(ctx context.Context, repository string, tags []string) (*Plan, error) {
	listed, err := p.Registry.ListTags(ctx, repository)
	if err != nil {
		return nil, err
	}

	index, err := repositories.NewTagIndex(repository, listed)
	if err != nil {
		return nil, err
	}

	err = index.Validate(tags)
	if err != nil {
		return nil, err
	}

	counter := references.NewCounter(index)
	err = counter.Build(ctx, p.Registry, p.Jobs)
	if err != nil {
		return nil, err
	}

	err = counter.Release(tags)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Repository: repository,
		Tags:       repositories.Distinct(tags),
		Manifests:  counter.Unreferenced(),
		Lists:      make(map[digest.Digest]bool),
	}

	for _, d := range plan.Manifests {
		if manifest := counter.Manifest(d); manifest != nil && manifest.IsList() {
			plan.Lists[d] = true
		}
	}

	logrus.Infoln("REPOSITORY:", repository, ":", len(plan.Tags), "tags to untag,",
		len(plan.Manifests), "manifests to delete")
	return plan, nil
}

// Execute untags every planned tag, then deletes manifest lists, then the
// remaining manifests. Without SoftErrors the first failure stops it before
// the next phase.
func (p *Purger) Execute(ctx context.Context, plan *Plan) error {
	var (
		lock   sync.Mutex
		result *multierror.Error
	)

	run := func(jg *concurrency.JobGroup, fn func() error) {
		jg.Dispatch(func() error {
			if jg.Failed() {
				return nil
			}

			err := fn()
			if err == nil || !p.SoftErrors {
				return err
			}

			logrus.Errorln(err)
			lock.Lock()
			result = multierror.Append(result, err)
			lock.Unlock()
			return nil
		})
	}

	jg := p.Jobs.Group()
	for _, tag := range plan.Tags {
		run(jg, func() error {
			return p.Executor.Untag(ctx, plan.Repository, tag)
		})
	}
	err := jg.Finish()
	if err != nil {
		return err
	}

	lists, images := plan.lists()
	for _, phase := range [][]digest.Digest{lists, images} {
		jg = p.Jobs.Group()
		for _, d := range phase {
			run(jg, func() error {
				return p.Executor.DeleteManifest(ctx, plan.Repository, d)
			})
		}

		err = jg.Finish()
		if err != nil {
			return err
		}
	}

	return result.ErrorOrNil()
}

// WriteReport stores the plan as CSV under reports/ in the archive.
func (p *Purger) WriteReport(plan *Plan, name, action string) error {
	if p.Archive == nil {
		return errors.New("report requires a configured storage")
	}

	err := p.Archive.Write(reportsPrefix+name, plan.CSV(action))
	if err != nil {
		return err
	}

	logrus.Infoln("REPORT:", plan.Repository, ":", reportsPrefix+name)
	return nil
}
