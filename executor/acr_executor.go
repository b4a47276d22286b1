package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"gitlab.com/gitlab-org/registry-tag-purger/azure"
	"gitlab.com/gitlab-org/registry-tag-purger/digest"
	"gitlab.com/gitlab-org/registry-tag-purger/storage"
)

type TaskRunner interface {
	ScheduleRun(ctx context.Context, cmd string, timeout time.Duration) (azure.Run, error)
	GetRun(ctx context.Context, runID string) (azure.Run, error)
	DownloadLog(ctx context.Context, runID string) ([]byte, error)
}

// ACRExecutor runs every removal as an acr CLI command inside a registry
// task and waits for the run to finish. Timeout bounds both the run itself
// and how long its status is polled.
type ACRExecutor struct {
	Runner       TaskRunner
	Commands     Commands
	Timeout      time.Duration
	PollInterval time.Duration
	// Archive receives run logs when set.
	Archive storage.StorageObject
	Delete  bool
	Deletes *Deletes
}

func (e *ACRExecutor) Untag(ctx context.Context, repository, tag string) error {
	atomic.AddInt64(&e.Deletes.untagged, 1)
	return e.Run(ctx, e.Commands.Untag(repository, tag))
}

func (e *ACRExecutor) DeleteManifest(ctx context.Context, repository string, manifestDigest digest.Digest) error {
	atomic.AddInt64(&e.Deletes.manifests, 1)
	return e.Run(ctx, e.Commands.DeleteManifest(repository, manifestDigest))
}

// Run schedules cmd, waits for the run and collects its log.
func (e *ACRExecutor) Run(ctx context.Context, cmd string) error {
	logrus.Infoln("RUN: command:", cmd)
	if !e.Delete {
		return nil
	}

	run, err := e.Runner.ScheduleRun(ctx, cmd, e.Timeout)
	if err != nil {
		return err
	}
	atomic.AddInt64(&e.Deletes.runs, 1)

	started := time.Now()
	logrus.Infoln("RUN:", run.ID, ": started:", run.Status)

	var pollErr error
	if run.InProgress() {
		pollErr = wait.PollUntilContextTimeout(ctx, e.PollInterval, e.Timeout, false, func(ctx context.Context) (bool, error) {
			current, err := e.Runner.GetRun(ctx, run.ID)
			if err != nil {
				return false, err
			}

			run = current
			if run.InProgress() {
				logrus.Infoln("RUN:", run.ID, ": in progress:", run.Status, ": started", humanize.Time(started))
				return false, nil
			}
			return true, nil
		})
	}

	logrus.Infoln("RUN:", run.ID, ": status:", run.Status)
	e.collectLog(ctx, run)

	switch {
	case pollErr != nil && ctx.Err() != nil:
		return fmt.Errorf("run %s: %w", run.ID, ctx.Err())
	case pollErr != nil && wait.Interrupted(pollErr):
		return fmt.Errorf("run %s: not finished within %v: %s", run.ID, e.Timeout, run.Status)
	case pollErr != nil:
		return fmt.Errorf("run %s: %w", run.ID, pollErr)
	case !run.Succeeded():
		return fmt.Errorf("run %s: finished with status %s", run.ID, run.Status)
	}
	return nil
}

// collectLog prints and archives the run log. Failures are only logged:
// the run outcome is already known.
func (e *ACRExecutor) collectLog(ctx context.Context, run azure.Run) {
	data, err := e.Runner.DownloadLog(ctx, run.ID)
	if err != nil {
		logrus.Warningln("RUN:", run.ID, ": log:", err)
		return
	}

	atomic.AddInt64(&e.Deletes.logSize, int64(len(data)))
	logrus.Infoln("RUN:", run.ID, ": log:", humanize.Bytes(uint64(len(data))))
	logrus.Debugln(string(data))

	if e.Archive == nil {
		return
	}

	err = e.Archive.Write("runs/"+run.ID+".log", data)
	if err != nil {
		logrus.Warningln("RUN:", run.ID, ": archive log:", err)
	}
}
