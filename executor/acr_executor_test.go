package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gitlab-org/registry-tag-purger/azure"
)

type fakeRunner struct {
	lock      sync.Mutex
	commands  []string
	statuses  []string
	final     string
	polls     int
	log       []byte
	logErr    error
	timeout   time.Duration
	scheduled error
}

func (f *fakeRunner) ScheduleRun(ctx context.Context, cmd string, timeout time.Duration) (azure.Run, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.scheduled != nil {
		return azure.Run{}, f.scheduled
	}
	f.commands = append(f.commands, cmd)
	f.timeout = timeout
	return azure.Run{ID: "run1", Status: azure.RunStatusQueued}, nil
}

func (f *fakeRunner) GetRun(ctx context.Context, runID string) (azure.Run, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.polls++
	if len(f.statuses) > 0 {
		status := f.statuses[0]
		f.statuses = f.statuses[1:]
		return azure.Run{ID: runID, Status: status}, nil
	}
	return azure.Run{ID: runID, Status: f.final}, nil
}

func (f *fakeRunner) DownloadLog(ctx context.Context, runID string) ([]byte, error) {
	return f.log, f.logErr
}

type memoryArchive struct {
	objects map[string][]byte
}

func (m *memoryArchive) Write(path string, data []byte) error {
	m.objects[path] = data
	return nil
}

func (m *memoryArchive) Info() {}

func newACRExecutor(runner *fakeRunner) *ACRExecutor {
	return &ACRExecutor{
		Runner:       runner,
		Commands:     Commands{RegistryName: "myregistry"},
		Timeout:      time.Second,
		PollInterval: time.Millisecond,
		Delete:       true,
		Deletes:      &Deletes{},
	}
}

func TestACRExecutorWaitsForRun(t *testing.T) {
	runner := &fakeRunner{
		statuses: []string{azure.RunStatusStarted, azure.RunStatusRunning},
		final:    azure.RunStatusSucceeded,
		log:      []byte("untagged app:v1"),
	}
	archive := &memoryArchive{objects: map[string][]byte{}}
	e := newACRExecutor(runner)
	e.Archive = archive

	require.NoError(t, e.Untag(context.Background(), "app", "v1"))

	assert.Equal(t, []string{"acr repository untag --name myregistry --image app:v1"}, runner.commands)
	assert.Equal(t, time.Second, runner.timeout)
	assert.Equal(t, 3, runner.polls)
	assert.EqualValues(t, 1, e.Deletes.Runs())
	assert.EqualValues(t, 1, e.Deletes.Untagged())
	assert.Equal(t, []byte("untagged app:v1"), archive.objects["runs/run1.log"])
}

func TestACRExecutorFailedRun(t *testing.T) {
	runner := &fakeRunner{final: "Failed"}
	e := newACRExecutor(runner)

	err := e.Run(context.Background(), "acr purge --filter app:.* --ago 0d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finished with status Failed")
}

func TestACRExecutorTimeout(t *testing.T) {
	runner := &fakeRunner{final: azure.RunStatusRunning}
	e := newACRExecutor(runner)
	e.Timeout = 20 * time.Millisecond

	err := e.Run(context.Background(), "acr purge --filter app:.* --ago 0d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not finished within")
}

func TestACRExecutorCancelled(t *testing.T) {
	runner := &fakeRunner{final: azure.RunStatusRunning}
	e := newACRExecutor(runner)
	e.Timeout = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := e.Run(ctx, "acr purge --filter app:.* --ago 0d")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.NotContains(t, err.Error(), "not finished within")
}

func TestACRExecutorLogFailureIsNotFatal(t *testing.T) {
	runner := &fakeRunner{final: azure.RunStatusSucceeded, logErr: errors.New("no log link")}
	e := newACRExecutor(runner)

	assert.NoError(t, e.Run(context.Background(), "acr purge --filter app:.* --ago 0d"))
}

func TestACRExecutorScheduleError(t *testing.T) {
	failure := errors.New("forbidden")
	runner := &fakeRunner{scheduled: failure}
	e := newACRExecutor(runner)

	assert.Equal(t, failure, e.Run(context.Background(), "acr purge --filter app:.* --ago 0d"))
	assert.Zero(t, e.Deletes.Runs())
}

func TestACRExecutorWithoutDeleteOnlyLogs(t *testing.T) {
	runner := &fakeRunner{}
	e := newACRExecutor(runner)
	e.Delete = false

	require.NoError(t, e.Untag(context.Background(), "app", "v1"))
	assert.Empty(t, runner.commands)
	assert.EqualValues(t, 1, e.Deletes.Untagged())
}
