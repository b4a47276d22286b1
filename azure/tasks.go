package azure

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/ioutil"
	"net/url"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/containerregistry/mgmt/2019-05-01/containerregistry"
	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/Azure/go-autorest/autorest"
	"github.com/Azure/go-autorest/autorest/to"
	"github.com/sirupsen/logrus"
)

const (
	RunStatusQueued    = "Queued"
	RunStatusStarted   = "Started"
	RunStatusRunning   = "Running"
	RunStatusSucceeded = "Succeeded"

	taskVersion = "v1.1.0"
	agentCPU    = 2
	userAgent   = "registry-tag-purger"
)

// Run is the state of a scheduled registry task run.
type Run struct {
	ID     string
	Status string
}

func (r Run) InProgress() bool {
	return r.Status == RunStatusQueued || r.Status == RunStatusStarted || r.Status == RunStatusRunning
}

func (r Run) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

// TaskClient schedules single step tasks on a container registry and
// follows their runs.
type TaskClient struct {
	resourceGroup string
	registryName  string
	registries    containerregistry.RegistriesClient
	runs          containerregistry.RunsClient
}

func NewTaskClient(credentials Credentials, subscriptionID, resourceGroup, registryName string) (*TaskClient, error) {
	env, err := Environment(credentials.Environment)
	if err != nil {
		return nil, err
	}

	authorizer, err := NewAuthorizer(credentials)
	if err != nil {
		return nil, err
	}

	return newTaskClient(env.ResourceManagerEndpoint, subscriptionID, resourceGroup, registryName, authorizer), nil
}

func newTaskClient(baseURI, subscriptionID, resourceGroup, registryName string, authorizer autorest.Authorizer) *TaskClient {
	registries := containerregistry.NewRegistriesClientWithBaseURI(baseURI, subscriptionID)
	registries.Authorizer = authorizer
	registries.AddToUserAgent(userAgent)

	runs := containerregistry.NewRunsClientWithBaseURI(baseURI, subscriptionID)
	runs.Authorizer = authorizer
	runs.AddToUserAgent(userAgent)

	return &TaskClient{
		resourceGroup: resourceGroup,
		registryName:  registryName,
		registries:    registries,
		runs:          runs,
	}
}

// EncodeTask renders the task definition running cmd as its only step.
func EncodeTask(cmd string) string {
	task := fmt.Sprintf("version: %s\nsteps:\n  - cmd: %s\n", taskVersion, cmd)
	return base64.StdEncoding.EncodeToString([]byte(task))
}

func (c *TaskClient) ScheduleRun(ctx context.Context, cmd string, timeout time.Duration) (Run, error) {
	future, err := c.registries.ScheduleRun(ctx, c.resourceGroup, c.registryName, containerregistry.EncodedTaskRunRequest{
		EncodedTaskContent: to.StringPtr(EncodeTask(cmd)),
		Timeout:            to.Int32Ptr(int32(timeout / time.Second)),
		Platform: &containerregistry.PlatformProperties{
			Os: containerregistry.Linux,
		},
		AgentConfiguration: &containerregistry.AgentProperties{
			CPU: to.Int32Ptr(agentCPU),
		},
	})
	if err != nil {
		return Run{}, fmt.Errorf("failed to schedule run: %w", err)
	}

	err = future.WaitForCompletionRef(ctx, c.registries.Client)
	if err != nil {
		return Run{}, fmt.Errorf("failed to schedule run: %w", err)
	}

	run, err := future.Result(c.registries)
	if err != nil {
		return Run{}, fmt.Errorf("failed to schedule run: %w", err)
	}

	return runFromAPI(run), nil
}

func (c *TaskClient) GetRun(ctx context.Context, runID string) (Run, error) {
	run, err := c.runs.Get(ctx, c.resourceGroup, c.registryName, runID)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", runID, err)
	}
	return runFromAPI(run), nil
}

// DownloadLog fetches the log of a run through its SAS link.
func (c *TaskClient) DownloadLog(ctx context.Context, runID string) ([]byte, error) {
	result, err := c.runs.GetLogSasURL(ctx, c.resourceGroup, c.registryName, runID)
	if err != nil {
		return nil, fmt.Errorf("run %s log: %w", runID, err)
	}
	if result.LogLink == nil {
		return nil, fmt.Errorf("run %s has no log link", runID)
	}

	u, err := url.Parse(*result.LogLink)
	if err != nil {
		return nil, err
	}

	logrus.Debugln("RUN:", runID, ": downloading log")

	blobURL := azblob.NewBlobURL(*u, azblob.NewPipeline(azblob.NewAnonymousCredential(), azblob.PipelineOptions{}))
	resp, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false)
	if err != nil {
		return nil, fmt.Errorf("run %s log: %w", runID, err)
	}

	body := resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()

	return ioutil.ReadAll(body)
}

func runFromAPI(run containerregistry.Run) Run {
	if run.RunProperties == nil {
		return Run{}
	}
	return Run{
		ID:     to.String(run.RunID),
		Status: string(run.Status),
	}
}
