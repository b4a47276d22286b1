package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

func TestCommands(t *testing.T) {
	d := digest.FromBytes([]byte("manifest"))
	commands := Commands{RegistryName: "myregistry"}

	assert.Equal(t, "acr repository untag --name myregistry --image app:v1", commands.Untag("app", "v1"))
	assert.Equal(t, "acr repository delete --name myregistry --image app@"+d.String(), commands.DeleteManifest("app", d))
}

func TestCommandsDryRun(t *testing.T) {
	commands := Commands{RegistryName: "myregistry", DryRun: true}

	assert.Equal(t, "acr repository untag --name myregistry --image app:v1 --dry-run", commands.Untag("app", "v1"))
}

func TestPurgeCommand(t *testing.T) {
	assert.Equal(t, "acr purge --filter app:.* --ago 7d",
		PurgeCommand(PurgeOptions{Filter: "app:.*", Ago: "7d"}))
	assert.Equal(t, "acr purge --filter app:^v --ago 1d --untagged --dry-run",
		PurgeCommand(PurgeOptions{Filter: "app:^v", Ago: "1d", Untagged: true, DryRun: true}))
}
