package main

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gitlab-org/registry-tag-purger/flags"
	"gitlab.com/gitlab-org/registry-tag-purger/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	*flags.Config = ""
	t.Cleanup(func() { *flags.Config = "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestHelpWithoutConfig(t *testing.T) {
	out, err := execute(t, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "plan")
	assert.Contains(t, out, "purge")
}

func TestCompletionWithoutConfig(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "registry-tag-purger")
}

func TestCommandsRequireConfig(t *testing.T) {
	for _, command := range []string{"plan", "delete", "purge"} {
		_, err := execute(t, command)
		assert.EqualError(t, err, "--config is required", command)
	}
}

func TestPlan(t *testing.T) {
	registry := testutil.NewRegistry()
	t.Cleanup(registry.Close)

	image := testutil.Image("amd64")
	registry.Tag("hello-world", "v1", image)
	registry.Tag("hello-world", "latest", image)
	registry.Tag("hello-world", "old", testutil.Image("old"))

	configFile := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, ioutil.WriteFile(configFile, []byte(
		"version: 0.1\n"+
			"registry:\n"+
			"  loginserver: "+registry.URL()+"\n"+
			"delete:\n"+
			"  repository: hello-world\n"+
			"  tags: [old, v1]\n"), 0600))

	out, err := execute(t, "plan", "--config", configFile)
	require.NoError(t, err)

	assert.Contains(t, out, "Repository hello-world: 2 tags to untag, 1 manifests to delete")
	assert.Contains(t, out, "delete hello-world@"+testutil.Image("old").Digest.String())
	assert.Empty(t, registry.Deletes())
}
