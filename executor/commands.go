package executor

import (
	"fmt"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

const (
	deleteCmd = "acr repository delete"
	untagCmd  = "acr repository untag"
	purgeCmd  = "acr purge"

	acrNameFlag   = "--name"
	imageNameFlag = "--image"
	agoFlag       = "--ago"
	dryRunFlag    = "--dry-run"
	filterFlag    = "--filter"
	untaggedFlag  = "--untagged"
)

// Commands renders acr CLI invocations run inside registry tasks.
type Commands struct {
	RegistryName string
	DryRun       bool
}

func (c Commands) Untag(repository, tag string) string {
	return c.withDryRun(fmt.Sprintf("%s %s %s %s %s:%s", untagCmd, acrNameFlag, c.RegistryName, imageNameFlag, repository, tag))
}

func (c Commands) DeleteManifest(repository string, manifestDigest digest.Digest) string {
	return c.withDryRun(fmt.Sprintf("%s %s %s %s %s@%s", deleteCmd, acrNameFlag, c.RegistryName, imageNameFlag, repository, manifestDigest))
}

func (c Commands) withDryRun(cmd string) string {
	if c.DryRun {
		return cmd + " " + dryRunFlag
	}
	return cmd
}

type PurgeOptions struct {
	Filter   string
	Ago      string
	Untagged bool
	DryRun   bool
}

func PurgeCommand(options PurgeOptions) string {
	cmd := fmt.Sprintf("%s %s %s %s %s", purgeCmd, filterFlag, options.Filter, agoFlag, options.Ago)

	if options.Untagged {
		cmd += " " + untaggedFlag
	}
	if options.DryRun {
		cmd += " " + dryRunFlag
	}
	return cmd
}
