package manifests

import (
	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

// Manifest is the part of a registry manifest relevant for reference
// counting: its own digest and, for manifest lists, the child manifests.
type Manifest struct {
	Digest   digest.Digest
	Children []digest.Digest
}

func (m *Manifest) IsList() bool {
	return len(m.Children) > 0
}
