package repositories

import (
	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

// Tag binds a name to the manifest it currently points at.
type Tag struct {
	Name   string
	Digest digest.Digest
}

func (t Tag) String() string {
	return t.Name + "@" + t.Digest.String()
}
