package repositories

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

// TagIndex maps tag names to digests for a single snapshot of a repository.
// Tags keeps the listing order, including tags that share a digest.
type TagIndex struct {
	Repository string
	tags       []Tag
	digests    map[string]digest.Digest
}

func NewTagIndex(repository string, tags []Tag) (*TagIndex, error) {
	index := &TagIndex{
		Repository: repository,
		tags:       make([]Tag, 0, len(tags)),
		digests:    make(map[string]digest.Digest, len(tags)),
	}

	for _, tag := range tags {
		if _, ok := index.digests[tag.Name]; ok {
			return nil, fmt.Errorf("repository %s: tag %s listed more than once", repository, tag.Name)
		}
		if !tag.Digest.Valid() {
			return nil, fmt.Errorf("repository %s: tag %s has no digest", repository, tag.Name)
		}

		index.digests[tag.Name] = tag.Digest
		index.tags = append(index.tags, tag)
		logrus.Debugln("TAG:", repository, ":", tag.String())
	}

	return index, nil
}

func (i *TagIndex) Tags() []Tag {
	return i.tags
}

func (i *TagIndex) Len() int {
	return len(i.tags)
}

func (i *TagIndex) Digest(name string) (digest.Digest, bool) {
	d, ok := i.digests[name]
	return d, ok
}

// Validate fails with InvalidTagError naming every requested tag that is not
// part of the index.
func (i *TagIndex) Validate(names []string) error {
	var invalid []string
	seen := make(map[string]bool)

	for _, name := range names {
		if _, ok := i.digests[name]; ok || seen[name] {
			continue
		}
		seen[name] = true
		invalid = append(invalid, name)
	}

	if len(invalid) > 0 {
		return &InvalidTagError{Repository: i.Repository, Names: invalid}
	}
	return nil
}

// Distinct returns names without repetitions, keeping the first occurrence.
func Distinct(names []string) []string {
	seen := make(map[string]bool, len(names))
	result := make([]string, 0, len(names))

	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		result = append(result, name)
	}
	return result
}
