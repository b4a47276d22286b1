package references

import (
	"fmt"
	"sort"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

// Table counts the reference paths reaching each digest.
type Table map[digest.Digest]int

func (t Table) change(d digest.Digest, delta int) {
	t[d] += delta
}

func (t Table) Count(d digest.Digest) int {
	return t[d]
}

// Unreferenced returns, sorted, the digests no reference path reaches.
// A negative count means a digest was released more often than it was
// referenced, which is a defect in how the table was built.
func (t Table) Unreferenced() []digest.Digest {
	var result []digest.Digest

	for d, count := range t {
		if count < 0 {
			panic(fmt.Sprintf("reference count of %s is negative: %d", d, count))
		}
		if count == 0 {
			result = append(result, d)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})
	return result
}
