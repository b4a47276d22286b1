package purger

import (
	"fmt"
	"io"
	"strings"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

const (
	kindTag      = "tag"
	kindManifest = "manifest"
	kindList     = "manifest-list"
)

// Plan is what a deletion of tags from one repository removes: the tags
// themselves and the manifests nothing references afterwards.
type Plan struct {
	Repository string
	Tags       []string
	// Manifests is sorted by digest.
	Manifests []digest.Digest
	// Lists marks the manifests that are manifest lists. They are removed
	// before the remaining manifests.
	Lists map[digest.Digest]bool
}

func (p *Plan) lists() (lists, images []digest.Digest) {
	for _, d := range p.Manifests {
		if p.Lists[d] {
			lists = append(lists, d)
		} else {
			images = append(images, d)
		}
	}
	return
}

func (p *Plan) kind(d digest.Digest) string {
	if p.Lists[d] {
		return kindList
	}
	return kindManifest
}

// Print writes a human readable listing of the plan.
func (p *Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "Repository %s: %d tags to untag, %d manifests to delete\n",
		p.Repository, len(p.Tags), len(p.Manifests))

	for _, tag := range p.Tags {
		fmt.Fprintf(w, "  untag  %s:%s\n", p.Repository, tag)
	}
	for _, d := range p.Manifests {
		fmt.Fprintf(w, "  delete %s@%s (%s)\n", p.Repository, d, p.kind(d))
	}
}

// CSV renders the plan as Repository,Kind,Reference,Action rows.
func (p *Plan) CSV(action string) []byte {
	var sb strings.Builder

	labels := []string{
		"Repository",
		"Kind",
		"Reference",
		"Action",
	}
	fmt.Fprintln(&sb, strings.Join(labels, ","))

	for _, tag := range p.Tags {
		fmt.Fprintf(&sb, "%s,%s,%s,%s\n", p.Repository, kindTag, tag, action)
	}
	for _, d := range p.Manifests {
		fmt.Fprintf(&sb, "%s,%s,%s,%s\n", p.Repository, p.kind(d), d, action)
	}

	return []byte(sb.String())
}
