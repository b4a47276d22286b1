package executor

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Deletes counts what was (or, in dry run, would have been) removed.
type Deletes struct {
	untagged  int64
	manifests int64
	runs      int64
	logSize   int64
}

func (d *Deletes) Untagged() int64 {
	return atomic.LoadInt64(&d.untagged)
}

func (d *Deletes) Manifests() int64 {
	return atomic.LoadInt64(&d.manifests)
}

func (d *Deletes) Runs() int64 {
	return atomic.LoadInt64(&d.runs)
}

func (d *Deletes) Info() {
	logrus.Warningln("DELETEABLE INFO:", humanize.Comma(d.Untagged()), "tags,",
		humanize.Comma(d.Manifests()), "manifests,",
		humanize.Comma(d.Runs()), "task runs,",
		humanize.Bytes(uint64(atomic.LoadInt64(&d.logSize))), "of run logs",
	)
}
