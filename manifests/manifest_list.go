package manifests

import (
	"sync"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

// ManifestList keeps one fetched manifest per digest.
type ManifestList struct {
	manifests map[digest.Digest]*Manifest
	lock      sync.Mutex
}

// Add stores the manifest unless one is already known for the digest.
func (m *ManifestList) Add(manifestDigest digest.Digest, manifest *Manifest) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.manifests == nil {
		m.manifests = make(map[digest.Digest]*Manifest)
	}
	if _, ok := m.manifests[manifestDigest]; ok {
		return
	}
	m.manifests[manifestDigest] = manifest
}

func (m *ManifestList) Get(manifestDigest digest.Digest) *Manifest {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.manifests[manifestDigest]
}

func (m *ManifestList) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.manifests)
}
