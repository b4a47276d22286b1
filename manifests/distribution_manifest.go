package manifests

import (
	"fmt"

	"github.com/docker/distribution"
	"github.com/docker/distribution/manifest/manifestlist"
	"github.com/docker/distribution/manifest/ocischema"
	"github.com/docker/distribution/manifest/schema2"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

// FromDistribution converts a manifest deserialized by the distribution
// client. Only manifest lists (and OCI indexes) have children; image
// manifests reference blobs, which are not tracked here.
func FromDistribution(manifestDigest digest.Digest, m distribution.Manifest) (*Manifest, error) {
	result := &Manifest{Digest: manifestDigest}

	switch m := m.(type) {
	case *manifestlist.DeserializedManifestList:
		for _, child := range m.Manifests {
			childDigest, err := digest.FromOCI(child.Digest)
			if err != nil {
				return nil, fmt.Errorf("manifest list %s: %w", manifestDigest, err)
			}
			result.Children = append(result.Children, childDigest)
		}
	case *schema2.DeserializedManifest, *ocischema.DeserializedManifest:
	default:
		mediaType, _, _ := m.Payload()
		return nil, fmt.Errorf("manifest %s: unsupported manifest type %T (%s)", manifestDigest, m, mediaType)
	}

	return result, nil
}
