// Package testutil provides manifest payloads and an in-memory registry
// serving the Docker Registry HTTP API v2 for tests.
package testutil

import (
	"encoding/json"
	"fmt"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

const (
	MediaTypeManifest     = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
	MediaTypeOCIManifest  = "application/vnd.oci.image.manifest.v1+json"
	MediaTypeOCIIndex     = "application/vnd.oci.image.index.v1+json"

	mediaTypeConfig = "application/vnd.docker.container.image.v1+json"
	mediaTypeLayer  = "application/vnd.docker.image.rootfs.diff.tar.gzip"
)

type descriptor struct {
	MediaType string            `json:"mediaType"`
	Size      int64             `json:"size"`
	Digest    string            `json:"digest"`
	Platform  map[string]string `json:"platform,omitempty"`
}

type imageManifest struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType"`
	Config        descriptor   `json:"config"`
	Layers        []descriptor `json:"layers"`
}

type manifestList struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType"`
	Manifests     []descriptor `json:"manifests"`
}

// Payload is a serialized manifest together with its media type and digest.
type Payload struct {
	MediaType string
	Data      []byte
	Digest    digest.Digest
}

func newPayload(mediaType string, v interface{}) Payload {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Payload{MediaType: mediaType, Data: data, Digest: digest.FromBytes(data)}
}

// Image returns a single platform manifest; seed makes its content unique.
func Image(seed string) Payload {
	return image(MediaTypeManifest, seed)
}

func OCIImage(seed string) Payload {
	return image(MediaTypeOCIManifest, seed)
}

func image(mediaType, seed string) Payload {
	configType, layerType := mediaTypeConfig, mediaTypeLayer
	if mediaType == MediaTypeOCIManifest {
		configType = "application/vnd.oci.image.config.v1+json"
		layerType = "application/vnd.oci.image.layer.v1.tar+gzip"
	}

	return newPayload(mediaType, imageManifest{
		SchemaVersion: 2,
		MediaType:     mediaType,
		Config: descriptor{
			MediaType: configType,
			Size:      int64(len(seed)),
			Digest:    digest.FromBytes([]byte("config:" + seed)).String(),
		},
		Layers: []descriptor{{
			MediaType: layerType,
			Size:      int64(len(seed)),
			Digest:    digest.FromBytes([]byte("layer:" + seed)).String(),
		}},
	})
}

// List returns a multi-architecture manifest list referencing children.
func List(children ...Payload) Payload {
	return list(MediaTypeManifestList, children)
}

func OCIIndex(children ...Payload) Payload {
	return list(MediaTypeOCIIndex, children)
}

func list(mediaType string, children []Payload) Payload {
	m := manifestList{SchemaVersion: 2, MediaType: mediaType}
	for i, child := range children {
		m.Manifests = append(m.Manifests, descriptor{
			MediaType: child.MediaType,
			Size:      int64(len(child.Data)),
			Digest:    child.Digest.String(),
			Platform: map[string]string{
				"architecture": fmt.Sprintf("arch%d", i),
				"os":           "linux",
			},
		})
	}
	return newPayload(mediaType, m)
}
