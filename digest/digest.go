package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	godigest "github.com/opencontainers/go-digest"
)

const digestAlgorithm = "sha256"
const digestReferenceAlgorithm = "sha256:"

var digestEmpty [sha256.Size]byte

// Digest identifies a manifest by the sha256 of its content.
type Digest struct {
	hash [sha256.Size]byte
}

func NewDigestFromReference(data []byte) (d Digest, err error) {
	if !bytes.HasPrefix(data, []byte(digestReferenceAlgorithm)) {
		return Digest{}, fmt.Errorf("digest reference should start with: %v, but was: %q", digestReferenceAlgorithm, data)
	}

	if err = godigest.Digest(data).Validate(); err != nil {
		return Digest{}, fmt.Errorf("digest reference %q: %w", data, err)
	}

	err = d.decode(data[len(digestReferenceAlgorithm):])
	return
}

func Parse(reference string) (Digest, error) {
	return NewDigestFromReference([]byte(reference))
}

func FromOCI(d godigest.Digest) (Digest, error) {
	if d.Algorithm() != godigest.SHA256 {
		return Digest{}, fmt.Errorf("only %v is supported: %v", digestAlgorithm, d.Algorithm())
	}
	return Parse(d.String())
}

func FromBytes(data []byte) Digest {
	return Digest{hash: sha256.Sum256(data)}
}

func (d *Digest) decode(data []byte) error {
	n, err := hex.Decode(d.hash[:], data)
	if err != nil {
		return err
	}

	if n != sha256.Size {
		return fmt.Errorf("component should be valid %v, but was: %q", digestAlgorithm, data)
	}

	return nil
}

func (d Digest) HexHash() string {
	return hex.EncodeToString(d.hash[:])
}

func (d Digest) Reference() []byte {
	return []byte(digestReferenceAlgorithm + d.HexHash())
}

// OCI converts the digest for use with registry clients.
func (d Digest) OCI() godigest.Digest {
	return godigest.NewDigestFromEncoded(godigest.SHA256, d.HexHash())
}

func (d Digest) String() string {
	return string(d.Reference())
}

func (d Digest) Valid() bool {
	return !bytes.Equal(d.hash[:], digestEmpty[:])
}
