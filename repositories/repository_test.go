package repositories

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

var (
	d1 = digest.FromBytes([]byte("manifest-1"))
	d2 = digest.FromBytes([]byte("manifest-2"))
)

func TestNewTagIndex(t *testing.T) {
	index, err := NewTagIndex("hello-world", []Tag{
		{Name: "a", Digest: d1},
		{Name: "b", Digest: d1},
		{Name: "c", Digest: d2},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, index.Len())
	assert.Equal(t, "a", index.Tags()[0].Name)

	d, ok := index.Digest("b")
	assert.True(t, ok)
	assert.Equal(t, d1, d)

	_, ok = index.Digest("missing")
	assert.False(t, ok)
}

func TestNewTagIndexRejectsDuplicateNames(t *testing.T) {
	_, err := NewTagIndex("hello-world", []Tag{
		{Name: "a", Digest: d1},
		{Name: "a", Digest: d2},
	})
	assert.Error(t, err)
}

func TestNewTagIndexRejectsEmptyDigest(t *testing.T) {
	_, err := NewTagIndex("hello-world", []Tag{{Name: "a"}})
	assert.Error(t, err)
}

func TestValidateListsAllInvalidNames(t *testing.T) {
	index, err := NewTagIndex("hello-world", []Tag{{Name: "a", Digest: d1}})
	require.NoError(t, err)

	err = index.Validate([]string{"x", "a", "y", "x"})

	var invalid *InvalidTagError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "hello-world", invalid.Repository)
	assert.Equal(t, []string{"x", "y"}, invalid.Names)
	assert.EqualError(t, err, "invalid tag name: x,y")
}

func TestValidateAcceptsExistingNames(t *testing.T) {
	index, err := NewTagIndex("hello-world", []Tag{{Name: "a", Digest: d1}, {Name: "b", Digest: d2}})
	require.NoError(t, err)

	assert.NoError(t, index.Validate([]string{"a", "b", "a"}))
	assert.NoError(t, index.Validate(nil))
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Distinct([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, Distinct(nil))
}
