// SPDX-License-Identifier: MPL-2.0

package contentfs_test

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/contentpipe/pkg/contentfs"
	"github.com/invowk/contentpipe/pkg/contentfs/mocks"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseBucketURL(t *testing.T) {
	t.Parallel()

	bucket, prefix, err := contentfs.ParseBucketURL("s3://assets/packs/base/")
	require.NoError(t, err)
	assert.Equal(t, "assets", bucket)
	assert.Equal(t, "packs/base", prefix)

	bucket, prefix, err = contentfs.ParseBucketURL("s3://assets")
	require.NoError(t, err)
	assert.Equal(t, "assets", bucket)
	assert.Empty(t, prefix)

	_, _, err = contentfs.ParseBucketURL("s3:///nobucket")
	assert.ErrorIs(t, err, contentfs.ErrUnsupportedLocation)
	_, _, err = contentfs.ParseBucketURL("/local/dir")
	assert.ErrorIs(t, err, contentfs.ErrUnsupportedLocation)
}

func TestOpenBucket(t *testing.T) {
	t.Parallel()

	client := new(mocks.BucketClient)
	client.On("ListObjects", mock.Anything, "assets", minio.ListObjectsOptions{Prefix: "packs/base/", Recursive: true}).
		Return([]minio.ObjectInfo{
			{Key: "packs/base/meta.json", Size: 30},
			{Key: "packs/base/textures/", Size: 0},
			{Key: "packs/base/textures/ui.png", Size: 120},
		})
	client.On("GetObject", mock.Anything, "assets", "packs/base/meta.json", minio.GetObjectOptions{}).
		Return(io.NopCloser(strings.NewReader(`{"name":"base"}`)), nil)

	opener := contentfs.Opener{Bucket: client}
	s, err := opener.Open(context.Background(), "s3://assets/packs/base")
	require.NoError(t, err)
	defer s.Close()

	var got []string
	for _, e := range s.Entries() {
		got = append(got, e.Path)
	}
	assert.True(t, slices.Equal(got, []string{"meta.json", "textures/ui.png"}), "entries: %v", got)

	data, err := contentfs.ReadEntry(context.Background(), s, "meta.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"base"}`, string(data))

	client.AssertExpectations(t)
}

func TestOpenBucket_ListError(t *testing.T) {
	t.Parallel()

	client := new(mocks.BucketClient)
	client.On("ListObjects", mock.Anything, "assets", mock.Anything).
		Return([]minio.ObjectInfo{{Err: errors.New("access denied")}})

	_, err := contentfs.OpenBucket(context.Background(), client, "s3://assets/base")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestListBucketSources(t *testing.T) {
	t.Parallel()

	client := new(mocks.BucketClient)
	client.On("ListObjects", mock.Anything, "assets", minio.ListObjectsOptions{Prefix: "packs/"}).
		Return([]minio.ObjectInfo{
			{Key: "packs/base/"},
			{Key: "packs/readme.txt"},
			{Key: "packs/mod_a/"},
		})

	locs, err := contentfs.ListBucketSources(context.Background(), client, "s3://assets/packs")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://assets/packs/base", "s3://assets/packs/mod_a"}, locs)
}
