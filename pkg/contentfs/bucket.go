// SPDX-License-Identifier: MPL-2.0

package contentfs

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type (
	// BucketClient is the object-storage surface used by bucket sources.
	BucketClient interface {
		ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
		GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	}

	// BucketConfig holds the connection settings of an S3-compatible store.
	BucketConfig struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Region    string
		UseSSL    bool
		Timeout   time.Duration
	}

	// BucketStructure serves a source stored under a bucket prefix.
	BucketStructure struct {
		entryIndex
		client BucketClient
		bucket string
		prefix string
	}

	minioClient struct {
		*minio.Client
	}
)

// NewBucketClient connects to an S3-compatible endpoint.
func NewBucketClient(cfg BucketConfig) (BucketClient, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket client: %w", err)
	}
	return &minioClient{Client: client}, nil
}

func (c *minioClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucketName, objectName, opts)
}

// ParseBucketURL splits s3://bucket/prefix into bucket and prefix. The
// prefix has no leading or trailing slash.
func ParseBucketURL(location string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(location, BucketScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedLocation, location)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: %s (missing bucket name)", ErrUnsupportedLocation, location)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// OpenBucket lists every object below the location's prefix.
func OpenBucket(ctx context.Context, client BucketClient, location string) (*BucketStructure, error) {
	bucket, prefix, err := ParseBucketURL(location)
	if err != nil {
		return nil, err
	}

	listPrefix := ""
	if prefix != "" {
		listPrefix = prefix + "/"
	}

	var entries []EntryInfo
	for obj := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: listPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", location, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, listPrefix)
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		entries = append(entries, EntryInfo{Path: name, Size: obj.Size, ModTime: obj.LastModified})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &BucketStructure{
		entryIndex: newEntryIndex(entries),
		client:     client,
		bucket:     bucket,
		prefix:     listPrefix,
	}, nil
}

// ListBucketSources returns one location per top-level prefix below root,
// e.g. s3://content/packs -> [s3://content/packs/base s3://content/packs/mod_a].
func ListBucketSources(ctx context.Context, client BucketClient, root string) ([]string, error) {
	bucket, prefix, err := ParseBucketURL(root)
	if err != nil {
		return nil, err
	}
	listPrefix := ""
	if prefix != "" {
		listPrefix = prefix + "/"
	}

	var locations []string
	for obj := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: listPrefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", root, obj.Err)
		}
		name, isDir := strings.CutSuffix(strings.TrimPrefix(obj.Key, listPrefix), "/")
		if !isDir || name == "" {
			continue
		}
		locations = append(locations, BucketScheme+bucket+"/"+listPrefix+name)
	}
	return locations, nil
}

// Open fetches an object stream.
func (b *BucketStructure) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !b.Has(name) {
		return nil, notExist(name)
	}
	return b.client.GetObject(ctx, b.bucket, b.prefix+name, minio.GetObjectOptions{})
}

// Close is a no-op; object streams are closed by their readers.
func (b *BucketStructure) Close() error { return nil }
