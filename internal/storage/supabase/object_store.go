package supabase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	storage_go "github.com/supabase-community/storage-go"
	supa "github.com/supabase-community/supabase-go"

	"github.com/scrypster/keepsake/pkg/types"
)

// bucketSizeLimit caps individual object size. It matches the upload
// pipeline's ceiling so oversized files are rejected at both layers.
const bucketSizeLimit = "5MB"

// ObjectStore implements storage.ObjectStore against Supabase Storage.
type ObjectStore struct {
	client *supa.Client
}

// EnsureBucket creates the bucket when it is missing and in all cases
// asserts public-read with the configured size limit. Safe to call
// repeatedly; the second call is a no-op update.
func (o *ObjectStore) EnsureBucket(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &types.ProvisionError{Bucket: name, Err: err}
	}

	opts := storage_go.BucketOptions{
		Public:        true,
		FileSizeLimit: bucketSizeLimit,
	}

	if _, err := o.client.Storage.GetBucket(name); err != nil {
		if _, err := o.client.Storage.CreateBucket(name, opts); err != nil {
			return &types.ProvisionError{Bucket: name, Err: fmt.Errorf("create: %w", err)}
		}
		return nil
	}

	if _, err := o.client.Storage.UpdateBucket(name, opts); err != nil {
		return &types.ProvisionError{Bucket: name, Err: fmt.Errorf("update: %w", err)}
	}
	return nil
}

// ListObjects returns the bucket contents, newest first.
func (o *ObjectStore) ListObjects(ctx context.Context, bucket string) ([]types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := o.client.Storage.ListFiles(bucket, "", storage_go.FileSearchOptions{
		Limit: 1000,
		SortByOptions: storage_go.SortBy{
			Column: "created_at",
			Order:  "desc",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("listing bucket %q: %w", bucket, err)
	}

	objects := make([]types.ObjectInfo, 0, len(files))
	for _, f := range files {
		// The storage API reports timestamps as strings; an unparseable
		// value leaves the zero time, which simply sorts last.
		createdAt, _ := time.Parse(time.RFC3339, f.CreatedAt)
		objects = append(objects, types.ObjectInfo{
			Name:      f.Name,
			CreatedAt: createdAt,
		})
	}
	// The API sorts, but folders and placeholder entries can interleave;
	// reassert the order locally.
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].CreatedAt.After(objects[j].CreatedAt)
	})
	return objects, nil
}

// Upload writes an object to the bucket.
func (o *ObjectStore) Upload(ctx context.Context, bucket, key string, data io.Reader, contentType string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &overwrite,
	}
	if _, err := o.client.Storage.UploadFile(bucket, key, data, opts); err != nil {
		return fmt.Errorf("uploading %q to bucket %q: %w", key, bucket, err)
	}
	return nil
}

// PublicURL returns the public address for an object key.
func (o *ObjectStore) PublicURL(bucket, key string) string {
	return o.client.Storage.GetPublicUrl(bucket, key).SignedURL
}
