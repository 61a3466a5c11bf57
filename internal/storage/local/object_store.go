package local

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scrypster/keepsake/pkg/types"
)

// ObjectStore implements storage.ObjectStore on the local filesystem.
// Each bucket is a directory under the media root; public URLs point at
// the web server's /media/ mount.
type ObjectStore struct {
	root    string
	baseURL string
}

// NewObjectStore creates a filesystem object store rooted at root.
// baseURL is the externally visible server address, e.g.
// "http://127.0.0.1:6464".
func NewObjectStore(root, baseURL string) *ObjectStore {
	return &ObjectStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// MediaRoot returns the directory the web server should mount at /media/.
func (o *ObjectStore) MediaRoot() string { return o.root }

// EnsureBucket creates the bucket directory. Directory-backed buckets are
// always "public": the server serves the whole media root.
func (o *ObjectStore) EnsureBucket(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &types.ProvisionError{Bucket: name, Err: err}
	}
	if err := os.MkdirAll(filepath.Join(o.root, name), 0o755); err != nil {
		return &types.ProvisionError{Bucket: name, Err: err}
	}
	return nil
}

// ListObjects returns the bucket contents, newest first by modification time.
func (o *ObjectStore) ListObjects(ctx context.Context, bucket string) ([]types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(o.root, bucket))
	if err != nil {
		if os.IsNotExist(err) {
			// Missing bucket reads as empty, mirroring the remote backend
			// after a failed provision.
			return nil, nil
		}
		return nil, fmt.Errorf("listing bucket %q: %w", bucket, err)
	}

	objects := make([]types.ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		objects = append(objects, types.ObjectInfo{
			Name:      entry.Name(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].CreatedAt.After(objects[j].CreatedAt)
	})
	return objects, nil
}

// Upload writes an object into the bucket directory.
func (o *ObjectStore) Upload(ctx context.Context, bucket, key string, data io.Reader, contentType string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(o.root, bucket, filepath.Base(key))
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("object %q already exists", key)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		os.Remove(path)
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the /media/ address for an object key.
func (o *ObjectStore) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/media/%s/%s", o.baseURL, url.PathEscape(bucket), url.PathEscape(key))
}
