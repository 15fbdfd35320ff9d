// Package publish copies rendered files to their final destinations: a local
// directory, a Google Cloud Storage bucket, or an S3 bucket.
package publish

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type Publisher interface {
	// Publish stores data under name, replacing anything already there.
	Publish(ctx context.Context, name string, data []byte, contentType string) error

	Close() error
}

// Dir publishes into a local directory.
type Dir struct {
	Root string
}

var _ Publisher = (*Dir)(nil)

func (d *Dir) Publish(ctx context.Context, name string, data []byte, contentType string) error {
	target := filepath.Join(d.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("while creating directory for %s: %w", target, err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("while writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("while renaming %s into place: %w", tmp, err)
	}

	glog.V(1).Infof("Published %s (%d bytes)", target, len(data))
	return nil
}

func (d *Dir) Close() error {
	return nil
}

// ForURL builds a publisher for a destination:
//
//	gs://bucket/prefix
//	s3://bucket/prefix?region=us-east-1&endpoint=https://minio.local
//	file:///some/dir
//	/some/dir or some/dir
func ForURL(ctx context.Context, raw string) (Publisher, error) {
	if !strings.Contains(raw, "://") {
		if raw == "" {
			return nil, fmt.Errorf("empty publish destination")
		}
		return &Dir{Root: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("while parsing publish destination %q: %w", raw, err)
	}

	prefix := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return nil, fmt.Errorf("file URL %q names remote host %q", raw, u.Host)
		}
		if u.Path == "" {
			return nil, fmt.Errorf("file URL %q has no path", raw)
		}
		return &Dir{Root: u.Path}, nil
	case "gs":
		if u.Host == "" {
			return nil, fmt.Errorf("gs URL %q has no bucket", raw)
		}
		return NewGCS(ctx, u.Host, prefix)
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("s3 URL %q has no bucket", raw)
		}
		q := u.Query()
		return NewS3(u.Host, prefix, q.Get("region"), q.Get("endpoint"))
	default:
		return nil, fmt.Errorf("unsupported publish scheme %q", u.Scheme)
	}
}

// objectName joins an object prefix and a name with a slash.
func objectName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// maxConcurrentPublishes bounds the uploads All runs at once.
const maxConcurrentPublishes = 4

// All publishes the same file to every publisher concurrently.  It returns the
// first error encountered; the other uploads are cancelled.
func All(ctx context.Context, pubs []Publisher, name string, data []byte, contentType string) error {
	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxConcurrentPublishes)

	var acquireErr error
	for i, p := range pubs {
		if err := sem.Acquire(egCtx, 1); err != nil {
			acquireErr = fmt.Errorf("while acquiring concurrency limiter semaphore: %w", err)
			break
		}

		eg.Go(func() error {
			defer sem.Release(1)
			if err := p.Publish(egCtx, name, data, contentType); err != nil {
				return fmt.Errorf("while publishing %s to destination %d: %w", name, i, err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("while waiting for completion of errgroup: %w", err)
	}
	return acquireErr
}
