package publish

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GCS publishes objects into a Cloud Storage bucket.
type GCS struct {
	gcs    *storage.Client
	bucket string
	prefix string

	// ownClient is set when Close should close gcs.
	ownClient bool
}

var _ Publisher = (*GCS)(nil)

// NewGCS connects to Cloud Storage with application default credentials.
func NewGCS(ctx context.Context, bucket, prefix string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("while creating GCS client: %w", err)
	}
	return &GCS{gcs: client, bucket: bucket, prefix: prefix, ownClient: true}, nil
}

// NewGCSWithClient publishes through an existing client, which Close leaves
// open.
func NewGCSWithClient(client *storage.Client, bucket, prefix string) *GCS {
	return &GCS{gcs: client, bucket: bucket, prefix: prefix}
}

func (g *GCS) Publish(ctx context.Context, name string, data []byte, contentType string) error {
	tracer := otel.Tracer("glint/publish")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "GCS.Publish")
	defer span.End()

	objName := objectName(g.prefix, name)
	span.SetAttributes(
		attribute.String("bucket", g.bucket),
		attribute.String("object", objName),
		attribute.Int("bytes", len(data)),
	)

	w := g.gcs.Bucket(g.bucket).Object(objName).NewWriter(ctx)
	w.ContentType = contentType

	// Disable chunking.  This will expose more transient server errors to
	// calling code, but significantly reduces memory usage.
	w.ChunkSize = 0

	if _, err := w.Write(data); err != nil {
		// Closing would commit a partial object.
		w.CloseWithError(err)
		err = fmt.Errorf("while writing to object writer: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := w.Close(); err != nil {
		err = fmt.Errorf("while closing object writer: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (g *GCS) Close() error {
	if !g.ownClient {
		return nil
	}
	if err := g.gcs.Close(); err != nil {
		return fmt.Errorf("while closing GCS client: %w", err)
	}
	return nil
}
