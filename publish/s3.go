package publish

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/golang/glog"
)

// UploadTimeout bounds a single S3 upload.
const UploadTimeout = 60 * time.Second

// S3 publishes objects into an S3 (or S3-compatible) bucket.
type S3 struct {
	client *s3.S3
	bucket string
	prefix string
}

var _ Publisher = (*S3)(nil)

// NewS3 builds an S3 publisher using the default AWS credential chain.  region
// and endpoint may be empty to use the SDK defaults; a custom endpoint switches
// to path-style addressing, which most S3-compatible servers need.
func NewS3(bucket, prefix, region, endpoint string) (*S3, error) {
	cfg := &aws.Config{}
	if region != "" {
		cfg.Region = aws.String(region)
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("while creating S3 session: %w", err)
	}

	return &S3{client: s3.New(sess), bucket: bucket, prefix: prefix}, nil
}

func (p *S3) Publish(ctx context.Context, name string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, UploadTimeout)
	defer cancel()

	key := objectName(p.prefix, name)
	_, err := p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("while uploading s3://%s/%s: %w", p.bucket, key, err)
	}

	glog.V(1).Infof("Uploaded s3://%s/%s (%d bytes)", p.bucket, key, len(data))
	return nil
}

func (p *S3) Close() error {
	return nil
}
