// Package objectstore provides the S3-compatible blob sink used by the
// Upload and Validate workers: HEAD-before-PUT dedup for the main
// snapshot blob, unconditional overwrite for sidecars, and multipart
// upload for large blobs. Grounded on the original implementation's
// r2_upload_artifact (upload_snapshots.py), translated from boto3's
// TransferConfig onto aws-sdk-go-v2's s3 manager.Uploader.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/defaults"
)

// Config holds the connection parameters for the R2-compatible object
// store.
type Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Client wraps an S3-compatible client configured for R2: adaptive retry
// (up to ObjectStoreMaxRetryAttempts), and the connect/read timeouts from
// §5 of SPEC_FULL.md.
type Client struct {
	s3     *s3.Client
	upload *manager.Uploader
}

// NewClient builds a Client against an R2-compatible endpoint.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	httpClient := newHTTPClient()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRetryMode(aws.RetryModeAdaptive),
		awsconfig.WithRetryMaxAttempts(defaults.ObjectStoreMaxRetryAttempts),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
		o.UsePathStyle = true
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = defaults.ObjectStoreMultipartChunkSize
		u.Concurrency = defaults.ObjectStoreMaxUploadConcurrency
	})

	return &Client{s3: s3Client, upload: uploader}, nil
}

// Exists issues a HEAD request and reports whether the object is present.
// A 404/NotFound response is treated as "does not exist, no error" — the
// normal case that triggers a put (§4.4 of SPEC_FULL.md).
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}

	var notFound *smithyhttp.ResponseError
	if errors.As(err, &notFound) && notFound.HTTPStatusCode() == 404 {
		return false, nil
	}
	// Fall back to the SDK's typed not-found errors (s3.NotFound,
	// s3.NoSuchKey) for responses that don't surface as a 404
	// smithyhttp.ResponseError.
	if isNotFoundErr(err) {
		return false, nil
	}
	return false, fmt.Errorf("objectstore: head %s/%s: %w", bucket, key, err)
}

func isNotFoundErr(err error) bool {
	var nf *s3.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *s3.NoSuchKey
	return errors.As(err, &nsk)
}

// PutSidecar uploads a small sidecar object (sha256sum, metadata.json),
// always overwriting any existing object at key.
func (c *Client) PutSidecar(ctx context.Context, bucket, key string, body io.Reader) error {
	_, err := c.upload.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("objectstore: put sidecar %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PutBlobDeduped uploads the main snapshot blob using multipart upload,
// skipping the put entirely if the object already exists — the dedup
// behavior required by invariant 1 and scenario S4 of SPEC_FULL.md.
// skipped is true when the object was already present.
func (c *Client) PutBlobDeduped(ctx context.Context, bucket, key string, body io.Reader) (skipped bool, err error) {
	exists, err := c.Exists(ctx, bucket, key)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	_, err = c.upload.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return false, fmt.Errorf("objectstore: put blob %s/%s: %w", bucket, key, err)
	}
	return false, nil
}

// newHTTPClient builds the *http.Client used for every S3 call, mirroring
// the boto3 Config(connect_timeout=60, read_timeout=300, ...) pair from
// the original implementation.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: defaults.ObjectStoreConnectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: defaults.ObjectStoreReadTimeout,
		MaxIdleConnsPerHost:   defaults.ObjectStoreMaxUploadConcurrency,
	}
	return &http.Client{Transport: transport}
}
