package parsing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/hoferino/manda-platform/common"
)

// BlobStore downloads a document's stored blob to a local scratch path for
// the parser to read. Callers must invoke the returned cleanup func once
// parsing completes so the scratch file doesn't outlive the job.
type BlobStore interface {
	Download(ctx context.Context, blobReference string) (localPath string, cleanup func(), err error)
}

// S3Client is the subset of the AWS S3 API the blob store needs, narrowed
// for dependency injection and testing with mocks.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3BlobStore downloads deal documents from an S3-compatible bucket,
// streaming object bodies straight to a scratch file, generalized behind
// the BlobStore interface so stage handlers never import the AWS SDK
// directly.
type S3BlobStore struct {
	client    S3Client
	bucket    string
	scratchDir string
	log       *common.ContextLogger
}

// NewS3BlobStore constructs an S3-backed BlobStore. region/accessKey/
// secretKey/endpointURL follow a static-credentials plus custom endpoint
// resolution pattern, supporting MinIO and Hetzner-compatible backends;
// endpointURL may be empty to use AWS's default resolution.
func NewS3BlobStore(ctx context.Context, endpointURL, region, accessKey, secretKey, bucket, scratchDir string, log *common.ContextLogger) (*S3BlobStore, error) {
	var optFns []func(*config.LoadOptions) error
	optFns = append(optFns, config.WithRegion(region))
	if accessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	if endpointURL != "" {
		optFns = append(optFns, config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpointURL,
					SigningRegion:     region,
					HostnameImmutable: true,
				}, nil
			})))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load blob store aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpointURL != "" {
			o.UsePathStyle = true
		}
	})

	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir %s: %w", scratchDir, err)
	}

	return &S3BlobStore{client: client, bucket: bucket, scratchDir: scratchDir, log: log}, nil
}

// Download fetches blobReference (an object key within the configured
// bucket) to a uniquely named scratch file and returns a cleanup func that
// removes it.
func (s *S3BlobStore) Download(ctx context.Context, blobReference string) (string, func(), error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobReference),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", nil, fmt.Errorf("blob %s not found in bucket %s", blobReference, s.bucket)
		}
		return "", nil, fmt.Errorf("get blob %s from bucket %s: %w", blobReference, s.bucket, err)
	}
	defer result.Body.Close()

	localPath := filepath.Join(s.scratchDir, uuid.NewString()+"-"+filepath.Base(blobReference))
	file, err := os.Create(localPath)
	if err != nil {
		return "", nil, fmt.Errorf("create scratch file %s: %w", localPath, err)
	}

	if _, err := io.Copy(file, result.Body); err != nil {
		file.Close()
		os.Remove(localPath)
		return "", nil, fmt.Errorf("copy blob %s to scratch: %w", blobReference, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(localPath)
		return "", nil, fmt.Errorf("close scratch file %s: %w", localPath, err)
	}

	cleanup := func() {
		if err := os.Remove(localPath); err != nil && s.log != nil {
			s.log.WithError(err).WithField("path", localPath).Warn("failed to remove scratch file")
		}
	}
	return localPath, cleanup, nil
}

// HealthCheck verifies the configured bucket is reachable, used by the
// api package's /healthz endpoint.
func (s *S3BlobStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("blob store bucket %s unreachable: %w", s.bucket, err)
	}
	return nil
}
