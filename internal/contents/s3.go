package contents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"gallery-go/internal/gallery"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectVersions(ctx context.Context, in *s3.ListObjectVersionsInput, opts ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
}

// S3Options configures an S3 client built by NewS3Client.
type S3Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// NewS3Client builds an S3 client. A custom endpoint switches to path-style
// addressing for MinIO and similar servers. Retries are disabled so a
// failure is reported to the caller as it happens.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	if opts.Timeout > 0 {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(newHTTPClient(opts.Timeout)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Store implements gallery.ContentStore over an S3 bucket. Object keys
// are paths below an optional prefix, directories are common prefixes and
// hashes are ETags. Writes and deletes that present a hash are conditional
// on it. History comes from object versions when the bucket is versioned.
type S3Store struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store creates a store over bucket. prefix may be empty.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

// ListDirectory returns the objects and common prefixes directly below dir.
func (s *S3Store) ListDirectory(ctx context.Context, dir string) ([]gallery.Entry, error) {
	dir, err := cleanPath(dir)
	if err != nil {
		return nil, &gallery.TransportError{Message: err.Error()}
	}

	keyPrefix := s.prefix
	if dir != "" {
		keyPrefix = s.key(dir) + "/"
	}

	var entries []gallery.Entry
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(keyPrefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error(dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), keyPrefix), "/")
			if name == "" {
				continue
			}
			entries = append(entries, gallery.Entry{Name: name, Path: joinPath(dir, name), Type: gallery.EntryDir})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), keyPrefix)
			if name == "" {
				continue
			}
			p := joinPath(dir, name)
			entries = append(entries, gallery.Entry{
				Name: name,
				Path: p,
				Type: gallery.EntryFile,
				Hash: trimETag(aws.ToString(obj.ETag)),
				Size: aws.ToInt64(obj.Size),
				URL:  s.url(p),
			})
		}
	}

	if len(entries) == 0 && dir != "" {
		return nil, fmt.Errorf("directory %s: %w", dir, gallery.ErrNotFound)
	}
	return entries, nil
}

// ReadFile downloads the object at p.
func (s *S3Store) ReadFile(ctx context.Context, p string) (*gallery.FileContent, error) {
	p, err := cleanPath(p)
	if err != nil || p == "" {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("invalid path %q", p)}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return nil, mapS3Error(p, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("reading %s: %v", p, err)}
	}
	return &gallery.FileContent{Path: p, Content: data, Hash: trimETag(aws.ToString(out.ETag))}, nil
}

// WriteFile uploads content to p. A non-empty hash makes the write
// conditional on the current ETag.
func (s *S3Store) WriteFile(ctx context.Context, p string, content []byte, hash string, _ string) (string, error) {
	p, err := cleanPath(p)
	if err != nil || p == "" {
		return "", &gallery.TransportError{Message: fmt.Sprintf("invalid path %q", p)}
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   bytes.NewReader(content),
	}
	if hash != "" {
		in.IfMatch = aws.String(quoteETag(hash))
	}

	out, err := s.uploader.Upload(ctx, in)
	if err != nil {
		return "", mapS3Error(p, err)
	}
	return trimETag(aws.ToString(out.ETag)), nil
}

// DeleteFile deletes the object at p, conditional on hash.
func (s *S3Store) DeleteFile(ctx context.Context, p string, hash string, _ string) error {
	p, err := cleanPath(p)
	if err != nil || p == "" {
		return &gallery.TransportError{Message: fmt.Sprintf("invalid path %q", p)}
	}

	// S3 deletes are idempotent, so absence has to be checked first.
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	}); err != nil {
		return mapS3Error(p, err)
	}

	in := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	}
	if hash != "" {
		in.IfMatch = aws.String(quoteETag(hash))
	}
	if _, err := s.client.DeleteObject(ctx, in); err != nil {
		return mapS3Error(p, err)
	}
	return nil
}

// ListHistory returns the versions of p, newest first. On an unversioned
// bucket it falls back to the object's last-modified time.
func (s *S3Store) ListHistory(ctx context.Context, p string, limit int) ([]gallery.HistoryEntry, error) {
	p, err := cleanPath(p)
	if err != nil || p == "" {
		return nil, &gallery.TransportError{Message: fmt.Sprintf("invalid path %q", p)}
	}
	key := s.key(p)

	in := &s3.ListObjectVersionsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(key),
	}
	if limit > 0 {
		in.MaxKeys = aws.Int32(int32(limit))
	}
	out, err := s.client.ListObjectVersions(ctx, in)
	if err == nil {
		var entries []gallery.HistoryEntry
		for _, v := range out.Versions {
			if aws.ToString(v.Key) != key {
				continue
			}
			entries = append(entries, gallery.HistoryEntry{
				Hash: aws.ToString(v.VersionId),
				Time: aws.ToTime(v.LastModified),
			})
			if limit > 0 && len(entries) == limit {
				break
			}
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if errors.Is(mapS3Error(p, err), gallery.ErrNotFound) {
			return nil, nil
		}
		return nil, mapS3Error(p, err)
	}
	if limit == 0 {
		return nil, nil
	}
	return []gallery.HistoryEntry{{
		Hash: trimETag(aws.ToString(head.ETag)),
		Time: aws.ToTime(head.LastModified),
	}}, nil
}

// Verify checks that the bucket exists and is reachable with the
// configured credentials.
func (s *S3Store) Verify(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return mapS3Error(s.bucket, err)
	}
	return nil
}

func (s *S3Store) key(p string) string {
	return s.prefix + p
}

func (s *S3Store) url(p string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(p))
}

// mapS3Error translates S3 error codes to gallery errors.
func mapS3Error(p string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%s: %w", p, gallery.ErrNotFound)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return gallery.NewConflictError(p)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("%s: %s: %w", p, apiErr.ErrorMessage(), gallery.ErrUnauthorized)
		}
		return &gallery.TransportError{Message: fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())}
	}
	return &gallery.TransportError{Message: err.Error()}
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

func quoteETag(hash string) string {
	return `"` + hash + `"`
}

// Compile-time check that S3Store implements gallery.ContentStore
var _ gallery.ContentStore = (*S3Store)(nil)
