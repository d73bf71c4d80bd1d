package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// multipartThreshold is the payload size above which uploads are chunked.
const (
	multipartThreshold = 8 * 1024 * 1024
	multipartPartSize  = 8 * 1024 * 1024
)

// R2Storage implements Storage for Cloudflare R2 (S3-compatible).
type R2Storage struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// R2Config holds R2 connection configuration
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	PublicURL       string // e.g. https://cdn.innkeep.io
}

// NewR2Storage creates a new Cloudflare R2 storage instance
func NewR2Storage(cfg R2Config) (*R2Storage, error) {
	// R2 endpoint format: https://<account_id>.r2.cloudflarestorage.com
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: endpoint,
		}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.AccessKeySecret,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://pub-%s.r2.dev", cfg.AccountID)
	}

	return &R2Storage{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    cfg.BucketName,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Owns reports whether the URL points into this bucket's public domain.
func (s *R2Storage) Owns(url string) bool {
	return strings.HasPrefix(url, s.publicURL+"/")
}

// URL returns the public URL for a key
func (s *R2Storage) URL(key string) string {
	return fmt.Sprintf("%s/%s", s.publicURL, key)
}

func (s *R2Storage) keyFromURL(url string) (string, error) {
	if !s.Owns(url) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(url, s.publicURL+"/")
	if key == "" {
		return "", ErrForeignURL
	}
	return key, nil
}

// Put stores an object, chunking payloads above the multipart threshold.
func (s *R2Storage) Put(ctx context.Context, key string, reader io.Reader, opts PutOptions) (*PutResult, error) {
	// S3 SDK needs content length, so buffer the payload
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	if len(data) > multipartThreshold {
		if err := s.putMultipart(ctx, key, data, opts); err != nil {
			return nil, err
		}
		return &PutResult{URL: s.URL(key), Size: int64(len(data))}, nil
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(opts.ContentType),
	}
	if opts.CacheMaxAge > 0 {
		input.CacheControl = aws.String(fmt.Sprintf("public, max-age=%d, immutable", opts.CacheMaxAge))
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to upload to R2: %w", err)
	}

	return &PutResult{URL: s.URL(key), Size: int64(len(data))}, nil
}

func (s *R2Storage) putMultipart(ctx context.Context, key string, data []byte, opts PutOptions) error {
	createInput := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(opts.ContentType),
	}
	if opts.CacheMaxAge > 0 {
		createInput.CacheControl = aws.String(fmt.Sprintf("public, max-age=%d, immutable", opts.CacheMaxAge))
	}

	created, err := s.client.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return fmt.Errorf("failed to start multipart upload: %w", err)
	}

	var completed []types.CompletedPart
	partNumber := int32(1)
	for offset := 0; offset < len(data); offset += multipartPartSize {
		end := offset + multipartPartSize
		if end > len(data) {
			end = len(data)
		}

		part, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(key),
			UploadId:   created.UploadId,
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(data[offset:end]),
		})
		if err != nil {
			_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(s.bucket),
				Key:      aws.String(key),
				UploadId: created.UploadId,
			})
			return fmt.Errorf("failed to upload part %d: %w", partNumber, err)
		}

		completed = append(completed, types.CompletedPart{
			ETag:       part.ETag,
			PartNumber: aws.Int32(partNumber),
		})
		partNumber++
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        created.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}
	return nil
}

// Get retrieves an object by URL
func (s *R2Storage) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	key, err := s.keyFromURL(url)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get from R2: %w", err)
	}

	return result.Body, nil
}

// Head returns object metadata by URL
func (s *R2Storage) Head(ctx context.Context, url string) (*ObjectInfo, error) {
	key, err := s.keyFromURL(url)
	if err != nil {
		return nil, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to head R2 object: %w", err)
	}

	info := &ObjectInfo{Key: key, URL: url}
	if result.ContentType != nil {
		info.ContentType = *result.ContentType
	}
	if result.ContentLength != nil {
		info.Size = *result.ContentLength
	}
	if result.LastModified != nil {
		info.LastModified = *result.LastModified
	}
	return info, nil
}

// Delete removes an object by URL. Reports ErrNotFound for absent objects so
// batch deletes can surface idempotent outcomes.
func (s *R2Storage) Delete(ctx context.Context, url string) error {
	key, err := s.keyFromURL(url)
	if err != nil {
		return err
	}

	// S3 deletes are silently idempotent; probe first to report not-found
	if _, err := s.Head(ctx, url); err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete from R2: %w", err)
	}
	return nil
}

// Copy duplicates an object under a new key
func (s *R2Storage) Copy(ctx context.Context, fromURL, toKey string) (*PutResult, error) {
	fromKey, err := s.keyFromURL(fromURL)
	if err != nil {
		return nil, err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(toKey),
		CopySource: aws.String(s.bucket + "/" + fromKey),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to copy R2 object: %w", err)
	}

	info, err := s.Head(ctx, s.URL(toKey))
	if err != nil {
		return nil, err
	}
	return &PutResult{URL: info.URL, Size: info.Size}, nil
}

// List returns one page of keys under a prefix
func (s *R2Storage) List(ctx context.Context, prefix, cursor string, limit int) (*ListResult, error) {
	if limit <= 0 {
		limit = 1000
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(cursor)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list R2 objects: %w", err)
	}

	result := &ListResult{}
	for _, obj := range out.Contents {
		item := ObjectInfo{}
		if obj.Key != nil {
			item.Key = *obj.Key
			item.URL = s.URL(*obj.Key)
		}
		if obj.Size != nil {
			item.Size = *obj.Size
		}
		if obj.LastModified != nil {
			item.LastModified = *obj.LastModified
		}
		result.Items = append(result.Items, item)
	}
	if out.IsTruncated != nil && *out.IsTruncated {
		result.HasMore = true
		if out.NextContinuationToken != nil {
			result.Cursor = *out.NextContinuationToken
		}
	}
	return result, nil
}

func isNotFoundErr(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
