// Package s3util uploads local source files to the object-storage location
// handed out by the Dynamic Ingest upload-urls call. Each upload uses the
// temporary credentials scoped to that one object.
package s3util

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultRegion is where the ingest buckets live.
	DefaultRegion = "us-east-1"
	// MinPartSize is the minimum S3 multipart part size (5 MB).
	MinPartSize int64 = 5 * 1024 * 1024
	// DefaultPartSize is used when no part size is configured (16 MB).
	DefaultPartSize int64 = 16 * 1024 * 1024
	// maxParts is the S3 maximum number of parts in a multipart upload.
	maxParts int64 = 10000
)

// API is the subset of the S3 client used for uploads.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Target is the destination object and the temporary credentials that
// authorize writing it.
type Target struct {
	Bucket          string
	Key             string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Result describes a completed upload.
type Result struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ETag        string `json:"etag,omitempty"`
	Location    string `json:"location,omitempty"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Parts       int    `json:"parts"`
	Multipart   bool   `json:"multipart"`
	Duration    string `json:"duration"`
}

// Uploader pushes local files to S3. A fresh S3 client is built per upload
// from the target's credentials.
type Uploader struct {
	region   string
	partSize int64
	newAPI   func(Target) API
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithPartSize sets the multipart part size. Files larger than one part are
// uploaded in parts; values below MinPartSize are raised to it.
func WithPartSize(n int64) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.partSize = n
		}
	}
}

// WithAPIFactory replaces the S3 client constructor.
func WithAPIFactory(f func(Target) API) UploaderOption {
	return func(u *Uploader) { u.newAPI = f }
}

// NewUploader creates an uploader for region (DefaultRegion when empty).
func NewUploader(region string, opts ...UploaderOption) *Uploader {
	if region == "" {
		region = DefaultRegion
	}
	u := &Uploader{region: region, partSize: DefaultPartSize}
	u.newAPI = u.defaultAPI
	for _, opt := range opts {
		opt(u)
	}
	if u.partSize < MinPartSize {
		u.partSize = MinPartSize
	}
	return u
}

func (u *Uploader) defaultAPI(t Target) API {
	return s3.New(s3.Options{
		Region: u.region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(t.AccessKeyID, t.SecretAccessKey, t.SessionToken),
		),
	})
}

// Upload sends the file at path to target. Small files go up in a single
// PutObject; larger ones use a multipart upload which is aborted on failure.
func (u *Uploader) Upload(ctx context.Context, target Target, path, contentType string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	log.Ctx(ctx).Debug().
		Str("bucket", target.Bucket).
		Str("key", target.Key).
		Str("path", path).
		Int64("size", size).
		Msg("Uploading file to S3")

	api := u.newAPI(target)
	start := time.Now()
	var result *Result
	if size > u.partSize {
		result, err = u.multipart(ctx, api, target, f, size, contentType)
	} else {
		result, err = u.single(ctx, api, target, f, size, contentType)
	}
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start).String()

	log.Ctx(ctx).Info().
		Str("key", target.Key).
		Int64("size", size).
		Int("parts", result.Parts).
		Msg("File uploaded to S3")
	return result, nil
}

func (u *Uploader) single(ctx context.Context, api API, t Target, f *os.File, size int64, contentType string) (*Result, error) {
	out, err := api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &t.Bucket,
		Key:           &t.Key,
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   &contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 PutObject: %w", err)
	}
	return &Result{
		Bucket:      t.Bucket,
		Key:         t.Key,
		ETag:        aws.ToString(out.ETag),
		ContentType: contentType,
		Size:        size,
		Parts:       1,
	}, nil
}

func (u *Uploader) multipart(ctx context.Context, api API, t Target, f *os.File, size int64, contentType string) (*Result, error) {
	partSize := u.partSize
	if (size+partSize-1)/partSize > maxParts {
		partSize = (size + maxParts - 1) / maxParts
	}

	created, err := api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      &t.Bucket,
		Key:         &t.Key,
		ContentType: &contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 CreateMultipartUpload: %w", err)
	}
	uploadID := aws.ToString(created.UploadId)

	parts, err := uploadParts(ctx, api, t, uploadID, f, size, partSize)
	if err != nil {
		abortUpload(ctx, api, t, uploadID)
		return nil, err
	}

	done, err := api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          &t.Bucket,
		Key:             &t.Key,
		UploadId:        &uploadID,
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		abortUpload(ctx, api, t, uploadID)
		return nil, fmt.Errorf("S3 CompleteMultipartUpload: %w", err)
	}

	return &Result{
		Bucket:      t.Bucket,
		Key:         t.Key,
		ETag:        aws.ToString(done.ETag),
		Location:    aws.ToString(done.Location),
		ContentType: contentType,
		Size:        size,
		Parts:       len(parts),
		Multipart:   true,
	}, nil
}

func uploadParts(ctx context.Context, api API, t Target, uploadID string, r io.ReaderAt, size, partSize int64) ([]s3types.CompletedPart, error) {
	var parts []s3types.CompletedPart
	for offset, n := int64(0), int32(1); offset < size; offset, n = offset+partSize, n+1 {
		length := min(partSize, size-offset)
		out, err := api.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        &t.Bucket,
			Key:           &t.Key,
			UploadId:      &uploadID,
			PartNumber:    aws.Int32(n),
			Body:          io.NewSectionReader(r, offset, length),
			ContentLength: aws.Int64(length),
		})
		if err != nil {
			return nil, fmt.Errorf("S3 UploadPart %d: %w", n, err)
		}
		parts = append(parts, s3types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(n)})
		log.Ctx(ctx).Trace().Int32("partNumber", n).Int64("length", length).Msg("Part uploaded")
	}
	return parts, nil
}

// abortUpload releases the parts of a failed multipart upload. It runs even
// when ctx is already cancelled.
func abortUpload(ctx context.Context, api API, t Target, uploadID string) {
	_, err := api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   &t.Bucket,
		Key:      &t.Key,
		UploadId: &uploadID,
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", t.Key).Str("uploadId", uploadID).Msg("Failed to abort multipart upload")
	}
}
