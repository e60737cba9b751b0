package storage

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
)

type ArchiveConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
	Prefix    string
}

// ObjectStore is the subset of the S3 client the archive needs.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Archive keeps a JSON copy of each resolved transcript in an
// S3-compatible bucket (AWS, DigitalOcean Spaces, MinIO).
type Archive struct {
	client ObjectStore
	bucket string
	prefix string
}

func NewArchive(ctx context.Context, cfg ArchiveConfig) (*Archive, error) {
	const op = "storage.NewArchive"

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Internal(op, err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewArchiveWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewArchiveWithClient(client ObjectStore, bucket, prefix string) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: prefix}
}

func (a *Archive) key(videoID string) string {
	return path.Join(a.prefix, videoID+".json")
}

func (a *Archive) Save(ctx context.Context, t *models.Transcript) error {
	const op = "Archive.Save"

	data, err := json.Marshal(t)
	if err != nil {
		return errors.Internal(op, err, "failed to marshal transcript")
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(t.VideoID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Internal(op, err, "failed to save to archive")
	}
	return nil
}

// Find returns a NotFound AppError when the object does not exist.
func (a *Archive) Find(ctx context.Context, videoID string) (*models.Transcript, error) {
	const op = "Archive.Find"

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(videoID)),
	})
	if err != nil {
		if isMissing(err) {
			return nil, errors.NotFound(op, err, "transcript not archived")
		}
		return nil, errors.Internal(op, err, "failed to get from archive")
	}
	defer out.Body.Close()

	var t models.Transcript
	if err := json.NewDecoder(out.Body).Decode(&t); err != nil {
		return nil, errors.Internal(op, err, "failed to decode archived transcript")
	}
	return &t, nil
}

func isMissing(err error) bool {
	var noKey *types.NoSuchKey
	if stderrors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	return stderrors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}
