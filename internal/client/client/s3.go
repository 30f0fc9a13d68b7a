package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type S3Config struct {
	Bucket    string `json:"bucket" env:"DIARY_S3_BUCKET"`
	Prefix    string `json:"prefix" env:"DIARY_S3_PREFIX"`
	Region    string `json:"region" env:"DIARY_S3_REGION"`
	Endpoint  string `json:"endpoint" env:"DIARY_S3_ENDPOINT"`
	AccessKey string `json:"access_key" env:"DIARY_S3_ACCESS_KEY"`
	SecretKey string `json:"secret_key" env:"DIARY_S3_SECRET_KEY"`
	PathStyle bool   `json:"path_style" env:"DIARY_S3_PATH_STYLE"`
}

// S3Client keeps one JSON object per entry under a key prefix. The object
// key is the remote id.
type S3Client struct {
	api    s3API
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3Client(api, cfg.Bucket, cfg.Prefix), nil
}

func newS3Client(api s3API, bucket, prefix string) *S3Client {
	return &S3Client{api: api, bucket: bucket, prefix: prefix, now: time.Now}
}

func (c *S3Client) Close() error { return nil }

func (c *S3Client) key(localID string) string {
	return c.prefix + localID + ".json"
}

func (c *S3Client) Push(ctx context.Context, e *models.Entry) (string, error) {
	const op = "s3.Push"
	if err := checkPushable(op, e); err != nil {
		return "", err
	}

	body, err := json.Marshal(newRecordDoc(e, c.now()))
	if err != nil {
		return "", NewValidationError(op, err)
	}

	key := e.RemoteID
	if key == "" {
		key = c.key(e.ID)
	}
	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", s3Error(op, err)
	}
	return key, nil
}

func (c *S3Client) Pull(ctx context.Context, f models.PullFilter) ([]models.RemoteRecord, error) {
	const op = "s3.Pull"

	// LastModified has second precision.
	since := f.Since.Truncate(time.Second)

	var out []models.RemoteRecord
	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, s3Error(op, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			lm := aws.ToTime(obj.LastModified)
			if !strings.HasSuffix(key, ".json") || (!f.Since.IsZero() && lm.Before(since)) {
				continue
			}
			rec, err := c.read(ctx, key, lm)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}

	sortByDateDesc(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (c *S3Client) read(ctx context.Context, key string, lastModified time.Time) (models.RemoteRecord, error) {
	const op = "s3.Pull"

	obj, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return models.RemoteRecord{}, s3Error(op, err)
	}
	defer obj.Body.Close()

	raw, err := io.ReadAll(obj.Body)
	if err != nil {
		return models.RemoteRecord{}, NewTransportError(op, err)
	}
	var doc recordDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.RemoteRecord{}, NewValidationError(op, fmt.Errorf("object %s: %w", key, err))
	}
	if doc.ModifiedAt.IsZero() {
		doc.ModifiedAt = lastModified
	}
	return doc.record(key), nil
}

// Verify checks that the bucket exists and the credentials can reach it.
func (c *S3Client) Verify(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	return s3Error("s3.Verify", err)
}

var (
	s3AuthCodes = map[string]bool{
		"AccessDenied":          true,
		"InvalidAccessKeyId":    true,
		"SignatureDoesNotMatch": true,
		"ExpiredToken":          true,
		"InvalidToken":          true,
	}
	s3ValidationCodes = map[string]bool{
		"NoSuchBucket":      true,
		"NoSuchKey":         true,
		"InvalidBucketName": true,
		"InvalidArgument":   true,
		"EntityTooLarge":    true,
		"KeyTooLongError":   true,
	}
)

func s3Error(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case s3AuthCodes[code]:
			return NewAuthError(op, err)
		case s3ValidationCodes[code]:
			return NewValidationError(op, err)
		}
	}

	var se interface{ HTTPStatusCode() int }
	if errors.As(err, &se) {
		switch st := se.HTTPStatusCode(); {
		case st == http.StatusUnauthorized || st == http.StatusForbidden:
			return NewAuthError(op, err)
		case st == http.StatusTooManyRequests || st == http.StatusRequestTimeout || st >= 500:
			return NewTransportError(op, err)
		case st >= 400:
			return NewValidationError(op, err)
		}
	}
	return NewTransportError(op, err)
}
