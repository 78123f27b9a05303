package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/model"
)

// defaultRegion is used when neither the environment nor the shared config
// names one. S3-compatible stores generally ignore it.
const defaultRegion = "us-east-1"

// objectAPI is the subset of *s3.Client the adapter uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores the snapshot as one object in a bucket. The revision is the
// object ETag; writes are conditional on it.
type S3 struct {
	client objectAPI
	bucket string
	key    string
	logger *zap.Logger
}

var _ Adapter = (*S3)(nil)

// NewS3 builds an S3 adapter. The token is "ACCESS_KEY_ID:SECRET"; an empty
// token uses the default AWS credential chain. Endpoint selects an
// S3-compatible service with path-style addressing.
func NewS3(ctx context.Context, cfg model.SyncConfig, opts Options) (*S3, error) {
	opts = opts.withDefaults()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(opts.HTTPClient),
	}
	if cfg.Token != "" {
		keyID, secret, ok := strings.Cut(cfg.Token, ":")
		if !ok {
			return nil, fmt.Errorf("s3 token must be ACCESS_KEY_ID:SECRET")
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return newS3WithClient(client, cfg.Repository, cfg.Path, opts.Logger), nil
}

func newS3WithClient(client objectAPI, bucket, key string, logger *zap.Logger) *S3 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{client: client, bucket: bucket, key: strings.TrimLeft(key, "/"), logger: logger}
}

func (a *S3) Fetch(ctx context.Context) (Snapshot, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) || (httpStatus(err) == http.StatusNotFound && apiCode(err) != "NoSuchBucket") {
			a.logger.Debug("remote object absent", zap.String("bucket", a.bucket), zap.String("key", a.key))
			return Snapshot{}, nil
		}
		return Snapshot{}, classifyS3(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	content, err := decodeContent(data)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Content: content, Revision: aws.ToString(out.ETag)}, nil
}

func (a *S3) Write(ctx context.Context, content model.Dataset, expectedRevision string) (string, error) {
	data, err := content.Encode()
	if err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if expectedRevision == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(expectedRevision)
	}

	out, err := a.client.PutObject(ctx, input)
	if err != nil {
		return "", classifyS3(err)
	}
	return aws.ToString(out.ETag), nil
}

// classifyS3 maps an SDK error onto the adapter sentinels. Errors without an
// HTTP response are transport failures.
func classifyS3(err error) error {
	switch apiCode(err) {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	status := httpStatus(err)
	if status == 0 {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", classifyStatus(status), err)
}

func apiCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func httpStatus(err error) int {
	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		return withStatus.HTTPStatusCode()
	}
	return 0
}
