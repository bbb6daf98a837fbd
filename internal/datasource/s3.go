package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds explicit construction parameters. Empty fields fall back to
// the environment and the default AWS credential chain.
type S3Config struct {
	Bucket          string `yaml:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"` // optional, e.g. MinIO
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	PathStyle       bool   `yaml:"path_style,omitempty"`

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client `yaml:"-"`
}

// Environment variables consulted by S3ConfigFromEnv:
//
//	BK_S3_REGION=<region> (default eu-west-1)
//	BK_S3_ENDPOINT=<url> (optional, for MinIO)
//	BK_S3_PATH_STYLE=true|false
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY (optional)

// S3ConfigFromEnv overlays environment settings on cfg.
func S3ConfigFromEnv(cfg S3Config) S3Config {
	if v := os.Getenv("BK_S3_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("BK_S3_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("BK_S3_PATH_STYLE"); v != "" {
		cfg.PathStyle = strings.EqualFold(v, "true")
	}
	return cfg
}

// S3Source reads objects below a bucket prefix.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source builds an S3 client from cfg.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "eu-west-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	return &S3Source{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// ParseS3URL splits s3://bucket/prefix into its parts.
func ParseS3URL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url %q: %w", raw, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: want s3://bucket/prefix", raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// ObjectKey returns the bucket key for a dataset key.
func (s *S3Source) ObjectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Open fetches the object body for key.
func (s *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey := s.ObjectKey(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &objKey})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, objKey, ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get %s: %w", objKey, err)
	}
	return out.Body, nil
}

func (s *S3Source) Type() SourceType { return SourceTypeS3 }

func (s *S3Source) String() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}
