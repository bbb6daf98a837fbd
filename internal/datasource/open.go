package datasource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Options configures Open.
type Options struct {
	// HTTPClient is used for http(s) bases. Nil uses http.DefaultClient.
	HTTPClient *http.Client
	// S3 supplies credentials and endpoint settings for s3:// bases.
	S3 S3Config
}

// DetectType classifies a base location.
func DetectType(base string) SourceType {
	switch {
	case strings.HasPrefix(base, "http://"), strings.HasPrefix(base, "https://"):
		return SourceTypeHTTP
	case strings.HasPrefix(base, "s3://"):
		return SourceTypeS3
	default:
		return SourceTypeDir
	}
}

// Open returns the Source for base, dispatching on its scheme.
func Open(ctx context.Context, base string, opts Options) (Source, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("empty dataset base")
	}
	switch DetectType(base) {
	case SourceTypeHTTP:
		return NewHTTPSource(base, opts.HTTPClient)
	case SourceTypeS3:
		bucket, prefix, err := ParseS3URL(base)
		if err != nil {
			return nil, err
		}
		cfg := S3ConfigFromEnv(opts.S3)
		cfg.Bucket = bucket
		if prefix != "" {
			cfg.Prefix = prefix
		}
		return NewS3Source(ctx, cfg)
	default:
		return NewDirSource(strings.TrimPrefix(base, "file://"))
	}
}
