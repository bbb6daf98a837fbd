// Package datasource opens dataset objects (manifest and chunk files) from a
// configured base location: an HTTP(S) origin, a local directory, or an S3
// bucket prefix.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeHTTP fetches objects relative to an http(s) base URL
	SourceTypeHTTP SourceType = "http"
	// SourceTypeDir reads objects relative to a local directory
	SourceTypeDir SourceType = "dir"
	// SourceTypeS3 reads objects from an S3 (or compatible) bucket prefix
	SourceTypeS3 SourceType = "s3"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Source opens dataset objects by slash-separated key, e.g.
// "data/bouwprojecten-gemeenten/projects_metadata.json".
type Source interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Type() SourceType
	String() string
}

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Is matches ErrNotFound for 404 responses.
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}
