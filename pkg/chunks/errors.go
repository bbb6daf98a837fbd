package chunks

import (
	"errors"
	"fmt"
)

var (
	// ErrChunkExhausted matches any chunk whose retry budget was used up.
	ErrChunkExhausted = errors.New("chunk fetch retries exhausted")

	// ErrManifestUnavailable means the chunk count is unknown, so loading
	// every chunk is not possible.
	ErrManifestUnavailable = errors.New("manifest unavailable")

	// ErrNoDataAvailable means the first chunk could not be loaded and the
	// session has nothing to show.
	ErrNoDataAvailable = errors.New("no project data available")

	// ErrChunkIndex is returned for an index outside 0..chunks-1.
	ErrChunkIndex = errors.New("chunk index out of range")

	// ErrClosed is returned once the coordinator stops scheduling loads.
	ErrClosed = errors.New("chunk coordinator closed")
)

// TransientFetchError describes one failed attempt. It is not terminal.
type TransientFetchError struct {
	Index   int
	Attempt int
	Err     error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("chunk %d attempt %d: %v", e.Index, e.Attempt, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// ChunkFetchFailed is returned once every attempt for a chunk has failed.
type ChunkFetchFailed struct {
	Index    int
	Attempts int
	Last     *TransientFetchError
}

func (e *ChunkFetchFailed) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("chunk %d failed after %d attempts", e.Index, e.Attempts)
	}
	return fmt.Sprintf("chunk %d failed after %d attempts: %v", e.Index, e.Attempts, e.Last.Err)
}

func (e *ChunkFetchFailed) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

// Is reports ErrChunkExhausted as a match.
func (e *ChunkFetchFailed) Is(target error) bool {
	return target == ErrChunkExhausted
}
