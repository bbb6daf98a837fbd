// Package loader decodes the manifest and chunk payloads of the project
// dataset into typed records.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

// Default file stems of the published dataset.
const (
	DefaultDataset      = "bouwprojecten-gemeenten"
	DefaultManifestName = "projects"
	DefaultChunkName    = "projects_2026"
)

// DefaultMaxPayloadSize bounds a single manifest or chunk payload (64MB).
const DefaultMaxPayloadSize = 64 << 20

// ErrPayloadTooLarge is returned when a payload exceeds ParseOptions.MaxSize.
var ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

// Layout resolves dataset-relative keys for the manifest and chunks.
type Layout struct {
	Dataset      string
	ManifestName string
	ChunkName    string
}

// DefaultLayout returns the layout of the published dataset.
func DefaultLayout() Layout {
	return Layout{
		Dataset:      DefaultDataset,
		ManifestName: DefaultManifestName,
		ChunkName:    DefaultChunkName,
	}
}

func (l Layout) withDefaults() Layout {
	if l.Dataset == "" {
		l.Dataset = DefaultDataset
	}
	if l.ManifestName == "" {
		l.ManifestName = DefaultManifestName
	}
	if l.ChunkName == "" {
		l.ChunkName = DefaultChunkName
	}
	return l
}

// ManifestKey returns data/<dataset>/<manifest>_metadata.json.
func (l Layout) ManifestKey() string {
	l = l.withDefaults()
	return path.Join("data", l.Dataset, l.ManifestName+"_metadata.json")
}

// ChunkKey returns data/<dataset>/<chunk>_chunk_<index>.json.
func (l Layout) ChunkKey(index int) string {
	l = l.withDefaults()
	return path.Join("data", l.Dataset, l.ChunkName+"_chunk_"+strconv.Itoa(index)+".json")
}

// ParseOptions configures chunk decoding.
type ParseOptions struct {
	// WarningHandler is called for every quarantined row.
	// If nil, warnings are printed to os.Stderr (suppressed when BK_ROBOT=1).
	WarningHandler func(string)

	// MaxSize bounds the payload in bytes. If 0, uses DefaultMaxPayloadSize.
	MaxSize int64

	// ProjectFilter optionally drops decoded projects. Return true to keep.
	ProjectFilter func(*model.Project) bool
}

func (o ParseOptions) warn() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv("BK_ROBOT") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// ChunkResult is a decoded chunk.
type ChunkResult struct {
	Projects []model.Project
	// Skipped counts rows that failed to decode or validate.
	Skipped int
}

// ParseChunk decodes a chunk payload: a JSON array of project objects.
// A payload that is not an array is an error; individual rows that fail to
// decode or validate are skipped with a warning.
func ParseChunk(r io.Reader) ([]model.Project, error) {
	res, err := ParseChunkWithOptions(r, ParseOptions{})
	return res.Projects, err
}

// ParseChunkWithOptions is ParseChunk with custom options.
func ParseChunkWithOptions(r io.Reader, opts ParseOptions) (ChunkResult, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	data, err := readPayload(r, buf, opts.MaxSize)
	if err != nil {
		return ChunkResult{}, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return ChunkResult{}, fmt.Errorf("decode chunk envelope: %w", err)
	}

	warn := opts.warn()
	res := ChunkResult{Projects: make([]model.Project, 0, len(rows))}
	for i, row := range rows {
		var p model.Project
		if err := json.Unmarshal(row, &p); err != nil {
			warn(fmt.Sprintf("skipping malformed project at row %d: %v", i, err))
			res.Skipped++
			continue
		}
		if err := p.Validate(); err != nil {
			warn(fmt.Sprintf("skipping invalid project at row %d: %v", i, err))
			res.Skipped++
			continue
		}
		if opts.ProjectFilter != nil && !opts.ProjectFilter(&p) {
			continue
		}
		res.Projects = append(res.Projects, p)
	}
	return res, nil
}

// ParseManifest decodes and validates the dataset manifest.
func ParseManifest(r io.Reader) (*model.Manifest, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	data, err := readPayload(r, buf, 0)
	if err != nil {
		return nil, err
	}
	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	for id, c := range m.Categories {
		if c.ID == "" {
			c.ID = id
			m.Categories[id] = c
		}
	}
	return &m, nil
}

// LoadChunkFile reads one chunk from disk.
func LoadChunkFile(p string) ([]model.Project, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk file: %w", err)
	}
	defer f.Close()
	return ParseChunk(f)
}

// LoadManifestFile reads a manifest from disk.
func LoadManifestFile(p string) (*model.Manifest, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest file: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}

func readPayload(r io.Reader, buf *bytes.Buffer, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxPayloadSize
	}
	n, err := buf.ReadFrom(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if n > maxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrPayloadTooLarge, maxSize)
	}
	// The decoder may retain slices of the input, so hand it a copy and keep
	// the pooled buffer reusable.
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return stripBOM(data), nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
