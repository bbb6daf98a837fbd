//go:build ignore

// generate_testdata.go creates synthetic datasets for local browsing and
// benchmarking.
// Usage: go run scripts/generate_testdata.go [output-dir]
//
// Creates, below output-dir (default tests/testdata):
//
//	small/   (200 projects, chunks of 50)
//	medium/  (5000 projects, chunks of 500, 2% cross-chunk duplicates)
//	large/   (40000 projects, chunks of 2000, 1% cross-chunk duplicates)
//
// Each directory is a dataset base: bk --base tests/testdata/small
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/bouwkansen/pkg/loader"
	"github.com/vanderheijden86/bouwkansen/pkg/testutil"
)

type datasetSpec struct {
	name       string
	projects   int
	chunkSize  int
	duplicates float64
}

var datasets = []datasetSpec{
	{"small", 200, 50, 0},
	{"medium", 5000, 500, 0.02},
	{"large", 40000, 2000, 0.01},
}

func main() {
	outputDir := "tests/testdata"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	for _, spec := range datasets {
		ds := testutil.New(testutil.GeneratorConfig{
			Seed:          42,
			Projects:      spec.projects,
			ChunkSize:     spec.chunkSize,
			DuplicateRate: spec.duplicates,
		}).Dataset()

		root := filepath.Join(outputDir, spec.name)
		if _, err := ds.WriteDir(root, loader.DefaultLayout()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", spec.name, err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s: %d projects in %d chunks\n", root, len(ds.Projects), len(ds.Chunks))
	}
}
