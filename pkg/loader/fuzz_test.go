package loader_test

import (
	"bytes"
	"testing"

	"github.com/vanderheijden86/bouwkansen/pkg/loader"
)

// FuzzParseChunk checks that arbitrary payloads never panic and that every
// returned project passes validation.
//
// Run with: go test -fuzz=FuzzParseChunk -fuzztime=1m ./pkg/loader/...
func FuzzParseChunk(f *testing.F) {
	seeds := []string{
		`[]`,
		`[{"municipality":"Gent","nis_code":"44021","ac_code":"A1"}]`,
		`[{"municipality":"Gent","nis_code":"44021","ac_code":"A1","yearly_amounts":{"2026":1,"2031":2}}]`,
		`[{"yearly_amounts":{"abc":1}}]`,
		`[null, 1, "x", {}]`,
		`{"not":"array"}`,
		"\xEF\xBB\xBF[]",
		``,
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		res, err := loader.ParseChunkWithOptions(bytes.NewReader(data), loader.ParseOptions{
			WarningHandler: func(string) {},
		})
		if err != nil {
			return
		}
		for i := range res.Projects {
			if verr := res.Projects[i].Validate(); verr != nil {
				t.Fatalf("returned invalid project %d: %v", i, verr)
			}
		}
	})
}

func FuzzParseManifest(f *testing.F) {
	f.Add([]byte(`{"chunks":3,"total_projects":10}`))
	f.Add([]byte(`{"categories":{"a":{}}}`))
	f.Add([]byte(`nope`))

	f.Fuzz(func(t *testing.T, data []byte) {
		m, err := loader.ParseManifest(bytes.NewReader(data))
		if err != nil {
			return
		}
		if m.Chunks < 0 {
			t.Fatalf("accepted manifest with negative chunk count")
		}
	})
}
