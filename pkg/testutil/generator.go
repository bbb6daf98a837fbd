// Package testutil provides deterministic dataset fixtures: project records,
// manifests and on-disk chunk layouts for tests and demos.
package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/bouwkansen/pkg/loader"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

// Municipality is a name and NIS code pair used by the generator.
type Municipality struct {
	Name string
	NIS  string
}

// DefaultMunicipalities is a fixed sample of Flemish municipalities.
var DefaultMunicipalities = []Municipality{
	{"Antwerpen", "11002"},
	{"Mechelen", "12025"},
	{"Leuven", "24062"},
	{"Brugge", "31005"},
	{"Kortrijk", "34022"},
	{"Oostende", "35013"},
	{"Aalst", "41002"},
	{"Gent", "44021"},
	{"Genk", "71016"},
	{"Hasselt", "71072"},
}

// CategoryLabels lists the category ids and labels of the dataset.
var CategoryLabels = map[string]string{
	"wegenbouw":            "Wegenbouw & Infrastructuur",
	"riolering":            "Riolering & Waterbeheer",
	"scholenbouw":          "Scholenbouw",
	"sport":                "Sportinfrastructuur",
	"cultuur":              "Culturele Infrastructuur",
	"gebouwen":             "Administratieve & Publieke Gebouwen",
	"verlichting":          "Straatverlichting & Signalisatie",
	"groen":                "Groene Ruimte & Parks",
	"ruimtelijke-ordening": "Ruimtelijke Ordening & Gebiedsontwikkeling",
	"zorg":                 "Sociale Infrastructuur & Zorg",
	"overige":              "Overige",
}

var projectNouns = []string{
	"Heraanleg", "Renovatie", "Nieuwbouw", "Uitbreiding", "Onderhoud", "Vernieuwing",
}

var projectObjects = map[string][]string{
	"wegenbouw":            {"fietspad", "kruispunt", "voetpaden", "wegdek"},
	"riolering":            {"riolering", "gescheiden stelsel", "waterbuffer"},
	"scholenbouw":          {"basisschool", "kleuterschool", "schoolgebouw"},
	"sport":                {"sporthal", "zwembad", "voetbalterrein"},
	"cultuur":              {"bibliotheek", "cultuurcentrum", "academie"},
	"gebouwen":             {"administratief centrum", "stadhuis", "werkplaats"},
	"verlichting":          {"openbare verlichting", "signalisatie"},
	"groen":                {"stadspark", "speeltuin", "begraafplaats"},
	"ruimtelijke-ordening": {"dorpskern", "stationsomgeving"},
	"zorg":                 {"woonzorgcentrum", "kinderopvang", "dienstencentrum"},
	"overige":              {"ICT-infrastructuur", "wagenpark"},
}

// GeneratorConfig controls dataset generation.
type GeneratorConfig struct {
	Seed           int64          // Random seed for determinism (0 = 42)
	Projects       int            // Number of distinct projects
	ChunkSize      int            // Projects per chunk (0 = 2000)
	Municipalities []Municipality // Nil uses DefaultMunicipalities
	// DuplicateRate re-emits this fraction of projects in a later chunk to
	// exercise cross-chunk de-duplication.
	DuplicateRate float64
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{Seed: 42, Projects: 50, ChunkSize: 10}
}

// Dataset is a generated manifest plus its chunks.
type Dataset struct {
	Manifest model.Manifest
	Chunks   [][]model.Project
	// Projects holds each distinct project once.
	Projects []model.Project
}

// Generator creates dataset fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 2000
	}
	if len(cfg.Municipalities) == 0 {
		cfg.Municipalities = DefaultMunicipalities
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

func sortedCategoryIDs() []string {
	ids := make([]string, 0, len(CategoryLabels))
	for id := range CategoryLabels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Project returns the i-th synthetic project.
func (g *Generator) Project(i int) model.Project {
	ids := sortedCategoryIDs()
	m := g.cfg.Municipalities[i%len(g.cfg.Municipalities)]

	cat := ids[g.rng.Intn(len(ids))]
	cats := []string{cat}
	if cat != model.OtherCategory && g.rng.Intn(4) == 0 {
		second := ids[g.rng.Intn(len(ids))]
		if second != cat && second != model.OtherCategory {
			cats = append(cats, second)
		}
	}

	objects := projectObjects[cat]
	title := fmt.Sprintf("%s %s", projectNouns[g.rng.Intn(len(projectNouns))], objects[g.rng.Intn(len(objects))])

	var yearly model.YearAmounts
	total := 0.0
	for y := range yearly {
		if g.rng.Intn(3) == 0 {
			continue
		}
		v := math.Round(g.rng.Float64()*500_000*100) / 100
		yearly[y] = v
		total += v
	}
	total = math.Round(total*100) / 100

	population := 20_000 + float64(i%len(g.cfg.Municipalities))*15_000
	var perCapita model.YearAmounts
	for y, v := range yearly {
		perCapita[y] = math.Round(v/population*100) / 100
	}

	bd := i % 5
	ap := i % 7
	return model.Project{
		Municipality:    m.Name,
		NISCode:         m.NIS,
		BDCode:          fmt.Sprintf("BD%03d", bd),
		BDShort:         fmt.Sprintf("Beleidsdoelstelling %d", bd),
		BDLong:          fmt.Sprintf("Een aantrekkelijke gemeente, doelstelling %d", bd),
		APCode:          fmt.Sprintf("AP%03d", ap),
		APShort:         fmt.Sprintf("Actieplan %d", ap),
		APLong:          fmt.Sprintf("Investeren in %s", objects[0]),
		ACCode:          fmt.Sprintf("AC%05d", i),
		ACShort:         title,
		ACLong:          fmt.Sprintf("%s in %s, fase %d", title, m.Name, 1+i%3),
		TotalAmount:     total,
		AmountPerCapita: math.Round(total/population*100) / 100,
		YearlyAmounts:   yearly,
		YearlyPerCapita: perCapita,
		Categories:      cats,
	}
}

// Dataset generates a complete dataset. Projects are ordered by total amount
// descending before chunking, like the published files.
func (g *Generator) Dataset() Dataset {
	projects := make([]model.Project, g.cfg.Projects)
	for i := range projects {
		projects[i] = g.Project(i)
	}
	sort.SliceStable(projects, func(a, b int) bool {
		return projects[a].TotalAmount > projects[b].TotalAmount
	})

	var chunks [][]model.Project
	for start := 0; start < len(projects); start += g.cfg.ChunkSize {
		end := start + g.cfg.ChunkSize
		if end > len(projects) {
			end = len(projects)
		}
		chunk := make([]model.Project, end-start)
		copy(chunk, projects[start:end])
		chunks = append(chunks, chunk)
	}

	if g.cfg.DuplicateRate > 0 && len(chunks) > 1 {
		dups := int(float64(len(projects)) * g.cfg.DuplicateRate)
		for d := 0; d < dups; d++ {
			src := g.rng.Intn(len(projects))
			target := g.rng.Intn(len(chunks))
			chunks[target] = append(chunks[target], projects[src])
		}
	}

	return Dataset{
		Manifest: BuildManifest(projects, len(chunks), g.cfg.ChunkSize),
		Chunks:   chunks,
		Projects: projects,
	}
}

// BuildManifest derives the manifest for projects.
func BuildManifest(projects []model.Project, chunks, chunkSize int) model.Manifest {
	m := model.Manifest{
		TotalProjects: len(projects),
		Chunks:        chunks,
		ChunkSize:     chunkSize,
		Categories:    make(map[string]model.Category),
	}
	nis := make(map[string]struct{})
	for i := range projects {
		p := &projects[i]
		m.TotalAmount += p.TotalAmount
		nis[p.NISCode] = struct{}{}
		for _, c := range p.Categories {
			cat := m.Categories[c]
			cat.ID = c
			cat.Label = CategoryLabels[c]
			cat.ProjectCount++
			cat.TotalAmount += p.TotalAmount
			cat.LargestProjects = append(cat.LargestProjects, model.ProjectSummary{
				ACCode:        p.ACCode,
				ACShort:       p.ACShort,
				Municipality:  p.Municipality,
				NISCode:       p.NISCode,
				TotalAmount:   p.TotalAmount,
				YearlyAmounts: p.YearlyAmounts,
			})
			m.Categories[c] = cat
		}
	}
	for id, cat := range m.Categories {
		sort.SliceStable(cat.LargestProjects, func(a, b int) bool {
			return cat.LargestProjects[a].TotalAmount > cat.LargestProjects[b].TotalAmount
		})
		if len(cat.LargestProjects) > 10 {
			cat.LargestProjects = cat.LargestProjects[:10]
		}
		m.Categories[id] = cat
	}
	m.TotalAmount = math.Round(m.TotalAmount*100) / 100
	m.Municipalities = len(nis)
	return m
}

// WriteDir writes the manifest and chunk files of ds below root using
// layout, and returns root.
func (ds Dataset) WriteDir(root string, layout loader.Layout) (string, error) {
	write := func(key string, v any) error {
		p := filepath.Join(root, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(p, data, 0644)
	}
	if err := write(layout.ManifestKey(), ds.Manifest); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	for i, chunk := range ds.Chunks {
		if err := write(layout.ChunkKey(i), chunk); err != nil {
			return "", fmt.Errorf("write chunk %d: %w", i, err)
		}
	}
	return root, nil
}

// ChunkJSON encodes one chunk the way it is published.
func ChunkJSON(projects []model.Project) []byte {
	data, err := json.Marshal(projects)
	if err != nil {
		panic(err)
	}
	return data
}

// ManifestJSON encodes a manifest.
func ManifestJSON(m model.Manifest) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return data
}

// QuickDataset generates n projects split into chunks of size.
func QuickDataset(n, size int) Dataset {
	return New(GeneratorConfig{Seed: 42, Projects: n, ChunkSize: size}).Dataset()
}

// P builds a minimal valid project for table tests.
func P(muni, nis, code string, amount float64, categories ...string) model.Project {
	return model.Project{
		Municipality: muni,
		NISCode:      nis,
		ACCode:       code,
		ACShort:      code,
		TotalAmount:  amount,
		Categories:   categories,
	}
}
