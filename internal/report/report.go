// Package report builds the printable site-plan report from a scene
// snapshot. Layout is left to the HTML template and the browser's print
// dialog.
package report

import (
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/scene"
)

// DefaultRowsPerPage fits a letter page with the header block.
const DefaultRowsPerPage = 24

// Row is one annotation line of the report.
type Row struct {
	Number   int    `json:"number"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	Detail   string `json:"detail"`
	Color    string `json:"color"`
	Location string `json:"location"`
}

// Section groups rows of one numbering scope or kind.
type Section struct {
	Title     string `json:"title"`
	Continued bool   `json:"continued"`
	Rows      []Row  `json:"rows"`
}

// Page is one printed page.
type Page struct {
	Number   int       `json:"number"`
	Of       int       `json:"of"`
	Sections []Section `json:"sections"`
}

// Report is the document model handed to the template.
type Report struct {
	ProjectName    string       `json:"projectName"`
	GeneratedAt    time.Time    `json:"generatedAt"`
	Unit           scene.Unit   `json:"unit"`
	SafetyDistance int          `json:"safetyDistance"`
	Camera         scene.Camera `json:"camera"`
	Total          int          `json:"total"`
	Pages          []Page       `json:"pages"`
}

// Generator builds reports.
type Generator struct {
	clock       clockwork.Clock
	rowsPerPage int
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the time source for the generated-at stamp.
func WithClock(c clockwork.Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// WithRowsPerPage sets the page size. Values below 1 are ignored.
func WithRowsPerPage(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.rowsPerPage = n
		}
	}
}

// NewGenerator creates a Generator using the real clock.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{clock: clockwork.NewRealClock(), rowsPerPage: DefaultRowsPerPage}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var sections = []struct {
	title string
	kinds []annotation.Kind
}{
	{"Fireworks & Markers", []annotation.Kind{annotation.KindFirework, annotation.KindCustom}},
	{"Audience Areas", []annotation.Kind{annotation.KindAudience}},
	{"Restricted Zones", []annotation.Kind{annotation.KindRestricted}},
	{"Measurements", []annotation.Kind{annotation.KindMeasurement}},
}

// Build produces the report for snap. Rows are ordered by section, then
// by number within the section.
func (g *Generator) Build(snap scene.Snapshot) (*Report, error) {
	entities, err := snap.Entities()
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	settings := snap.Settings()

	byKind := make(map[annotation.Kind][]annotation.Entity)
	for _, e := range entities {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	r := &Report{
		ProjectName:    settings.ProjectName,
		GeneratedAt:    g.clock.Now(),
		Unit:           settings.Unit,
		SafetyDistance: settings.SafetyDistance,
		Camera:         snap.Camera,
		Total:          len(entities),
	}

	var all []Section
	for _, s := range sections {
		var members []annotation.Entity
		for _, k := range s.kinds {
			members = append(members, byKind[k]...)
		}
		if len(members) == 0 {
			continue
		}
		// Fireworks and custom pins share numbers; interleave them.
		slices.SortStableFunc(members, func(a, b annotation.Entity) int { return a.Number - b.Number })

		sec := Section{Title: s.title}
		for _, e := range members {
			sec.Rows = append(sec.Rows, rowFor(e, settings))
		}
		all = append(all, sec)
	}

	r.Pages = paginate(all, g.rowsPerPage)
	return r, nil
}

func rowFor(e annotation.Entity, s scene.Settings) Row {
	loc := e.Anchor
	switch e.Kind.Family() {
	case annotation.FamilyRectangle:
		loc = e.Corners[0]
	case annotation.FamilySegment:
		loc = e.Points[0]
	}
	label := e.Label
	if e.Kind == annotation.KindCustom && e.Emoji != "" {
		label = e.Emoji + " " + label
	}
	return Row{
		Number:   e.Number,
		Kind:     string(e.Kind),
		Name:     e.DisplayName(),
		Label:    label,
		Detail:   scene.DetailText(e, s),
		Color:    e.Color,
		Location: fmt.Sprintf("%.6f, %.6f", loc.Lat(), loc.Lon()),
	}
}

// paginate splits sections over pages of at most perPage rows. A section
// cut by a page break carries on the next page marked Continued.
func paginate(all []Section, perPage int) []Page {
	var pages []Page
	cur := Page{Number: 1}
	room := perPage

	for _, sec := range all {
		rows := sec.Rows
		continued := false
		for len(rows) > 0 {
			if room == 0 {
				pages = append(pages, cur)
				cur = Page{Number: len(pages) + 1}
				room = perPage
			}
			n := min(room, len(rows))
			cur.Sections = append(cur.Sections, Section{Title: sec.Title, Continued: continued, Rows: rows[:n]})
			rows = rows[n:]
			room -= n
			continued = true
		}
	}
	pages = append(pages, cur)

	for i := range pages {
		pages[i].Of = len(pages)
	}
	return pages
}
