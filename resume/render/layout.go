// Package render turns structured resume content into paginated documents.
//
// Layout is pure: the same content always yields the same Document. HTML and
// DOCX serialize a Document without side effects; PDFExporter drives a headless
// browser and lives apart from the pure path.
package render

import (
	"strings"

	"resume-builder/resume/model"
)

// Page geometry in text lines and characters for an A4 page at the template's
// body font size.
const (
	PageLines       = 60
	TopBarLines     = 2
	HeaderLines     = 6
	SectionGapLines = 1
	HeadingLines    = 2
	MainColumnChars = 64
	SideColumnChars = 30
)

// SectionKind identifies a resume section.
type SectionKind string

const (
	SectionExperience SectionKind = "experience"
	SectionEducation  SectionKind = "education"
	SectionSkills     SectionKind = "skills"
	SectionTools      SectionKind = "tools"
	SectionLanguages  SectionKind = "languages"
)

var sectionTitles = map[SectionKind]string{
	SectionExperience: "Work Experience",
	SectionEducation:  "Education",
	SectionSkills:     "Skills",
	SectionTools:      "Tools",
	SectionLanguages:  "Languages",
}

// Title returns the display heading of the section kind.
func (k SectionKind) Title() string {
	return sectionTitles[k]
}

// Document is a fully paginated resume.
type Document struct {
	Pages []Page
}

// Page is one A4 page. Header and Summary are only set on the first page.
type Page struct {
	Number  int
	Header  *Header
	Summary string
	Main    []Section
	Side    []Section
}

// Header is the name and contact block. It is always rendered, even blank.
type Header struct {
	Name     string
	Title    string
	Email    string
	Phone    string
	Location string
}

// Contacts returns the non-empty contact fields in display order.
func (h Header) Contacts() []string {
	var out []string
	for _, v := range []string{h.Email, h.Phone, h.Location} {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// Section is the slice of one resume section that falls on a page.
// Continued marks a section resumed from the previous page.
type Section struct {
	Kind      SectionKind
	Title     string
	Continued bool
	Entries   []Entry
	Items     []Item
}

// Entry is a work or education entry. Entries are never split across pages.
type Entry struct {
	Heading     string
	Subheading  string
	Description string
}

func (e Entry) empty() bool {
	return e.Heading == "" && e.Subheading == "" && e.Description == ""
}

// Item is a bulleted skill, tool or language.
type Item struct {
	Name  string
	Level string
}

// Label renders "name (level)" or just the name.
func (i Item) Label() string {
	if strings.TrimSpace(i.Level) == "" {
		return i.Name
	}
	return i.Name + " (" + i.Level + ")"
}

// block is one unbreakable unit queued for a column.
type block struct {
	kind  SectionKind
	entry *Entry
	item  *Item
	lines int
}

// Layout paginates content. It tolerates any subset of fields being absent
// and always yields at least one page carrying the header.
func Layout(c model.Content) Document {
	header := buildHeader(c.PersonalDetails)
	summary := ""
	if c.HasSummary() {
		summary = strings.TrimSpace(c.PersonalDetails.Summary)
	}

	firstPageUsed := TopBarLines + HeaderLines
	if summary != "" {
		firstPageUsed += HeadingLines + wrapLines(summary, MainColumnChars+SideColumnChars) + SectionGapLines
	}

	main := paginate(mainBlocks(c), firstPageUsed, MainColumnChars)
	side := paginate(sideBlocks(c), firstPageUsed, SideColumnChars)

	pageCount := max(1, len(main), len(side))
	doc := Document{Pages: make([]Page, pageCount)}
	for i := range doc.Pages {
		p := Page{Number: i + 1}
		if i == 0 {
			p.Header = &header
			p.Summary = summary
		}
		if i < len(main) {
			p.Main = main[i]
		}
		if i < len(side) {
			p.Side = side[i]
		}
		doc.Pages[i] = p
	}
	return doc
}

func buildHeader(pd *model.PersonalDetails) Header {
	if pd == nil {
		return Header{}
	}
	return Header{
		Name:     pd.FullName(),
		Title:    strings.TrimSpace(pd.ResumeJobTitle),
		Email:    strings.TrimSpace(pd.Email),
		Phone:    strings.TrimSpace(pd.Phone),
		Location: model.Location(pd.City, pd.Country),
	}
}

func mainBlocks(c model.Content) []block {
	var out []block
	for _, j := range c.Jobs {
		e := Entry{
			Heading:     strings.TrimSpace(j.JobTitle),
			Subheading:  joinMeta(j.Employer, dateRange(j.StartDate, j.EndDate)),
			Description: strings.TrimSpace(j.Description),
		}
		if e.empty() {
			continue
		}
		out = append(out, block{kind: SectionExperience, entry: &e, lines: entryLines(e)})
	}
	for _, ed := range c.Education {
		e := Entry{
			Heading:     degreeLine(ed.Degree, ed.Field),
			Subheading:  joinMeta(ed.School, dateRange(ed.StartDate, ed.EndDate)),
			Description: strings.TrimSpace(ed.Description),
		}
		if e.Heading == "" {
			e.Heading, e.Subheading = strings.TrimSpace(ed.School), dateRange(ed.StartDate, ed.EndDate)
		}
		if e.empty() {
			continue
		}
		out = append(out, block{kind: SectionEducation, entry: &e, lines: entryLines(e)})
	}
	return out
}

func sideBlocks(c model.Content) []block {
	var out []block
	add := func(kind SectionKind, name, level string) {
		if strings.TrimSpace(name) == "" {
			return
		}
		it := Item{Name: strings.TrimSpace(name), Level: strings.TrimSpace(level)}
		out = append(out, block{kind: kind, item: &it, lines: wrapLines(it.Label(), SideColumnChars-2)})
	}
	for _, s := range c.Skills {
		add(SectionSkills, s.Name, s.ProficiencyLevel)
	}
	for _, t := range c.Tools {
		add(SectionTools, t.Name, t.ProficiencyLevel)
	}
	for _, l := range c.Languages {
		add(SectionLanguages, l.Name, l.ProficiencyLevel)
	}
	return out
}

// paginate packs blocks into per-page section lists. A section heading is
// never left alone at the bottom of a page, and a block taller than a page
// gets a page of its own.
func paginate(blocks []block, firstPageUsed, width int) [][]Section {
	if len(blocks) == 0 {
		return nil
	}
	var pages [][]Section
	var current []Section
	used := firstPageUsed
	started := map[SectionKind]bool{}

	flush := func() {
		pages = append(pages, current)
		current = nil
		used = TopBarLines
	}

	for _, b := range blocks {
		last := len(current) - 1
		sameSection := last >= 0 && current[last].Kind == b.kind
		cost := b.lines
		if !sameSection {
			cost += HeadingLines
			if last >= 0 {
				cost += SectionGapLines
			}
		}
		if used+cost > PageLines && len(current) > 0 {
			flush()
			sameSection = false
			cost = b.lines + HeadingLines
		}
		if !sameSection {
			current = append(current, Section{
				Kind:      b.kind,
				Title:     b.kind.Title(),
				Continued: started[b.kind],
			})
			started[b.kind] = true
			last = len(current) - 1
		}
		if b.entry != nil {
			current[last].Entries = append(current[last].Entries, *b.entry)
		}
		if b.item != nil {
			current[last].Items = append(current[last].Items, *b.item)
		}
		used += cost
	}
	if len(current) > 0 {
		pages = append(pages, current)
	}
	return pages
}

func entryLines(e Entry) int {
	n := wrapLines(e.Heading, MainColumnChars) + wrapLines(e.Subheading, MainColumnChars) + wrapLines(e.Description, MainColumnChars)
	return n + SectionGapLines
}

// wrapLines counts the lines text occupies when word-wrapped at width.
func wrapLines(text string, width int) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if width <= 0 {
		width = 1
	}
	total := 0
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			total++
			continue
		}
		lines, col := 1, 0
		for _, w := range words {
			wl := len([]rune(w))
			switch {
			case col == 0:
				col = wl
			case col+1+wl <= width:
				col += 1 + wl
			default:
				lines++
				col = wl
			}
			for col > width {
				lines++
				col -= width
			}
		}
		total += lines
	}
	return total
}

func dateRange(start, end string) string {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	switch {
	case start != "" && end != "":
		return start + " - " + end
	case start != "":
		return start + " - Present"
	default:
		return end
	}
}

func degreeLine(degree, field string) string {
	degree, field = strings.TrimSpace(degree), strings.TrimSpace(field)
	switch {
	case degree != "" && field != "":
		return degree + " in " + field
	case degree != "":
		return degree
	default:
		return field
	}
}

func joinMeta(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}
