// Package substitutions reads the school's lesson substitutions page.
package substitutions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/class-bell/class-bell/internal/domain/feed"
)

var (
	// "IIDp gr. p. Nowak, p. Kowalska fizyka - odwołane"
	lineInfo   = regexp.MustCompile(`^(I+)([A-Z]+)([pg]?)(?:(?:\sgr.\s|,\s|\si\s)p. [^,\s]+)*\s(.*)`)
	lineGroups = regexp.MustCompile(`(?:\sgr.\s|,\s|\si\s)(p. [^,\s]+)`)
)

const (
	postSelector     = "div#content > div"
	cancelledSuffix  = " są odwołane."
	headingDateIndex = 0
	teachersIndex    = 1
	miscIndex        = 2
)

// Parse extracts the substitutions from the page HTML.
//
// The page is loosely templated, so Parse never fails: when an element
// cannot be understood, parsing stops, Error describes the element and
// everything read before it is kept.
func Parse(html string) feed.Substitutions {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return feed.Substitutions{Error: fmt.Sprintf("parse html: %v", err)}
	}

	post := doc.Find(postSelector).First()
	if post.Length() == 0 {
		return feed.Substitutions{Error: fmt.Sprintf("post element %q not found", postSelector)}
	}

	p := &parser{
		out: feed.Substitutions{
			Post:    make(map[string]string),
			Lessons: make(map[int]map[string][]feed.Substitution),
		},
	}
	for _, a := range post.Nodes[0].Attr {
		p.out.Post[a.Key] = a.Val
	}

	index := 0
	post.Contents().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "#text" {
			return true
		}
		if err := p.element(s, index); err != nil {
			p.out.Error = fmt.Sprintf("element %d: %v", index, err)
			return false
		}
		index++
		return true
	})

	p.out.Tables = p.tables
	if p.out.Tables == nil {
		p.out.Tables = []feed.Table{}
	}
	return p.out
}

type parser struct {
	out    feed.Substitutions
	tables []feed.Table
}

func (p *parser) element(s *goquery.Selection, index int) error {
	switch goquery.NodeName(s) {
	case "table":
		if len(p.tables) == 0 {
			return fmt.Errorf("table without a heading")
		}
		p.tables[len(p.tables)-1].Rows = s.Children().First().Children().Length()
		return nil
	case "p":
	default:
		return nil
	}

	first := s.Children().First()
	if first.Length() == 0 {
		return p.line(s.Text())
	}
	if goquery.NodeName(first) != "strong" {
		return nil
	}

	switch index {
	case headingDateIndex:
		return p.date(first)
	case teachersIndex:
		p.out.Teachers = strings.Split(first.Text(), ", ")
	case miscIndex:
		p.out.Misc = first.Text()
	default:
		if isBlank(first.Text()) {
			return nil
		}
		p.tables = append(p.tables, feed.Table{Heading: first.Text()})
	}
	return nil
}

// date reads "Poniedziałek 30.12.2024" from the heading.
func (p *parser) date(strong *goquery.Selection) error {
	inner := strong.Children().First()
	if inner.Length() == 0 {
		return fmt.Errorf("date heading has no inner element")
	}
	_, raw, ok := strings.Cut(inner.Text(), " ")
	if !ok {
		return fmt.Errorf("date heading %q has no date", inner.Text())
	}
	d, err := time.Parse("02.01.2006", strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("date heading: %w", err)
	}
	p.out.Date = d.Format(time.DateOnly)
	return nil
}

// line reads one substitution paragraph, e.g. "1,3-4l - IIDp gr. p. Nowak fizyka".
func (p *parser) line(text string) error {
	if isBlank(text) {
		return nil
	}
	if strings.HasSuffix(text, cancelledSuffix) {
		p.out.Cancelled = text
		return nil
	}

	sep := " - "
	if !strings.Contains(text, sep) {
		sep = " – "
	}
	lessonsPart, info, ok := strings.Cut(text, sep)
	if !ok {
		return fmt.Errorf("line %q has no separator", text)
	}

	periods, err := parsePeriods(lessonsPart)
	if err != nil {
		return err
	}

	m := lineInfo.FindStringSubmatch(info)
	if m == nil {
		return fmt.Errorf("line %q does not name a class", text)
	}
	year, letters, profile, details := m[1], m[2], m[3], m[4]

	var groups []string
	for _, g := range lineGroups.FindAllStringSubmatch(info, -1) {
		groups = append(groups, g[1])
	}

	for _, period := range periods {
		classes, ok := p.out.Lessons[period]
		if !ok {
			classes = make(map[string][]feed.Substitution)
			p.out.Lessons[period] = classes
		}
		for _, letter := range letters {
			class := year + string(letter) + profile
			classes[class] = append(classes[class], feed.Substitution{Groups: groups, Details: details})
		}
	}
	return nil
}

// parsePeriods expands "1,3-5l" into [1 3 4 5].
func parsePeriods(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(strings.TrimRight(s, "l"), ",") {
		part = strings.TrimSpace(part)
		if from, to, isRange := strings.Cut(part, "-"); isRange {
			start, err := strconv.Atoi(from)
			if err != nil {
				return nil, fmt.Errorf("lesson range %q: %w", part, err)
			}
			end, err := strconv.Atoi(to)
			if err != nil {
				return nil, fmt.Errorf("lesson range %q: %w", part, err)
			}
			for n := start; n <= end; n++ {
				out = append(out, n)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("lesson %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// isBlank also treats non-breaking spaces, raw or escaped, as blank.
func isBlank(s string) bool {
	return strings.TrimSpace(strings.ReplaceAll(s, "&nbsp;", "")) == ""
}
