package substitutions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/feed"
	"github.com/class-bell/class-bell/internal/infrastructure/external/web"
)

const page = `<html><body>
<div id="content"><div class="post" id="post-12">
<p><strong><span>Poniedziałek 30.12.2024</span></strong></p>
<p><strong>p. Nowak, p. Kowalska</strong></p>
<p><strong>Dyżury bez zmian</strong></p>
<!-- lessons -->
<p>1 - IID matematyka - zastępstwo p. Wiśniewska</p>
<p>3-4l – IIDp gr. p. Nowak, p. Kowalska fizyka odwołana</p>
<p>2,5 - IIIAB chemia - przesunięta</p>
<p>&nbsp;</p>
<p>Lekcje 7-8 są odwołane.</p>
<p><strong>Sale</strong></p>
<table><tbody><tr><td>1</td></tr><tr><td>2</td></tr></tbody></table>
</div></div>
</body></html>`

func TestParse(t *testing.T) {
	s := Parse(page)
	require.Empty(t, s.Error)

	assert.Equal(t, "2024-12-30", s.Date)
	assert.Equal(t, []string{"p. Nowak", "p. Kowalska"}, s.Teachers)
	assert.Equal(t, "Dyżury bez zmian", s.Misc)
	assert.Equal(t, "Lekcje 7-8 są odwołane.", s.Cancelled)
	assert.Equal(t, "post", s.Post["class"])
	assert.Equal(t, []feed.Table{{Heading: "Sale", Rows: 2}}, s.Tables)

	assert.Equal(t, []feed.Substitution{{Details: "matematyka - zastępstwo p. Wiśniewska"}}, s.Lessons[1]["IID"])

	for _, period := range []int{3, 4} {
		assert.Equal(t, []feed.Substitution{{
			Groups:  []string{"p. Nowak", "p. Kowalska"},
			Details: "fizyka odwołana",
		}}, s.Lessons[period]["IIDp"])
	}

	for _, period := range []int{2, 5} {
		assert.Contains(t, s.Lessons[period], "IIIA")
		assert.Contains(t, s.Lessons[period], "IIIB")
	}
}

func TestParse_MissingPost(t *testing.T) {
	s := Parse(`<html><body><p>maintenance</p></body></html>`)
	assert.NotEmpty(t, s.Error)
	assert.Nil(t, s.Lessons)
}

func TestParse_KeepsPartialDataOnLayoutChange(t *testing.T) {
	s := Parse(`<div id="content"><div>
<p><strong><span>Wtorek 31.12.2024</span></strong></p>
<p><strong>p. Nowak</strong></p>
<p><strong>-</strong></p>
<p>1 - IID fizyka</p>
<p>tu nie ma separatora</p>
<p>2 - IID chemia</p>
</div></div>`)

	assert.Contains(t, s.Error, "element 4")
	assert.Equal(t, "2024-12-31", s.Date)
	assert.Contains(t, s.Lessons, 1)
	assert.NotContains(t, s.Lessons, 2)
	assert.NotNil(t, s.Tables)
}

func TestParse_TableWithoutHeading(t *testing.T) {
	s := Parse(`<div id="content"><div><table><tr><td>1</td></tr></table></div></div>`)
	assert.Contains(t, s.Error, "table without a heading")
}

func TestParsePeriods(t *testing.T) {
	got, err := parsePeriods("1,3-5l")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4, 5}, got)

	_, err = parsePeriods("x")
	assert.Error(t, err)
}

type stubFetcher struct {
	html string
	err  error
	opts int
}

func (s *stubFetcher) FetchText(_ context.Context, _ string, opts ...web.Option) (string, error) {
	s.opts = len(opts)
	return s.html, s.err
}

func TestClient_Fetch(t *testing.T) {
	f := &stubFetcher{html: page}
	c := NewClient(f, "")

	s, err := c.Fetch(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-30", s.Date)
	assert.Equal(t, 2, f.opts)

	f.err = errors.New("boom")
	_, err = c.Fetch(context.Background(), false)
	assert.Error(t, err)
	assert.Equal(t, 1, f.opts)
}
