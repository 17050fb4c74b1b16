package render_test

import (
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/reflink/backend/internal/models"
	"github.com/DeafMist/reflink/backend/internal/render"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, c.Render(context.Background(), &b))
	return b.String()
}

func TestReferenceItemScenarioDOI(t *testing.T) {
	refs := render.Render(decodeList(t, `{"references":[{"identifier":"r1","year":2020,"title":"On Widgets","doi":"10.1/xyz"}]}`), "42", "api.example.com")
	require.Len(t, refs, 1)

	got := renderString(t, render.ReferenceItem(refs[0]))
	want := `<li class="reference" id="reference-r1">` +
		`<span class="reference-year">2020</span>` +
		`<span class="reference-title">On Widgets</span>` +
		`<span class="reference-doi"><a href="http://api.example.com/references/42/ref/r1/resolve">10.1/xyz</a></span>` +
		`</li>`
	require.Equal(t, want, got)
}

func TestReferenceItemScenarioTitleLink(t *testing.T) {
	refs := render.Render(decodeList(t, `{"references":[{"identifier":"r1","year":2020,"title":"On Widgets"}]}`), "42", "api.example.com")
	require.Len(t, refs, 1)

	got := renderString(t, render.ReferenceItem(refs[0]))
	require.Contains(t, got, `<span class="reference-title"><a href="http://api.example.com/references/42/ref/r1/resolve">On Widgets</a></span>`)
	require.NotContains(t, got, "reference-doi")
}

func TestReferenceItemFullRecordFieldOrder(t *testing.T) {
	list := models.ReferenceList{References: []models.Reference{{
		Identifier: "full",
		Year:       "1999",
		Title:      ptr("Title"),
		Authors:    []models.Author{{GivenNames: "Ada", Surname: "Lovelace"}},
		DOI:        ptr("10.1/full"),
		Source:     ptr("Journal"),
		Volume:     ptr("3"),
		Issue:      ptr("4"),
		Pages:      ptr("5-6"),
		Identifiers: []models.Identifier{
			{Type: "arxiv", Value: "1111.2222"},
		},
	}}}
	refs := render.Render(list, "9", "h")
	require.Len(t, refs, 1)

	got := renderString(t, render.ReferenceItem(refs[0]))
	classes := []string{
		`class="reference-authors"`,
		`class="reference-author-givennames">Ada<`,
		`class="reference-author-surname">Lovelace<`,
		`class="reference-year">1999<`,
		`class="reference-title">Title<`,
		`class="reference-source">Journal<`,
		`class="reference-volume">3<`,
		`class="reference-issue">4<`,
		`class="reference-pages">5-6<`,
		`class="reference-doi"><a href="http://h/references/9/ref/full/resolve">10.1/full<`,
		`class="reference-identifier-type">arxiv<`,
		`class="reference-identifier-value"><a href="http://h/references/9/ref/full/resolve">1111.2222<`,
	}
	last := -1
	for _, c := range classes {
		idx := strings.Index(got, c)
		require.Greater(t, idx, last, "expected %s after previous field in %s", c, got)
		require.Equal(t, 1, strings.Count(got, c))
		last = idx
	}
}

func TestReferenceItemNonArxivIdentifierShowsTypeOnly(t *testing.T) {
	refs := render.Render(decodeList(t, `{"references":[{"identifier":"r","identifiers":[{"identifier_type":"isbn","identifier":"978-3-16"}]}]}`), "1", "h")
	require.Len(t, refs, 1)

	got := renderString(t, render.ReferenceItem(refs[0]))
	require.Contains(t, got, `<span class="reference-identifier"><span class="reference-identifier-type">isbn</span></span>`)
	require.NotContains(t, got, "reference-identifier-value")
	require.NotContains(t, got, "978-3-16")
}

func TestReferenceListSharesBufferAcrossItems(t *testing.T) {
	refs := render.Render(decodeList(t, `{"references":[{"identifier":"a","title":"<A>"},{"identifier":"b"}]}`), "1", "h")

	got := renderString(t, render.Page("1", render.ReferenceList(refs)))
	require.Contains(t, got, `<ol id="reference-list" class="references"><li class="reference" id="reference-a">`)
	require.Contains(t, got, "&lt;A&gt;")
	require.True(t, strings.HasSuffix(got, `</li></ol></body></html>`))
}

func TestReferenceItemCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var b strings.Builder
	err := render.ReferenceItem(render.DisplayReference{Identifier: "r"}).Render(ctx, &b)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, b.String())
}

func TestReferenceItemEscapesText(t *testing.T) {
	list := models.ReferenceList{References: []models.Reference{{
		Identifier: "x",
		Title:      ptr("<script>alert(1)</script>"),
		DOI:        ptr("10.1/a&b"),
	}}}
	refs := render.Render(list, "1", "h")

	got := renderString(t, render.ReferenceItem(refs[0]))
	require.NotContains(t, got, "<script>")
	require.Contains(t, got, "&lt;script&gt;")
	require.Contains(t, got, ">10.1/a&amp;b<")
}

func TestReferenceItemEmptyAuthorKept(t *testing.T) {
	refs := render.Render(decodeList(t, `{"references":[{"identifier":"r","authors":[{}]}]}`), "1", "h")

	got := renderString(t, render.ReferenceItem(refs[0]))
	require.Contains(t, got, `<span class="reference-authors"><span class="reference-author"></span></span>`)
}

func TestReferenceListWrapsItemsInOrder(t *testing.T) {
	refs := render.Render(decodeList(t, `{"references":[{"identifier":"b"},{"identifier":"a"}]}`), "1", "h")

	got := renderString(t, render.ReferenceList(refs))
	require.True(t, strings.HasPrefix(got, `<ol id="reference-list"`))
	require.Less(t, strings.Index(got, `id="reference-b"`), strings.Index(got, `id="reference-a"`))
}

func TestPageWithMessage(t *testing.T) {
	got := renderString(t, render.Page("1234.5678", render.Message("No reference data available for this paper.")))
	require.Contains(t, got, "<title>References for 1234.5678</title>")
	require.Contains(t, got, `<div id="reference-list" class="references references-message">No reference data available for this paper.</div>`)
	require.True(t, strings.HasSuffix(got, "</body></html>"))
}
