package lawregistry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatabs/metasync/internal/transport"
)

func TestNormalizeSystematicNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`152.100`, "152.100"},
		{`"152.100"`, "152.100"},
		{`'152.100'`, "152.100"},
		{`""152.100""`, "152.100"},
		{` "152.100" `, "152.100"},
		{`"152.100`, `"152.100`},   // asymmetric, left alone
		{`315.300.1`, "315.300.1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSystematicNumber(tt.in), "input %q", tt.in)
	}
}

func TestExtractParagraphs(t *testing.T) {
	html := `<h1>Gesetz über die Informatik</h1>
		<p>§ 1 Zweck</p>
		<p>§ 2 Geltungsbereich</p>
		<p>Siehe auch §2 und § 14a.</p>`

	children := ExtractParagraphs(html)
	require.Len(t, children, 3)
	assert.Equal(t, "§ 1", children[0].Code)
	assert.Equal(t, "§ 2", children[1].Code)
	assert.Equal(t, "§ 14a", children[2].Code)
	assert.Equal(t, "14a", children[2].Field("paragraph"))
}

func TestExtractParagraphsIgnoresMarkup(t *testing.T) {
	html := `<div data-note="§ 99 inside attribute is still text after stripping"></div>`
	children := ExtractParagraphs(html)
	// Tag contents are stripped wholesale; nothing survives to match.
	assert.Empty(t, children)
}

func TestFetchBuildsRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/laws", r.URL.Path)
		_, _ = w.Write([]byte(`{"laws":[
			{"systematische_nummer":"\"152.100\"","titel":"Informatikgesetz","abkuerzung":"IG",
			 "url":"https://gesetze.example/152.100","text":"<p>§ 1 Zweck</p><p>§ 2 Vollzug</p>"}
		]}`))
	}))
	defer srv.Close()

	r := NewReader(transport.New(srv.URL, nil), "Rechtsgrundlagen")
	records, err := r.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "152.100", rec.Key)
	assert.Equal(t, "Informatikgesetz", rec.Label)
	assert.Equal(t, "Rechtsgrundlagen", rec.ParentPath)
	require.Len(t, rec.Children, 2)
	assert.Equal(t, "§ 1", rec.Children[0].Code)
}
