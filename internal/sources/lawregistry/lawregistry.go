// Package lawregistry reads the cantonal legal-text registry and feeds
// the legal-reference family: one reference object per law, keyed by its
// systematic number, with the law's paragraphs as reference-value
// children.
package lawregistry

import (
	"context"
	"regexp"
	"strings"

	"github.com/opendatabs/metasync/internal/transport"
	"github.com/opendatabs/metasync/pkg/catalog"
	"github.com/opendatabs/metasync/pkg/sync"
)

// KeyProperty is the custom property carrying the systematic number.
const KeyProperty = "systematische_nummer"

// Reader fetches laws from the registry API and implements both
// sync.Source and sync.Family for them.
type Reader struct {
	client     *transport.Client
	parentPath string
}

// NewReader creates a reader for the registry. parentPath is the
// collection the reference objects live under.
func NewReader(client *transport.Client, parentPath string) *Reader {
	return &Reader{client: client, parentPath: parentPath}
}

// Name implements sync.Family.
func (r *Reader) Name() string { return "legal-references" }

// Composite implements sync.Family.
func (r *Reader) Composite() bool { return true }

// Scope implements sync.Family.
func (r *Reader) Scope() catalog.Scope {
	return catalog.Scope{
		Type:        catalog.TypeReferenceObject,
		KeyProperty: KeyProperty,
	}
}

// Desired implements sync.Family.
func (r *Reader) Desired(rec sync.Record) (catalog.Payload, []catalog.Child, error) {
	props := map[string]string{KeyProperty: rec.Key}
	for _, name := range []string{"abkuerzung", "url"} {
		if v := rec.Fields[name]; v != "" {
			props[name] = v
		}
	}
	return catalog.Payload{
		Type:       catalog.TypeReferenceObject,
		Label:      rec.Label,
		ParentPath: rec.ParentPath,
		Properties: props,
	}, rec.Children, nil
}

type lawRow struct {
	SystematicNumber string `json:"systematische_nummer"`
	Title            string `json:"titel"`
	Abbreviation     string `json:"abkuerzung"`
	URL              string `json:"url"`
	Text             string `json:"text"`
}

// Fetch implements sync.Source.
func (r *Reader) Fetch(ctx context.Context) ([]sync.Record, error) {
	var page struct {
		Laws []lawRow `json:"laws"`
	}
	if err := r.client.Get(ctx, "/api/laws", &page); err != nil {
		return nil, err
	}

	records := make([]sync.Record, 0, len(page.Laws))
	for _, law := range page.Laws {
		records = append(records, sync.Record{
			Key:        NormalizeSystematicNumber(law.SystematicNumber),
			Label:      law.Title,
			ParentPath: r.parentPath,
			Fields: map[string]string{
				"abkuerzung": law.Abbreviation,
				"url":        law.URL,
			},
			Children: ExtractParagraphs(law.Text),
		})
	}
	return records, nil
}

// NormalizeSystematicNumber strips the symmetric quoting some registry
// exports wrap the number in. "152.100" and 152.100 are the same key.
func NormalizeSystematicNumber(number string) string {
	number = strings.TrimSpace(number)
	for len(number) >= 2 {
		first, last := number[0], number[len(number)-1]
		if first != last {
			break
		}
		if first != '"' && first != '\'' {
			break
		}
		number = strings.TrimSpace(number[1 : len(number)-1])
	}
	return number
}

var (
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
	paragraphPattern = regexp.MustCompile(`§\s*(\d+[a-z]?)`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// ExtractParagraphs pulls the paragraph markers out of a law's HTML text
// and returns them as reference-value children keyed by paragraph code.
// Duplicate markers keep their first occurrence.
func ExtractParagraphs(html string) []catalog.Child {
	text := tagPattern.ReplaceAllString(html, " ")
	text = spacePattern.ReplaceAllString(text, " ")

	seen := make(map[string]bool)
	var children []catalog.Child
	for _, match := range paragraphPattern.FindAllStringSubmatch(text, -1) {
		code := "§ " + match[1]
		if seen[code] {
			continue
		}
		seen[code] = true
		children = append(children, catalog.Child{
			Code:   code,
			Fields: map[string]string{"paragraph": match[1]},
		})
	}
	return children
}
