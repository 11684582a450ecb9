// Package transfer reads and writes whole catalogs in the FileCatman XML
// exchange format:
//
//	<channel>
//	  <itemType>...</itemType>*
//	  <taxonomy>...</taxonomy>*
//	  <category>...</category>*   parents before children
//	  <item>... <relation taxonomy="" slug="">name</relation>* </item>*
//	</channel>
//
// Categories reference their parent by slug within the same taxonomy and
// relations reference terms by taxonomy and slug, so a document can be
// imported into a catalog whose ids differ.
package transfer

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/filecatman/catalog/internal/domain"
)

// Document is the root <channel> element.
type Document struct {
	XMLName    xml.Name   `xml:"channel"`
	ItemTypes  []ItemType `xml:"itemType"`
	Taxonomies []Taxonomy `xml:"taxonomy"`
	Categories []Category `xml:"category"`
	Items      []Item     `xml:"item"`
}

// CData is text written as a CDATA section.
type CData struct {
	Text string `xml:",cdata"`
}

// Bool reads "True", "true" and "1" as true and writes "True"/"False".
type Bool bool

func (b Bool) MarshalText() ([]byte, error) {
	if b {
		return []byte("True"), nil
	}
	return []byte("False"), nil
}

func (b *Bool) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "true", "1", "yes":
		*b = true
	default:
		*b = false
	}
	return nil
}

// ItemType is an <itemType> element.
type ItemType struct {
	NounName   CData    `xml:"nounName"`
	PluralName CData    `xml:"pluralName"`
	TableName  CData    `xml:"tableName"`
	DirName    CData    `xml:"dirName"`
	Extensions []string `xml:"extension"`
}

// Taxonomy is a <taxonomy> element.
type Taxonomy struct {
	NounName    CData `xml:"nounName"`
	PluralName  CData `xml:"pluralName"`
	TableName   CData `xml:"tableName"`
	DirName     CData `xml:"dirName"`
	HasChildren Bool  `xml:"hasChildren"`
	IsTags      Bool  `xml:"isTags"`
}

// Category is a <category> element. Parent is the parent's slug.
type Category struct {
	ID          int64  `xml:"category_id"`
	Slug        string `xml:"category_slug"`
	Name        CData  `xml:"category_name"`
	Description CData  `xml:"category_description"`
	Taxonomy    string `xml:"category_tax"`
	Parent      string `xml:"category_parent"`
}

// Item is an <item> element.
type Item struct {
	Title       string     `xml:"title"`
	ID          int64      `xml:"item_id"`
	Type        string     `xml:"type_id"`
	Source      string     `xml:"item_source"`
	Time        string     `xml:"item_time"`
	Description string     `xml:"item_description"`
	Relations   []Relation `xml:"relation"`
}

// Relation is a <relation> element naming a term by taxonomy and slug.
type Relation struct {
	Taxonomy string `xml:"taxonomy,attr"`
	Slug     string `xml:"slug,attr"`
	Name     string `xml:",cdata"`
}

// Encode writes doc as an indented XML document.
func Encode(w io.Writer, doc *Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")

	comment := fmt.Sprintf(" FileCatman catalog export. Created: '%s' ", time.Now().Format("2006-01-02 15:04"))
	if err := enc.EncodeToken(xml.Comment(comment)); err != nil {
		return fmt.Errorf("write comment: %w", err)
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode parses a document. Elements may appear in any order.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &doc, nil
}

// FromItemType converts an item type for export.
func FromItemType(t *domain.ItemType) ItemType {
	return ItemType{
		NounName:   CData{t.NounName},
		PluralName: CData{t.PluralName},
		TableName:  CData{t.TableName},
		DirName:    CData{t.DirName},
		Extensions: slices.Clone(t.Extensions),
	}
}

// Domain converts an imported item type. Imported types are enabled and use
// their plural name as icon.
func (t ItemType) Domain() *domain.ItemType {
	exts := make([]string, 0, len(t.Extensions))
	for _, e := range t.Extensions {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			exts = append(exts, e)
		}
	}
	return &domain.ItemType{
		NounName:   strings.TrimSpace(t.NounName.Text),
		PluralName: strings.TrimSpace(t.PluralName.Text),
		TableName:  strings.TrimSpace(t.TableName.Text),
		DirName:    strings.TrimSpace(t.DirName.Text),
		IconName:   strings.TrimSpace(t.PluralName.Text),
		Enabled:    true,
		Extensions: exts,
	}
}

// FromTaxonomy converts a taxonomy for export.
func FromTaxonomy(t *domain.Taxonomy) Taxonomy {
	return Taxonomy{
		NounName:    CData{t.NounName},
		PluralName:  CData{t.PluralName},
		TableName:   CData{t.TableName},
		DirName:     CData{t.DirName},
		HasChildren: Bool(t.HasChildren),
		IsTags:      Bool(t.IsTags),
	}
}

// Domain converts an imported taxonomy.
func (t Taxonomy) Domain() *domain.Taxonomy {
	return &domain.Taxonomy{
		NounName:    strings.TrimSpace(t.NounName.Text),
		PluralName:  strings.TrimSpace(t.PluralName.Text),
		TableName:   strings.TrimSpace(t.TableName.Text),
		DirName:     strings.TrimSpace(t.DirName.Text),
		IconName:    "Categories",
		Enabled:     true,
		HasChildren: bool(t.HasChildren),
		IsTags:      bool(t.IsTags),
	}
}

// FromTerm converts a term for export. parentSlug is empty for roots.
func FromTerm(t *domain.Term, parentSlug string) Category {
	return Category{
		ID:          t.ID,
		Slug:        t.Slug,
		Name:        CData{t.Name},
		Description: CData{t.Description},
		Taxonomy:    t.Taxonomy,
		Parent:      parentSlug,
	}
}

// Key identifies a category by taxonomy and slug.
func (c Category) Key() TermKey {
	return TermKey{Taxonomy: strings.TrimSpace(c.Taxonomy), Slug: strings.TrimSpace(c.Slug)}
}

// ParentKey identifies the parent category. ok is false for roots.
func (c Category) ParentKey() (TermKey, bool) {
	p := strings.TrimSpace(c.Parent)
	if p == "" || p == "0" {
		return TermKey{}, false
	}
	return TermKey{Taxonomy: strings.TrimSpace(c.Taxonomy), Slug: p}, true
}

// TermKey addresses a term across catalogs.
type TermKey struct {
	Taxonomy string
	Slug     string
}

// Key returns the relation's term key.
func (r Relation) Key() TermKey {
	return TermKey{Taxonomy: strings.TrimSpace(r.Taxonomy), Slug: strings.TrimSpace(r.Slug)}
}

// FromItem converts an item and its related terms for export.
func FromItem(it *domain.Item, terms []*domain.Term) Item {
	x := Item{
		Title:       it.Name,
		ID:          it.ID,
		Type:        it.Type,
		Source:      it.Source,
		Time:        domain.ZeroItemTime,
		Description: it.Description,
	}
	if it.Time != nil {
		x.Time = *it.Time
	}
	for _, t := range terms {
		x.Relations = append(x.Relations, Relation{Taxonomy: t.Taxonomy, Slug: t.Slug, Name: t.Name})
	}
	return x
}

// Domain converts an imported item. The id is not carried over.
func (x Item) Domain() *domain.Item {
	t := x.Time
	return &domain.Item{
		Name:        strings.TrimSpace(x.Title),
		Type:        strings.TrimSpace(x.Type),
		Source:      x.Source,
		Time:        domain.NormalizeItemTime(&t),
		Description: x.Description,
	}
}

// SortCategories orders categories so every parent precedes its children.
// Depth is measured along parent slugs within the document; a parent that is
// missing from the document, or a parent loop, counts as a root. The sort is
// stable, so siblings keep their document order.
func SortCategories(cats []Category) []Category {
	byKey := make(map[TermKey]int, len(cats))
	for i, c := range cats {
		if _, dup := byKey[c.Key()]; !dup {
			byKey[c.Key()] = i
		}
	}

	depth := make([]int, len(cats))
	for i, c := range cats {
		seen := map[TermKey]bool{c.Key(): true}
		cur := c
		for {
			pk, ok := cur.ParentKey()
			if !ok || seen[pk] {
				break
			}
			j, found := byKey[pk]
			if !found {
				break
			}
			seen[pk] = true
			depth[i]++
			cur = cats[j]
		}
	}

	idx := make([]int, len(cats))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return depth[a] - depth[b] })

	out := make([]Category, len(cats))
	for i, j := range idx {
		out[i] = cats[j]
	}
	return out
}
