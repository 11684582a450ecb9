package domain

import (
	"path/filepath"
	"slices"
	"strings"
)

// ItemType describes a kind of catalogued item.
// TableName is the key stored in Item.Type.
type ItemType struct {
	NounName   string   `json:"noun_name"`
	PluralName string   `json:"plural_name"`
	DirName    string   `json:"dir_name"`
	TableName  string   `json:"table_name"`
	IconName   string   `json:"icon_name"`
	Enabled    bool     `json:"enabled"`
	Extensions []string `json:"extensions"`
}

// IsWeblink reports whether items of this type are URLs rather than files.
func (t *ItemType) IsWeblink() bool {
	return len(t.Extensions) == 0
}

// IsWebpage reports whether the type stores saved html pages.
func (t *ItemType) IsWebpage() bool {
	return slices.Contains(t.Extensions, "html") && slices.Contains(t.Extensions, "htm")
}

// Matches reports whether a file name has one of the type's extensions.
func (t *ItemType) Matches(fileName string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	return ext != "" && slices.Contains(t.Extensions, ext)
}

// Taxonomy is a namespace of terms.
type Taxonomy struct {
	NounName    string `json:"noun_name"`
	PluralName  string `json:"plural_name"`
	DirName     string `json:"dir_name"`
	TableName   string `json:"table_name"`
	IconName    string `json:"icon_name"`
	Enabled     bool   `json:"enabled"`
	HasChildren bool   `json:"has_children"` // false forbids parent terms
	IsTags      bool   `json:"is_tags"`
}

// Option names stored in the options table.
const (
	OptionCategoryLevels = "catLvls"
)

// Category level bounds.
const (
	DefaultCategoryLevels = 5
	MaxCategoryLevels     = 10
)

// ClampCategoryLevels forces n into [0, MaxCategoryLevels].
func ClampCategoryLevels(n int) int {
	return max(0, min(n, MaxCategoryLevels))
}

// Option is a persisted key/value setting.
type Option struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DefaultItemTypes are seeded into an empty catalog.
func DefaultItemTypes() []ItemType {
	return []ItemType{
		{NounName: "Webpage", PluralName: "Webpages", DirName: "Webpages", TableName: "webpage", IconName: "Webpages", Enabled: true,
			Extensions: []string{"html", "htm", "xhtml", "xht"}},
		{NounName: "Document", PluralName: "Documents", DirName: "Documents", TableName: "document", IconName: "Documents", Enabled: true,
			Extensions: []string{"pdf", "doc", "docx", "txt", "odt", "mobi", "epub", "rtf", "abw"}},
		{NounName: "Image", PluralName: "Images", DirName: "Images", TableName: "image", IconName: "Images", Enabled: true,
			Extensions: []string{"jpeg", "jpg", "png", "apng", "gif", "bmp", "svg", "ico", "webp"}},
		{NounName: "Weblink", PluralName: "Weblinks", DirName: "Weblinks", TableName: "weblink", IconName: "Weblinks", Enabled: true},
		{NounName: "Audio", PluralName: "Audio", DirName: "Audio", TableName: "audio", IconName: "Audio", Enabled: true,
			Extensions: []string{"mp3", "flac", "wav", "wma", "mid", "ogg", "m4a"}},
		{NounName: "Video", PluralName: "Video", DirName: "Video", TableName: "video", IconName: "Video", Enabled: true,
			Extensions: []string{"flv", "mp4", "avi", "m4v", "mkv", "mov", "mpeg", "mpg", "wmv", "3gp", "webm"}},
	}
}

// DefaultTaxonomies are seeded into an empty catalog.
func DefaultTaxonomies() []Taxonomy {
	return []Taxonomy{
		{NounName: "Author", PluralName: "Authors", DirName: "Authors", TableName: "author", IconName: "Categories", Enabled: true},
		{NounName: "Subject", PluralName: "Subjects", DirName: "Subjects", TableName: "subject", IconName: "Categories", Enabled: true, HasChildren: true},
		{NounName: "Tag", PluralName: "Tags", DirName: "Tags", TableName: "tag", IconName: "Categories", Enabled: true, IsTags: true},
	}
}

// CatalogStats counts catalog contents.
type CatalogStats struct {
	Items       int             `json:"items"`
	Terms       int             `json:"terms"`
	Relations   int             `json:"relations"`
	ItemsByType []TypeStats     `json:"items_by_type"`
	Taxonomies  []TaxonomyStats `json:"taxonomies"`
}

// TypeStats counts the items of one item type.
type TypeStats struct {
	Type  string `json:"type"`
	Items int    `json:"items"`
}

// TaxonomyStats counts the terms of one taxonomy and the relations to them.
type TaxonomyStats struct {
	Taxonomy  string `json:"taxonomy"`
	Terms     int    `json:"terms"`
	Relations int    `json:"relations"`
	Items     int    `json:"items"` // distinct items with at least one relation
}
