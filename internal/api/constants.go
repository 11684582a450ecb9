package api

// API limits and constants.
const (
	// MaxImportSize is the maximum accepted catalog document (64 MB).
	MaxImportSize = 64 << 20
)

// Cache-Control header values.
const (
	CacheNoStore = "no-store"
)

// Operation tags.
const (
	tagTree      = "Tree"
	tagTerms     = "Terms"
	tagItems     = "Items"
	tagRelations = "Relations"
	tagAudit     = "Audit"
	tagCatalog   = "Catalog"
	tagSearch    = "Search"
	tagTransfer  = "Transfer"
)
