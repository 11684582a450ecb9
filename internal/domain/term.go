package domain

// Term is a category node in a taxonomy.
// Terms form a forest per taxonomy through ParentID; Count is the number of
// relation rows that reference the term and is only written by the relation
// bookkeeping and the count audit.
type Term struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Taxonomy    string `json:"taxonomy"`
	ParentID    *int64 `json:"parent_id,omitempty"` // nil for a root term
	Description string `json:"description,omitempty"`
	Count       int64  `json:"count"`
}

// IsRoot reports whether the term has no parent.
func (t *Term) IsRoot() bool {
	return t.ParentID == nil
}

// HasParent reports whether the term's parent is id.
func (t *Term) HasParent(id int64) bool {
	return t.ParentID != nil && *t.ParentID == id
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
