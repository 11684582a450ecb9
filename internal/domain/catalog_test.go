package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemType_IsWeblink(t *testing.T) {
	for _, it := range DefaultItemTypes() {
		assert.Equal(t, it.TableName == "weblink", it.IsWeblink(), it.TableName)
	}
}

func TestItemType_IsWebpage(t *testing.T) {
	types := DefaultItemTypes()
	assert.True(t, types[0].IsWebpage())
	assert.False(t, types[1].IsWebpage())
}

func TestItemType_Matches(t *testing.T) {
	doc := DefaultItemTypes()[1]

	assert.True(t, doc.Matches("report.PDF"))
	assert.True(t, doc.Matches("/tmp/notes.txt"))
	assert.False(t, doc.Matches("photo.jpg"))
	assert.False(t, doc.Matches("README"))
}

func TestClampCategoryLevels(t *testing.T) {
	assert.Equal(t, 0, ClampCategoryLevels(-3))
	assert.Equal(t, 4, ClampCategoryLevels(4))
	assert.Equal(t, MaxCategoryLevels, ClampCategoryLevels(99))
}

func TestNormalizeItemTime(t *testing.T) {
	zero := ZeroItemTime
	blank := "  "
	set := "2015-06-01 10:00:00"

	assert.Nil(t, NormalizeItemTime(nil))
	assert.Nil(t, NormalizeItemTime(&zero))
	assert.Nil(t, NormalizeItemTime(&blank))
	assert.Equal(t, set, *NormalizeItemTime(&set))
}

func TestItem_ParsedTime(t *testing.T) {
	ts := "2015-06-01 10:30:00"
	item := Item{Time: &ts}
	assert.Equal(t, 2015, item.ParsedTime().Year())
	assert.Equal(t, 30, item.ParsedTime().Minute())

	bad := "yesterday"
	assert.True(t, (&Item{Time: &bad}).ParsedTime().IsZero())
	assert.True(t, (&Item{}).ParsedTime().IsZero())
}

func TestTerm_HasParent(t *testing.T) {
	root := Term{ID: 1}
	child := Term{ID: 2, ParentID: Int64Ptr(1)}

	assert.True(t, root.IsRoot())
	assert.False(t, child.IsRoot())
	assert.True(t, child.HasParent(1))
	assert.False(t, child.HasParent(3))
	assert.False(t, root.HasParent(1))
}
