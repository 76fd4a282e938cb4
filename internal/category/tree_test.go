package category

import (
	"errors"
	"testing"

	"conti/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

// fixture:
//
//	1 Food (expense)
//	├── 2 Groceries
//	└── 3 Restaurants
//	4 Salary (income)
//	5 Transport (expense)
func fixture() *Tree {
	return NewTree([]core.Category{
		{ID: 1, Name: "Food", Type: core.Expense},
		{ID: 2, Name: "Groceries", Type: core.Expense, ParentID: ptr(1)},
		{ID: 3, Name: "Restaurants", Type: core.Expense, ParentID: ptr(1)},
		{ID: 4, Name: "Salary", Type: core.Income},
		{ID: 5, Name: "Transport", Type: core.Expense},
	})
}

func TestValidateParent(t *testing.T) {
	tree := fixture()

	tests := []struct {
		name    string
		cat     core.Category
		parent  int64
		wantErr error
	}{
		{"new child of root", core.Category{Name: "Snacks", Type: core.Expense}, 1, nil},
		{"move leaf under another root", core.Category{ID: 2, Name: "Groceries", Type: core.Expense}, 5, nil},
		{"root under another root", core.Category{ID: 5, Name: "Transport", Type: core.Expense}, 1, nil},
		{"self parent", core.Category{ID: 1, Name: "Food", Type: core.Expense}, 1, core.ErrCategoryCycle},
		{"parent is own child", core.Category{ID: 1, Name: "Food", Type: core.Expense}, 2, core.ErrCategoryCycle},
		{"unknown parent", core.Category{Name: "x", Type: core.Expense}, 99, core.ErrCategoryNotFound},
		{"type mismatch", core.Category{Name: "Bonus", Type: core.Income}, 1, core.ErrCategoryTypeMismatch},
		{"grandchild", core.Category{Name: "Organic", Type: core.Expense}, 2, core.ErrCategoryDepth},
		{"parent with children cannot nest", core.Category{ID: 1, Name: "Food", Type: core.Expense}, 5, core.ErrCategoryDepth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tree.ValidateParent(tt.cat, tt.parent)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateParent_LeavesTreeUnchanged(t *testing.T) {
	tree := fixture()
	before := tree.Hierarchy(nil)

	_ = tree.ValidateParent(core.Category{ID: 1, Name: "Food", Type: core.Expense}, 2)
	_ = tree.ValidateParent(core.Category{ID: 5, Name: "Transport", Type: core.Expense}, 1)

	assert.Equal(t, before, tree.Hierarchy(nil))
}

func TestValidateParent_RejectsAreRejections(t *testing.T) {
	tree := fixture()

	for _, parent := range []int64{1, 2} {
		err := tree.ValidateParent(core.Category{ID: 1, Name: "Food", Type: core.Expense}, parent)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrRejected))
	}
}

func TestValidateTypeChange(t *testing.T) {
	tree := fixture()

	assert.ErrorIs(t, tree.ValidateTypeChange(1, core.Income), core.ErrCategoryTypeMismatch, "parent")
	assert.ErrorIs(t, tree.ValidateTypeChange(2, core.Income), core.ErrCategoryTypeMismatch, "child")
	assert.NoError(t, tree.ValidateTypeChange(5, core.Income), "standalone")
	assert.NoError(t, tree.ValidateTypeChange(1, core.Expense), "unchanged")
	assert.ErrorIs(t, tree.ValidateTypeChange(42, core.Income), core.ErrCategoryNotFound)
}

func TestCascadeSet(t *testing.T) {
	tree := fixture()

	assert.Equal(t, []int64{1, 2, 3}, tree.CascadeSet(1))
	assert.Equal(t, []int64{2}, tree.CascadeSet(2))
	assert.Nil(t, tree.CascadeSet(99))
}

func TestDescendants(t *testing.T) {
	tree := fixture()

	assert.Equal(t, map[int64]bool{1: true, 2: true, 3: true}, tree.Descendants(1))
	assert.Equal(t, map[int64]bool{4: true}, tree.Descendants(4))
	assert.Equal(t, map[int64]bool{77: true}, tree.Descendants(77))
}

func TestHierarchy(t *testing.T) {
	tree := fixture()

	all := tree.Hierarchy(nil)
	require.Len(t, all, 3)
	assert.Equal(t, "Food", all[0].Name)
	assert.Equal(t, "Salary", all[1].Name)
	assert.Equal(t, "Transport", all[2].Name)
	require.Len(t, all[0].Children, 2)
	assert.Equal(t, "Groceries", all[0].Children[0].Name)
	assert.Equal(t, "Restaurants", all[0].Children[1].Name)
	assert.Empty(t, all[2].Children)

	income := core.Income
	only := tree.Hierarchy(&income)
	require.Len(t, only, 1)
	assert.Equal(t, int64(4), only[0].ID)
}

func TestNewTree_OrphansBecomeRoots(t *testing.T) {
	tree := NewTree([]core.Category{
		{ID: 1, Name: "Orphan", Type: core.Expense, ParentID: ptr(50)},
	})

	roots := tree.Hierarchy(nil)
	require.Len(t, roots, 1)
	assert.Equal(t, int64(1), roots[0].ID)
}
