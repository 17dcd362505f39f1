package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LoadsEmbeddedFeatures(t *testing.T) {
	c := Default()
	require.NotZero(t, c.Len())

	f, ok := c.Lookup("r12m_spending")
	require.True(t, ok)
	assert.Equal(t, Numeric, f.Type)
	assert.Equal(t, "spending", f.Category)

	f, ok = c.Lookup("tier")
	require.True(t, ok)
	assert.Equal(t, Categorical, f.Type)

	f, ok = c.Lookup("has_overseas_purchase")
	require.True(t, ok)
	assert.Equal(t, Boolean, f.Type)

	f, ok = c.Lookup("cart_items_pending")
	require.True(t, ok)
	assert.Equal(t, List, f.Type)

	_, ok = c.Lookup("no_such_feature")
	assert.False(t, ok)
}

func TestDefault_DottedNestedFeatureNames(t *testing.T) {
	c := Default()
	_, ok := c.Lookup("category_browsing.handbags")
	assert.True(t, ok)
	_, ok = c.Lookup("category_browsing.jewelry")
	assert.True(t, ok)
}

func TestParse_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty document", "features: []"},
		{"missing name", "features:\n  - display_name: X\n    type: numeric"},
		{"duplicate name", "features:\n  - name: a\n    type: numeric\n  - name: a\n    type: numeric"},
		{"unknown type", "features:\n  - name: a\n    type: fancy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFeatureType_Operators(t *testing.T) {
	tests := []struct {
		typ     FeatureType
		valid   []string
		invalid []string
	}{
		{Numeric, []string{">", ">=", "<", "<=", "==", "between"}, []string{"in", "contains"}},
		{Categorical, []string{"==", "in"}, []string{">", "between"}},
		{Boolean, []string{"=="}, []string{"in", ">"}},
		{List, []string{"contains", "not_empty", "empty"}, []string{"==", ">"}},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			for _, op := range tt.valid {
				assert.True(t, tt.typ.ValidOperator(op), "operator %q should be valid", op)
			}
			for _, op := range tt.invalid {
				assert.False(t, tt.typ.ValidOperator(op), "operator %q should be invalid", op)
			}
		})
	}
}

func TestParseFeatureType(t *testing.T) {
	typ, err := ParseFeatureType("  Numeric ")
	require.NoError(t, err)
	assert.Equal(t, Numeric, typ)

	_, err = ParseFeatureType("scalar")
	assert.Error(t, err)
}

func TestSearchKeywords(t *testing.T) {
	c := Default()

	got := c.SearchKeywords([]string{"handbag"})
	require.NotEmpty(t, got)
	names := make([]string, 0, len(got))
	for _, f := range got {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "category_browsing.handbags")

	assert.Empty(t, c.SearchKeywords([]string{"spaceship"}))
	assert.Empty(t, c.SearchKeywords([]string{""}))
}

func TestPromptSummary(t *testing.T) {
	c := Default()
	summary := c.PromptSummary()

	assert.True(t, strings.Contains(summary, `"r12m_spending"`))
	assert.True(t, strings.Contains(summary, `"between"`))
	// At most two examples survive into the digest.
	assert.False(t, strings.Contains(summary, "gender is F"))
}

func TestByCategoryAndCategories(t *testing.T) {
	c := Default()

	spending := c.ByCategory("spending")
	require.NotEmpty(t, spending)
	for _, f := range spending {
		assert.Equal(t, "spending", f.Category)
	}

	cats := c.Categories()
	assert.Contains(t, cats, "demographics")
	assert.Contains(t, cats, "membership")
	assert.Contains(t, cats, "risk")
}
