package audience

import (
	"fmt"

	"crowdpilot/internal/catalog"
)

// Rule is one resolved targeting predicate. Rules are immutable once built;
// construction goes through NewRule so the feature name and operator are
// always validated against the catalog.
type Rule struct {
	FeatureName string               `json:"feature_name"`
	FeatureType catalog.FeatureType  `json:"feature_type"`
	Operator    string               `json:"operator"`
	Value       any                  `json:"value"`
	Description string               `json:"description"`
}

// ErrUnknownFeature marks a rule naming a feature absent from the catalog.
// Callers drop such rules rather than failing the whole match.
type ErrUnknownFeature struct{ Name string }

func (e ErrUnknownFeature) Error() string {
	return fmt.Sprintf("unknown feature %q", e.Name)
}

// ErrInvalidOperator marks an operator not allowed for the feature's type.
type ErrInvalidOperator struct {
	Name     string
	Type     catalog.FeatureType
	Operator string
}

func (e ErrInvalidOperator) Error() string {
	return fmt.Sprintf("operator %q not valid for %s feature %q", e.Operator, e.Type, e.Name)
}

// NewRule builds a validated rule. The feature must exist in the catalog
// and the operator must belong to the feature type's operator set.
func NewRule(cat *catalog.Catalog, name, operator string, value any, description string) (Rule, error) {
	feat, ok := cat.Lookup(name)
	if !ok {
		return Rule{}, ErrUnknownFeature{Name: name}
	}
	if !feat.Type.ValidOperator(operator) {
		return Rule{}, ErrInvalidOperator{Name: name, Type: feat.Type, Operator: operator}
	}
	return Rule{
		FeatureName: name,
		FeatureType: feat.Type,
		Operator:    operator,
		Value:       value,
		Description: description,
	}, nil
}
