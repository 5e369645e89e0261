package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pmoura/go-recipe-api/internal/types"
)

// ParseAttributeFilter reads the assigned_only query parameter for
// tag/ingredient listings. The value is parsed as an integer; any nonzero
// value enables the filter and a non-integer is a validation failure.
func ParseAttributeFilter(query url.Values) (types.AttributeFilter, error) {
	var filter types.AttributeFilter

	raw := query.Get("assigned_only")
	if raw == "" {
		return filter, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return filter, types.NewFieldError("assigned_only", "must be an integer")
	}
	filter.AssignedOnly = n != 0
	return filter, nil
}

// ParseRecipeFilter reads the tags/ingredients comma-separated id lists for
// recipe listings. Malformed (non-numeric) ids are a validation failure.
func ParseRecipeFilter(query url.Values) (types.RecipeFilter, error) {
	var filter types.RecipeFilter

	tagIDs, err := parseIDList(query.Get("tags"))
	if err != nil {
		return filter, types.NewFieldError("tags", "must be a comma-separated list of integer ids")
	}
	ingredientIDs, err := parseIDList(query.Get("ingredients"))
	if err != nil {
		return filter, types.NewFieldError("ingredients", "must be a comma-separated list of integer ids")
	}

	filter.TagIDs = tagIDs
	filter.IngredientIDs = ingredientIDs
	return filter, nil
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
