package reference

import "strings"

// Role names one logical column a reference table must supply.
type Role string

const (
	RoleAreaCode Role = "area code"
	RoleAreaName Role = "area name"
	RoleIncome   Role = "per capita income"
	RoleHardship Role = "hardship index"
)

// Aliases maps each role to its known source-column spellings, ordered by
// specificity. Matching is first-alias-wins against whitespace-normalized,
// lower-cased headers; there is no scoring. New source variants are added
// here, not in the resolution logic.
var Aliases = map[Role][]string{
	RoleAreaCode: {
		"area_numbe", "area numbe", "area_num", "area num", "area_num_1", "area num 1",
		"community area number", "community area num", "community_area_number",
	},
	RoleAreaName: {
		"community", "community area", "community_area_name", "community area name", "name",
	},
	RoleIncome: {
		"per capita income", "per_capita_income", "per capita income estimate",
	},
	RoleHardship: {
		"hardship index", "hardship_index",
	},
}

// normalizeHeader trims, lower-cases, and collapses internal whitespace.
func normalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeName canonicalizes an area name for joins and storage: trimmed,
// collapsed internal whitespace, upper-cased.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// Resolve locates the source column for each requested role. The returned map
// carries the original (unnormalized) header names. A role with no matching
// alias yields a *SchemaResolutionError listing every available header.
func Resolve(headers []string, roles ...Role) (map[Role]string, error) {
	lookup := make(map[string]string, len(headers))
	for _, h := range headers {
		norm := normalizeHeader(h)
		if _, ok := lookup[norm]; !ok {
			lookup[norm] = h
		}
	}

	resolved := make(map[Role]string, len(roles))
	for _, role := range roles {
		found := false
		for _, alias := range Aliases[role] {
			if original, ok := lookup[alias]; ok {
				resolved[role] = original
				found = true
				break
			}
		}
		if !found {
			return nil, &SchemaResolutionError{Role: role, Headers: headers}
		}
	}
	return resolved, nil
}
