package reference

import (
	"database/sql"
	"strconv"
	"strings"
)

// AreaKey is the canonical join key between the area reference tables: a
// nullable integer code plus a normalized upper-cased name. Code coercion
// failures become an absent code, not an error.
type AreaKey struct {
	Code sql.NullInt64
	Name string
}

// AreaRow is one row of the authoritative code-to-name lookup.
type AreaRow struct {
	AreaKey
}

// DemographicsRow is one row of the demographic reference table.
type DemographicsRow struct {
	AreaKey
	PerCapitaIncome sql.NullFloat64
	HardshipIndex   sql.NullFloat64
}

// ExtractAreaMap resolves the code/name columns of the area lookup table and
// returns its rows with canonicalized keys.
func ExtractAreaMap(t *Table) ([]AreaRow, error) {
	cols, err := Resolve(t.Headers, RoleAreaCode, RoleAreaName)
	if err != nil {
		return nil, err
	}
	codeIdx := t.Index(cols[RoleAreaCode])
	nameIdx := t.Index(cols[RoleAreaName])

	rows := make([]AreaRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		rows = append(rows, AreaRow{AreaKey: areaKey(field(row, codeIdx), field(row, nameIdx))})
	}
	return rows, nil
}

// ExtractDemographics resolves the code/name/income/hardship columns of the
// demographic table and returns its rows with canonicalized keys.
func ExtractDemographics(t *Table) ([]DemographicsRow, error) {
	cols, err := Resolve(t.Headers, RoleAreaCode, RoleAreaName, RoleIncome, RoleHardship)
	if err != nil {
		return nil, err
	}
	codeIdx := t.Index(cols[RoleAreaCode])
	nameIdx := t.Index(cols[RoleAreaName])
	incomeIdx := t.Index(cols[RoleIncome])
	hardshipIdx := t.Index(cols[RoleHardship])

	rows := make([]DemographicsRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		rows = append(rows, DemographicsRow{
			AreaKey:         areaKey(field(row, codeIdx), field(row, nameIdx)),
			PerCapitaIncome: nullFloat(field(row, incomeIdx)),
			HardshipIndex:   nullFloat(field(row, hardshipIdx)),
		})
	}
	return rows, nil
}

func areaKey(code, name string) AreaKey {
	return AreaKey{
		Code: nullInt(code),
		Name: NormalizeName(name),
	}
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func nullInt(s string) sql.NullInt64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullInt64{}
	}
	// Boundary exports carry codes like "35.0".
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return sql.NullInt64{Int64: int64(f), Valid: true}
	}
	return sql.NullInt64{}
}

func nullFloat(s string) sql.NullFloat64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
