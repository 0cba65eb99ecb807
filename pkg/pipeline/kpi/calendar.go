package kpi

import (
	"database/sql"
	"time"
)

// Calendar is the decomposition of one timestamp into warehouse date/time
// split columns. All fields are null when the timestamp is absent.
type Calendar struct {
	DateKey  sql.NullInt64  // yyyymmdd
	DateOnly sql.NullString // yyyy-mm-dd
	TimeOnly sql.NullString // hh:mm:ss
	Hour     sql.NullInt64
	DOW      sql.NullInt64 // Monday = 0 .. Sunday = 6
	Month    sql.NullInt64
}

// Split decomposes t into calendar columns. A nil t yields all-null columns.
func Split(t *time.Time) Calendar {
	if t == nil {
		return Calendar{}
	}

	y, m, d := t.Date()
	return Calendar{
		DateKey:  sql.NullInt64{Int64: int64(y*10000 + int(m)*100 + d), Valid: true},
		DateOnly: sql.NullString{String: t.Format("2006-01-02"), Valid: true},
		TimeOnly: sql.NullString{String: t.Format("15:04:05"), Valid: true},
		Hour:     sql.NullInt64{Int64: int64(t.Hour()), Valid: true},
		DOW:      sql.NullInt64{Int64: int64((int(t.Weekday()) + 6) % 7), Valid: true},
		Month:    sql.NullInt64{Int64: int64(m), Valid: true},
	}
}
