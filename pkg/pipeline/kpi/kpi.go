// Package kpi holds the service-level KPI derivation rules. The rules are
// written once and rendered twice: Derive evaluates them in-process for the
// ETL path, and FactViewSQL emits the identical arithmetic as a DuckDB view
// definition for the ELT path. Both renderers must stay in lockstep; the
// equivalence test in the warehouse package asserts they agree row for row.
package kpi

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSLATargetHours is the run-wide SLA threshold when none is configured.
	DefaultSLATargetHours = 72

	// StatusCompleted is the terminal request status, compared case-insensitively.
	StatusCompleted = "COMPLETED"
)

// Rules carries the per-run constants the derivation depends on.
type Rules struct {
	SLATargetHours float64
}

// Derived holds the KPI columns computed for a single request row.
type Derived struct {
	ResolutionTimeH sql.NullFloat64
	SLATargetH      float64
	SLAMet          int64
	OpenFlag        int64
}

// Derive computes the KPI columns for one request. It is a pure function of
// the row and the run's SLA constant.
//
// A request with no closed timestamp has an undefined resolution time and
// never satisfies the SLA: SLAMet is an explicit 0, not null.
func (r Rules) Derive(status string, created, closed *time.Time) Derived {
	d := Derived{SLATargetH: r.SLATargetHours}

	completed := strings.ToUpper(status) == StatusCompleted
	if !completed {
		d.OpenFlag = 1
	}

	if created != nil && closed != nil {
		d.ResolutionTimeH = sql.NullFloat64{
			Float64: closed.Sub(*created).Seconds() / 3600.0,
			Valid:   true,
		}
	}

	if completed && d.ResolutionTimeH.Valid && d.ResolutionTimeH.Float64 <= r.SLATargetHours {
		d.SLAMet = 1
	}

	return d
}

// resolutionExpr is the SQL rendering of ResolutionTimeH: elapsed hours as a
// double, NULL when either timestamp is absent.
func resolutionExpr(created, closed string) string {
	return fmt.Sprintf("CAST(epoch(%s - %s) AS DOUBLE) / 3600.0", closed, created)
}

// FactViewSQL renders the fact view over a raw staging table. The CASE
// expressions fall through to ELSE 0 on a NULL resolution time, which keeps
// the SQL rendering aligned with Derive's explicit-zero semantics.
func (r Rules) FactViewSQL(viewName, stagingTable string) string {
	resolution := resolutionExpr("created_date", "closed_date")
	return fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS
SELECT
	sr_number,
	sr_type AS request_type_name,
	owner_department AS owner_dept_name,
	status,
	created_date,
	closed_date,
	ward AS ward_int,
	community_area AS community_area_int,
	%s AS resolution_time_h,
	CAST(%g AS DOUBLE) AS sla_target_h,
	CASE
		WHEN upper(status) = '%s' AND %s <= %g THEN 1
		ELSE 0
	END AS sla_met,
	CASE WHEN upper(status) = '%s' THEN 0 ELSE 1 END AS open_flag
FROM %s`,
		viewName,
		resolution,
		r.SLATargetHours,
		StatusCompleted, resolution, r.SLATargetHours,
		StatusCompleted,
		stagingTable)
}
