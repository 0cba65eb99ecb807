package warehouse

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/kpi"
	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/reference"
)

// The ETL path materializes the KPI columns in application code before load;
// the ELT path loads raw rows and computes the same columns in a view. Both
// renderings of the derivation rules must agree exactly for every row.
func TestETLAndELTModesAgreeOnKPIs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rules := kpi.Rules{SLATargetHours: 72}
	fixture := fixtureRequests(t)

	etlStore, etlDB := testStore(t)
	require.NoError(t, etlStore.EnsureFactSchema(ctx))
	require.NoError(t, etlStore.LoadFacts(ctx, fixture, rules))

	eltStore, eltDB := testStore(t)
	require.NoError(t, eltStore.StageRequests(ctx, fixture))
	require.NoError(t, eltStore.EnsureViews(ctx, rules))

	etlRows := queryFactKPIs(t, etlDB, FactTable)
	eltRows := queryFactKPIs(t, eltDB, FactView)

	require.Len(t, etlRows, len(fixture))
	if diff := cmp.Diff(etlRows, eltRows); diff != "" {
		t.Fatalf("ETL and ELT KPI columns diverge (-etl +elt):\n%s", diff)
	}
}

func TestEnsureViews(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rules := kpi.Rules{SLATargetHours: 72}

	t.Run("views_are_recreatable", func(t *testing.T) {
		t.Parallel()

		store, _ := testStore(t)
		require.NoError(t, store.StageRequests(ctx, fixtureRequests(t)))
		require.NoError(t, store.StageAreaMap(ctx, nil))
		require.NoError(t, store.StageDemographics(ctx, nil))
		require.NoError(t, store.EnsureViews(ctx, rules))
		require.NoError(t, store.EnsureViews(ctx, rules))

		count, err := store.CountRows(ctx, FactView)
		require.NoError(t, err)
		require.Equal(t, int64(5), count)
	})

	t.Run("dim_view_left_join_keeps_unmatched_areas", func(t *testing.T) {
		t.Parallel()

		store, db := testStore(t)
		require.NoError(t, store.StageRequests(ctx, nil))

		areas := []reference.AreaRow{
			{AreaKey: reference.AreaKey{Code: nullInt(8), Name: "NEAR NORTH SIDE"}},
			{AreaKey: reference.AreaKey{Code: nullInt(35), Name: "DOUGLAS"}},
		}
		demographics := []reference.DemographicsRow{
			{
				AreaKey:         reference.AreaKey{Code: nullInt(8), Name: "NEAR NORTH SIDE"},
				PerCapitaIncome: sql.NullFloat64{Float64: 60000, Valid: true},
				HardshipIndex:   sql.NullFloat64{Float64: 2, Valid: true},
			},
		}

		conn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, store.StageAreaMap(ctx, areas))
		require.NoError(t, store.StageDemographics(ctx, demographics))
		require.NoError(t, store.EnsureViews(ctx, rules))

		rows, err := conn.QueryContext(ctx,
			"SELECT community_area_int, per_capita_income IS NULL FROM dim_area_extended_v ORDER BY community_area_int")
		require.NoError(t, err)
		defer rows.Close()

		type dimRow struct {
			code       int64
			incomeNull bool
		}
		var got []dimRow
		for rows.Next() {
			var r dimRow
			require.NoError(t, rows.Scan(&r.code, &r.incomeNull))
			got = append(got, r)
		}
		require.NoError(t, rows.Err())
		require.Equal(t, []dimRow{{8, false}, {35, true}}, got)
	})
}
