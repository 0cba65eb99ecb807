package warehouse

// Target schema objects. Every run drops and recreates its objects
// unconditionally; "load" always means full replace of the extent.
const (
	FactTable = "fact_requests"
	DimTable  = "dim_area_extended"

	StgRequestsTable     = "stg_requests"
	StgDemographicsTable = "stg_demographics"
	StgAreaMapTable      = "stg_area_map"

	FactView = "fact_requests_v"
	DimView  = "dim_area_extended_v"
)

const createFactSQL = `CREATE TABLE fact_requests (
	sr_number VARCHAR PRIMARY KEY,
	request_type_name VARCHAR,
	owner_dept_name VARCHAR,
	status VARCHAR,

	created_date TIMESTAMP,
	closed_date TIMESTAMP,

	created_date_key INTEGER,
	created_date_only VARCHAR,
	created_time VARCHAR,
	created_hour INTEGER,
	created_dow INTEGER,
	created_month INTEGER,

	closed_date_key INTEGER,
	closed_date_only VARCHAR,
	closed_time VARCHAR,
	closed_hour INTEGER,
	closed_dow INTEGER,
	closed_month INTEGER,

	ward_int INTEGER,
	community_area_int INTEGER,

	resolution_time_h DOUBLE,
	sla_target_h DOUBLE,
	open_flag INTEGER,
	sla_met INTEGER
)`

// factColumns is the DDL column order; staged rows must carry every one.
var factColumns = []string{
	"sr_number",
	"request_type_name",
	"owner_dept_name",
	"status",
	"created_date",
	"closed_date",
	"created_date_key",
	"created_date_only",
	"created_time",
	"created_hour",
	"created_dow",
	"created_month",
	"closed_date_key",
	"closed_date_only",
	"closed_time",
	"closed_hour",
	"closed_dow",
	"closed_month",
	"ward_int",
	"community_area_int",
	"resolution_time_h",
	"sla_target_h",
	"open_flag",
	"sla_met",
}

const createDimSQL = `CREATE TABLE dim_area_extended (
	community_area_int INTEGER PRIMARY KEY,
	community_area_name VARCHAR,
	per_capita_income DOUBLE,
	hardship_index DOUBLE
)`

var dimColumns = []string{
	"community_area_int",
	"community_area_name",
	"per_capita_income",
	"hardship_index",
}

const createStgRequestsSQL = `CREATE TABLE stg_requests (
	sr_number VARCHAR,
	sr_type VARCHAR,
	owner_department VARCHAR,
	status VARCHAR,
	created_date TIMESTAMP,
	closed_date TIMESTAMP,
	last_modified_date TIMESTAMP,
	ward INTEGER,
	community_area INTEGER
)`

var stgRequestsColumns = []string{
	"sr_number",
	"sr_type",
	"owner_department",
	"status",
	"created_date",
	"closed_date",
	"last_modified_date",
	"ward",
	"community_area",
}

const createStgDemographicsSQL = `CREATE TABLE stg_demographics (
	community_area_int INTEGER,
	community_area_name VARCHAR,
	per_capita_income DOUBLE,
	hardship_index DOUBLE
)`

var stgDemographicsColumns = []string{
	"community_area_int",
	"community_area_name",
	"per_capita_income",
	"hardship_index",
}

const createStgAreaMapSQL = `CREATE TABLE stg_area_map (
	community_area_int INTEGER,
	community_area_name VARCHAR
)`

var stgAreaMapColumns = []string{
	"community_area_int",
	"community_area_name",
}

const createDimViewSQL = `CREATE OR REPLACE VIEW dim_area_extended_v AS
SELECT
	m.community_area_int,
	m.community_area_name,
	a.per_capita_income,
	a.hardship_index
FROM stg_area_map m
LEFT JOIN stg_demographics a
	ON m.community_area_int = a.community_area_int
	AND upper(m.community_area_name) = upper(a.community_area_name)`
