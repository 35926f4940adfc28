// Package postgres implements the jdbc.postgres source endpoint: table
// discovery and row streaming over database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver
	"golang.org/x/time/rate"

	"github.com/flowline/target-ldif/internal/endpoint"
)

// Source reads rows from PostgreSQL tables and views.
type Source struct {
	cfg *Config
	db  *sql.DB
}

var _ endpoint.SourceEndpoint = (*Source)(nil)

// New opens a pooled connection from loose parameters. The connection is not
// probed here; use ValidateConfig for that.
func New(params map[string]any) (*Source, error) {
	cfg := ParseConfig(params)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Source{cfg: cfg, db: db}, nil
}

// ID returns the endpoint identifier.
func (s *Source) ID() string { return "jdbc.postgres" }

// Close releases the connection pool.
func (s *Source) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ValidateConfig probes connectivity and reports the server version.
func (s *Source) ValidateConfig(ctx context.Context, _ map[string]any) (*endpoint.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.ConnectTimeout)*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return &endpoint.ValidationResult{Valid: false, Message: err.Error(), Retryable: true}, nil
	}
	var version string
	s.db.QueryRowContext(ctx, "SELECT version()").Scan(&version)
	return &endpoint.ValidationResult{
		Valid:           true,
		Message:         "Connection successful",
		DetectedVersion: version,
	}, nil
}

// GetCapabilities returns the source capability set.
func (s *Source) GetCapabilities() *endpoint.Capabilities {
	return &endpoint.Capabilities{
		SupportsRead:     true,
		SupportsPreview:  true,
		DefaultBatchSize: s.cfg.FetchSize,
	}
}

// GetDescriptor describes the jdbc.postgres endpoint type.
func (s *Source) GetDescriptor() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		ID:          "jdbc.postgres",
		Family:      "jdbc",
		Title:       "PostgreSQL Source",
		Description: "Reads tables and views from PostgreSQL for export",
		Categories:  []string{"database", "sql"},
		Fields: []*endpoint.FieldDescriptor{
			{Key: "dsn", Label: "Connection String", ValueType: "string", Required: true, Sensitive: true},
			{Key: "fetch_size", Label: "Fetch Size", ValueType: "number", DefaultValue: "10000"},
			{Key: "records_per_sec", Label: "Rate Limit", ValueType: "number", Description: "Maximum records per second (0 = unlimited)"},
		},
	}
}

// ListDatasets returns user tables and views, excluding system schemas.
func (s *Source) ListDatasets(ctx context.Context) ([]*endpoint.Dataset, error) {
	const query = `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*endpoint.Dataset
	for rows.Next() {
		var schema, name, tableType string
		if err := rows.Scan(&schema, &name, &tableType); err != nil {
			return nil, err
		}
		kind := "table"
		if strings.Contains(strings.ToLower(tableType), "view") {
			kind = "view"
		}
		datasets = append(datasets, &endpoint.Dataset{
			ID:   fmt.Sprintf("%s.%s", schema, name),
			Name: name,
			Kind: kind,
		})
	}
	return datasets, rows.Err()
}

// GetSchema returns column definitions for one table in ordinal order.
func (s *Source) GetSchema(ctx context.Context, datasetID string) (*endpoint.Schema, error) {
	schemaName, table, err := splitDatasetID(datasetID)
	if err != nil {
		return nil, err
	}
	const query = `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`
	rows, err := s.db.QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("get schema: %w", err)
	}
	defer rows.Close()

	schema := &endpoint.Schema{}
	for rows.Next() {
		var f endpoint.FieldDefinition
		var isNullable string
		if err := rows.Scan(&f.Name, &f.DataType, &isNullable, &f.Position); err != nil {
			return nil, err
		}
		f.Nullable = isNullable == "YES"
		f.DataType = genericType(f.DataType)
		schema.Fields = append(schema.Fields, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(schema.Fields) == 0 {
		return nil, fmt.Errorf("dataset %s not found", datasetID)
	}
	return schema, nil
}

// Read streams rows from the dataset, optionally rate limited.
func (s *Source) Read(ctx context.Context, req *endpoint.ReadRequest) (endpoint.Iterator[endpoint.Record], error) {
	schemaName, table, err := splitDatasetID(req.DatasetID)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT * FROM %s.%s`, quoteIdent(schemaName), quoteIdent(table))
	if req.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, req.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.DatasetID, err)
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}

	var limiter *rate.Limiter
	if s.cfg.RecordsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RecordsPerSec), s.cfg.RecordsPerSec)
	}
	return &rowIterator{ctx: ctx, rows: rows, columns: columns, limiter: limiter}, nil
}

// rowIterator adapts sql.Rows to the generic iterator contract.
type rowIterator struct {
	ctx     context.Context
	rows    *sql.Rows
	columns []string
	limiter *rate.Limiter
	current endpoint.Record
	err     error
}

func (it *rowIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.limiter != nil {
		if err := it.limiter.Wait(it.ctx); err != nil {
			it.err = err
			return false
		}
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}

	values := make([]any, len(it.columns))
	ptrs := make([]any, len(it.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		it.err = err
		return false
	}

	record := make(endpoint.Record, len(it.columns))
	for i, col := range it.columns {
		record[col] = normalizeValue(values[i])
	}
	it.current = record
	return true
}

func (it *rowIterator) Value() endpoint.Record { return it.current }
func (it *rowIterator) Err() error             { return it.err }
func (it *rowIterator) Close() error           { return it.rows.Close() }

// normalizeValue converts driver types to the scalar forms sinks expect.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	default:
		return v
	}
}

func splitDatasetID(datasetID string) (schema, table string, err error) {
	parts := strings.SplitN(datasetID, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid dataset id %q, expected schema.table", datasetID)
	}
	return parts[0], parts[1], nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// genericType maps PostgreSQL column types onto the schema's generic names.
func genericType(pgType string) string {
	switch t := strings.ToLower(pgType); {
	case strings.Contains(t, "timestamp"), t == "date":
		return "timestamp"
	case t == "boolean":
		return "boolean"
	case strings.Contains(t, "int"):
		return "integer"
	case t == "numeric", t == "real", t == "double precision":
		return "number"
	default:
		return "string"
	}
}
