package endpoint

import "time"

// Record represents a single data record as key-value pairs.
// Values are scalars, lists of scalars, or nil.
type Record = map[string]any

// Iterator provides streaming access to records.
type Iterator[T any] interface {
	// Next advances to the next record. Returns false when done or on error.
	Next() bool

	// Value returns the current record. Only valid after Next() returns true.
	Value() T

	// Err returns any error encountered during iteration.
	Err() error

	// Close releases resources. Must be called when done.
	Close() error
}

// --- Validation Types ---

// ValidationResult reports the outcome of a configuration check.
type ValidationResult struct {
	Valid           bool
	Message         string
	Code            string
	Retryable       bool
	DetectedVersion string

	// Warnings are non-fatal findings (e.g., a schema without identifier
	// fields). The caller decides their severity.
	Warnings []string
}

// --- Dataset Types ---

type Dataset struct {
	ID   string
	Name string
	Kind string // "table", "view", "stream"
}

// --- Schema Types ---

// Schema declares the fields of a stream or dataset. It is advisory: sinks
// use it for field ordering and sanity checks, not strict type coercion.
type Schema struct {
	Fields        []*FieldDefinition
	KeyProperties []string
}

type FieldDefinition struct {
	Name     string
	DataType string // "string", "integer", "number", "boolean", "timestamp"
	Nullable bool
	Position int
}

// FieldNames returns the declared field names in position order.
func (s *Schema) FieldNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// --- Read Types ---

type ReadRequest struct {
	DatasetID string
	Limit     int64
}

// --- Stream Accounting ---

// StreamStats are the live per-stream counters maintained by a RecordSink.
type StreamStats struct {
	Buffered    int
	Processed   int64
	Succeeded   int64
	Failed      int64
	Batches     int64
	LastFlush   time.Time
	FilePath    string
	FileBytes   int64
	FilesOpened int
}

// StreamSummary is the final per-stream result returned on Close.
type StreamSummary struct {
	StreamName string
	Processed  int64
	Succeeded  int64
	Failed     int64
	Batches    int64
	Files      []string
	Bytes      int64
}
