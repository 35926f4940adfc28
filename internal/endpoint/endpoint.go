// Package endpoint defines the contracts between the target runtime and its
// connectors.
//
// Architecture:
//
//	Endpoint        - Base contract (ID, ValidateConfig, Capabilities, Descriptor)
//	SourceEndpoint  - Read data (ListDatasets, GetSchema, Read)
//	SinkEndpoint    - Write data (OpenStream -> RecordSink)
//	RecordSink      - Per-stream buffered writer (WriteRecord, FlushBatch, Close)
//
// Connectors register a Factory against an endpoint ID and are instantiated
// from loose configuration maps by the runtime.
package endpoint

import "context"

// Endpoint is the base contract that all connectors must implement.
type Endpoint interface {
	// ID returns the unique endpoint identifier (e.g., "file.ldif", "jdbc.postgres").
	ID() string

	// ValidateConfig tests configuration validity and, where applicable, connectivity.
	ValidateConfig(ctx context.Context, config map[string]any) (*ValidationResult, error)

	// GetCapabilities returns the set of supported operations.
	GetCapabilities() *Capabilities

	// GetDescriptor returns metadata about this endpoint type.
	GetDescriptor() *Descriptor

	// Close releases any resources held by the endpoint.
	Close() error
}

// SourceEndpoint can read data from an external system.
type SourceEndpoint interface {
	Endpoint

	// ListDatasets returns available datasets/tables/collections.
	ListDatasets(ctx context.Context) ([]*Dataset, error)

	// GetSchema returns the schema for a specific dataset.
	GetSchema(ctx context.Context, datasetID string) (*Schema, error)

	// Read streams records from a dataset.
	// Returns an Iterator that must be closed after use.
	Read(ctx context.Context, req *ReadRequest) (Iterator[Record], error)
}

// SinkEndpoint can write streams of records to an external destination.
type SinkEndpoint interface {
	Endpoint

	// OpenStream returns the sink for the named logical stream, creating it
	// on first use. The schema may be nil for schemaless streams.
	OpenStream(ctx context.Context, streamName string, schema *Schema) (RecordSink, error)
}

// RecordSink is the per-stream write contract. Implementations buffer records
// in memory and materialize output at batch boundaries. A RecordSink is owned
// by a single goroutine for its whole lifetime; no internal locking is done.
type RecordSink interface {
	// WriteRecord buffers one record. Content problems are deferred to flush
	// time; an error here means the sink is closed or internally broken.
	WriteRecord(record Record) error

	// FlushBatch converts buffered records to output and appends them to the
	// destination. Record-level failures are counted, not returned; only
	// destination-level failures surface as errors.
	FlushBatch(ctx context.Context) error

	// Close flushes any remaining buffer and releases the destination.
	// Closing an already-closed sink is a no-op.
	Close(ctx context.Context) (*StreamSummary, error)

	// Stats reports the sink's current counters.
	Stats() StreamStats
}
