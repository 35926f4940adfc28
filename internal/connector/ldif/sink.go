package ldif

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowline/target-ldif/internal/endpoint"
)

type streamPhase int

const (
	phaseUninitialized streamPhase = iota
	phaseOpen
	phaseClosed
)

// StreamSink buffers records for one logical stream and materializes them as
// LDIF entries at batch boundaries. It is confined to a single goroutine for
// its lifetime; streams never share state.
type StreamSink struct {
	name   string
	schema *endpoint.Schema
	opts   *Options
	asm    *Assembler
	writer *fileWriter
	logger *zap.Logger

	phase      streamPhase
	fieldOrder []string
	buffer     []endpoint.Record
	stats      endpoint.StreamStats
}

var _ endpoint.RecordSink = (*StreamSink)(nil)

func newStreamSink(name string, schema *endpoint.Schema, opts *Options, custom map[string]TransformFunc, logger *zap.Logger) *StreamSink {
	logger = logger.Named(sanitizeStreamName(name))
	return &StreamSink{
		name:       name,
		schema:     schema,
		opts:       opts,
		asm:        NewAssembler(opts, custom),
		writer:     newFileWriter(opts, name, logger),
		logger:     logger,
		phase:      phaseUninitialized,
		fieldOrder: schema.FieldNames(),
	}
}

// WriteRecord buffers the record; content problems are deferred to flush
// time so a bad record can never fail the intake path.
func (s *StreamSink) WriteRecord(record endpoint.Record) error {
	if s.phase == phaseClosed {
		return wrapError(CodeSinkClosed, false, fmt.Errorf("stream %s is closed", s.name))
	}
	s.phase = phaseOpen
	s.buffer = append(s.buffer, record)
	s.stats.Processed++
	s.stats.Buffered = len(s.buffer)
	return nil
}

// FlushBatch assembles every buffered record and appends the successful
// entries to the stream's file. Assembly failures are counted and logged,
// never aborting the batch; only file-level failures are returned.
func (s *StreamSink) FlushBatch(ctx context.Context) error {
	if s.phase == phaseClosed {
		return wrapError(CodeSinkClosed, false, fmt.Errorf("stream %s is closed", s.name))
	}
	if len(s.buffer) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries := make([]*Entry, 0, len(s.buffer))
	for _, record := range s.buffer {
		for _, finding := range ValidateRecord(record) {
			s.logger.Warn("record finding", zap.String("finding", finding))
		}
		entry, err := s.asm.Assemble(record, s.fieldOrder)
		if err != nil {
			s.stats.Failed++
			s.logger.Warn("skipping record", zap.Error(err))
			continue
		}
		if entry.Dropped > 0 {
			s.logger.Debug("attributes dropped by transforms",
				zap.String("dn", entry.DN), zap.Int("dropped", entry.Dropped))
		}
		entries = append(entries, entry)
	}

	written, err := s.writer.Append(entries)
	s.stats.Succeeded += int64(written)
	s.stats.Batches++
	s.stats.LastFlush = time.Now()
	s.stats.FilePath = s.writer.Path()
	s.stats.FileBytes = s.writer.Bytes()
	s.stats.FilesOpened = len(s.writer.Paths())
	s.buffer = s.buffer[:0]
	s.stats.Buffered = 0
	if err != nil {
		return err
	}
	return nil
}

// Close flushes the remaining buffer and releases the file handle. Closing a
// stream that never saw a record is valid and produces no file. Idempotent.
func (s *StreamSink) Close(ctx context.Context) (*endpoint.StreamSummary, error) {
	if s.phase == phaseClosed {
		return s.summary(), nil
	}
	flushErr := s.FlushBatch(ctx)
	closeErr := s.writer.Close()
	s.phase = phaseClosed

	s.logger.Info("stream closed",
		zap.Int64("processed", s.stats.Processed),
		zap.Int64("succeeded", s.stats.Succeeded),
		zap.Int64("failed", s.stats.Failed),
		zap.Strings("files", s.writer.Paths()))

	if flushErr != nil {
		return s.summary(), flushErr
	}
	return s.summary(), closeErr
}

// Stats reports the sink's live counters.
func (s *StreamSink) Stats() endpoint.StreamStats {
	return s.stats
}

func (s *StreamSink) summary() *endpoint.StreamSummary {
	return &endpoint.StreamSummary{
		StreamName: s.name,
		Processed:  s.stats.Processed,
		Succeeded:  s.stats.Succeeded,
		Failed:     s.stats.Failed,
		Batches:    s.stats.Batches,
		Files:      s.writer.Paths(),
		Bytes:      s.stats.FileBytes,
	}
}

// Endpoint implements the file.ldif sink connector.
type Endpoint struct {
	opts    *Options
	custom  map[string]TransformFunc
	logger  *zap.Logger
	streams map[string]*StreamSink
}

var _ endpoint.SinkEndpoint = (*Endpoint)(nil)

// New creates an LDIF sink endpoint from raw parameters.
func New(params map[string]any) (*Endpoint, error) {
	opts := ParseOptions(params)
	if result := opts.Validate(); !result.Valid {
		return nil, wrapError(result.Code, false, fmt.Errorf("%s", result.Message))
	}
	return &Endpoint{
		opts:    opts,
		logger:  zap.NewNop(),
		streams: map[string]*StreamSink{},
	}, nil
}

// SetLogger injects the runtime's structured logger.
func (e *Endpoint) SetLogger(logger *zap.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetTransforms installs custom transforms, keyed by resolved attribute
// name. Must be called before the first OpenStream.
func (e *Endpoint) SetTransforms(custom map[string]TransformFunc) {
	e.custom = custom
}

// ID returns the endpoint identifier.
func (e *Endpoint) ID() string { return "file.ldif" }

// ValidateConfig checks a configuration map without touching the filesystem.
func (e *Endpoint) ValidateConfig(_ context.Context, config map[string]any) (*endpoint.ValidationResult, error) {
	return ParseOptions(config).Validate(), nil
}

// GetCapabilities returns the sink capability set.
func (e *Endpoint) GetCapabilities() *endpoint.Capabilities {
	return &endpoint.Capabilities{
		SupportsWrite:    true,
		SupportsBatching: true,
		SupportsRotation: true,
		DefaultBatchSize: defaultBatchSize,
	}
}

// GetDescriptor describes the file.ldif endpoint type.
func (e *Endpoint) GetDescriptor() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		ID:          "file.ldif",
		Family:      "file",
		Title:       "LDIF File Sink",
		Description: "Writes streamed records as RFC 2849 LDIF entries, one file per stream",
		Categories:  []string{"file", "directory"},
		Fields: []*endpoint.FieldDescriptor{
			{Key: "dn_template", Label: "DN Template", ValueType: "string", Required: true, Description: "Template with {field} placeholders, e.g. uid={uid},ou=users,dc=example,dc=com"},
			{Key: "output_path", Label: "Output Path", ValueType: "string", DefaultValue: defaultOutputPath},
			{Key: "file_naming_pattern", Label: "File Naming Pattern", ValueType: "string", DefaultValue: defaultNamingPattern},
			{Key: "base_dn", Label: "Base DN", ValueType: "string", Description: "Appended to the resolved relative DN"},
			{Key: "attribute_mapping", Label: "Attribute Mapping", ValueType: "string", Description: "Field-to-attribute name table"},
			{Key: "object_classes", Label: "Object Classes", ValueType: "string", Description: "Object classes for every entry (default: inetOrgPerson, person)"},
			{Key: "ldif_options", Label: "LDIF Options", ValueType: "string", Description: "line_length, base64_encode, include_timestamps, encoding, fold_lines"},
		},
		SampleConfig: map[string]any{
			"output_path": defaultOutputPath,
			"dn_template": "uid={uid},ou=users,dc=example,dc=com",
			"ldif_options": map[string]any{
				"line_length": defaultLineLength,
			},
		},
	}
}

// OpenStream returns the sink for streamName, creating it on first use.
// Schema findings are surfaced as warnings, not failures.
func (e *Endpoint) OpenStream(_ context.Context, streamName string, schema *endpoint.Schema) (endpoint.RecordSink, error) {
	if sink, ok := e.streams[streamName]; ok {
		return sink, nil
	}
	for _, finding := range ValidateSchema(schema) {
		e.logger.Warn("schema finding", zap.String("stream", streamName), zap.String("finding", finding))
	}
	sink := newStreamSink(streamName, schema, e.opts, e.custom, e.logger)
	e.streams[streamName] = sink
	return sink, nil
}

// Close closes every stream that is still open.
func (e *Endpoint) Close() error {
	var firstErr error
	for _, sink := range e.streams {
		if _, err := sink.Close(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
