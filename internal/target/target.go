// Package target hosts the run loop: it decodes tap messages from stdin,
// routes records to per-stream sinks, and passes state through once the
// records preceding it are durable.
package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowline/target-ldif/internal/config"
	"github.com/flowline/target-ldif/internal/endpoint"
	"github.com/flowline/target-ldif/internal/publish"
	"github.com/flowline/target-ldif/internal/singer"
)

// RunSummary aggregates the outcome of one target run.
type RunSummary struct {
	RunID     string
	Streams   []*endpoint.StreamSummary
	Malformed int64
	Published []string
}

// TotalProcessed sums record counts across streams.
func (s *RunSummary) TotalProcessed() int64 {
	var n int64
	for _, st := range s.Streams {
		n += st.Processed
	}
	return n
}

// Target owns the sink endpoint and the per-stream routing state for one run.
type Target struct {
	cfg    *config.Config
	logger *zap.Logger
	runID  string

	sink       endpoint.SinkEndpoint
	schemas    map[string]*endpoint.Schema
	streams    map[string]endpoint.RecordSink
	sinceFlush map[string]int
	malformed  int64
}

// New builds a target around the file.ldif sink from the default registry.
func New(cfg *config.Config, logger *zap.Logger) (*Target, error) {
	sink, err := endpoint.DefaultRegistry().CreateSink("file.ldif", cfg.SinkParams())
	if err != nil {
		return nil, fmt.Errorf("create ldif sink: %w", err)
	}
	if aware, ok := sink.(interface{ SetLogger(*zap.Logger) }); ok {
		aware.SetLogger(logger)
	}
	return &Target{
		cfg:        cfg,
		logger:     logger,
		runID:      uuid.NewString(),
		sink:       sink,
		schemas:    map[string]*endpoint.Schema{},
		streams:    map[string]endpoint.RecordSink{},
		sinceFlush: map[string]int{},
	}, nil
}

// RunID identifies this run in logs and published object keys.
func (t *Target) RunID() string { return t.runID }

// Run consumes tap messages from input until EOF and finalizes every stream.
// Malformed lines are counted and skipped; sink file errors abort the run.
func (t *Target) Run(ctx context.Context, input io.Reader, stateOut io.Writer) (*RunSummary, error) {
	t.logger.Info("run started", zap.String("run_id", t.runID))

	dec := singer.NewDecoder(input)
	for {
		msg, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var malformed *singer.MalformedLineError
			if errors.As(err, &malformed) {
				t.malformed++
				t.logger.Warn("skipping malformed input line",
					zap.Int("line", malformed.Line), zap.Error(malformed.Err))
				continue
			}
			return t.finish(ctx, err)
		}
		if err := t.dispatch(ctx, msg, stateOut); err != nil {
			return t.finish(ctx, err)
		}
	}
	return t.finish(ctx, nil)
}

// RunSource exports one dataset from a source endpoint directly, bypassing
// the tap protocol. datasetID doubles as the stream name after sanitization.
func (t *Target) RunSource(ctx context.Context, src endpoint.SourceEndpoint, datasetID string, limit int64) (*RunSummary, error) {
	t.logger.Info("source export started",
		zap.String("run_id", t.runID), zap.String("dataset", datasetID))

	schema, err := src.GetSchema(ctx, datasetID)
	if err != nil {
		return t.finish(ctx, fmt.Errorf("schema for %s: %w", datasetID, err))
	}
	t.schemas[datasetID] = schema

	iter, err := src.Read(ctx, &endpoint.ReadRequest{DatasetID: datasetID, Limit: limit})
	if err != nil {
		return t.finish(ctx, fmt.Errorf("read %s: %w", datasetID, err))
	}
	defer iter.Close()

	for iter.Next() {
		if err := t.routeRecord(ctx, datasetID, iter.Value()); err != nil {
			return t.finish(ctx, err)
		}
	}
	if err := iter.Err(); err != nil {
		return t.finish(ctx, fmt.Errorf("read %s: %w", datasetID, err))
	}
	return t.finish(ctx, nil)
}

func (t *Target) dispatch(ctx context.Context, msg *singer.Message, stateOut io.Writer) error {
	switch msg.Type {
	case singer.TypeSchema:
		t.schemas[msg.Stream] = msg.Schema.ToSchema(msg.KeyProperties)
		t.logger.Debug("schema registered", zap.String("stream", msg.Stream))
		return nil
	case singer.TypeRecord:
		return t.routeRecord(ctx, msg.Stream, msg.Record)
	case singer.TypeState:
		return t.emitState(ctx, msg.Value, stateOut)
	default:
		return nil
	}
}

func (t *Target) routeRecord(ctx context.Context, stream string, record endpoint.Record) error {
	sink, err := t.sinkFor(ctx, stream)
	if err != nil {
		return err
	}
	if err := sink.WriteRecord(record); err != nil {
		return err
	}
	t.sinceFlush[stream]++
	if t.sinceFlush[stream] >= t.cfg.BatchSize {
		if err := sink.FlushBatch(ctx); err != nil {
			return err
		}
		t.sinceFlush[stream] = 0
	}
	return nil
}

func (t *Target) sinkFor(ctx context.Context, stream string) (endpoint.RecordSink, error) {
	if sink, ok := t.streams[stream]; ok {
		return sink, nil
	}
	schema := t.schemas[stream]
	if schema == nil {
		t.logger.Warn("record arrived before schema", zap.String("stream", stream))
	}
	sink, err := t.sink.OpenStream(ctx, stream, schema)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", stream, err)
	}
	t.streams[stream] = sink
	return sink, nil
}

// emitState flushes every open stream, then forwards the state value with
// per-stream counters merged into its bookmarks. State must never get ahead
// of the records it acknowledges.
func (t *Target) emitState(ctx context.Context, value map[string]any, stateOut io.Writer) error {
	for stream, sink := range t.streams {
		if err := sink.FlushBatch(ctx); err != nil {
			return err
		}
		t.sinceFlush[stream] = 0
	}
	if stateOut == nil {
		return nil
	}
	if value == nil {
		value = map[string]any{}
	}
	value["bookmarks"] = t.bookmarks(value["bookmarks"])
	return singer.WriteState(stateOut, value)
}

func (t *Target) bookmarks(existing any) map[string]any {
	bookmarks, _ := existing.(map[string]any)
	if bookmarks == nil {
		bookmarks = map[string]any{}
	}
	for stream, sink := range t.streams {
		stats := sink.Stats()
		// Merge counters into whatever bookmark the tap already keeps for the
		// stream; its own cursors must survive the passthrough.
		entry, _ := bookmarks[stream].(map[string]any)
		if entry == nil {
			entry = map[string]any{}
		}
		entry["records_processed"] = stats.Processed
		entry["records_succeeded"] = stats.Succeeded
		entry["records_failed"] = stats.Failed
		entry["file"] = stats.FilePath
		bookmarks[stream] = entry
	}
	return bookmarks
}

// finish closes all streams, optionally publishes the produced files, and
// folds runErr (if any) into the returned error.
func (t *Target) finish(ctx context.Context, runErr error) (*RunSummary, error) {
	summary := &RunSummary{RunID: t.runID, Malformed: t.malformed}

	names := make([]string, 0, len(t.streams))
	for name := range t.streams {
		names = append(names, name)
	}
	sort.Strings(names)

	var closeErr error
	var files []string
	for _, name := range names {
		streamSummary, err := t.streams[name].Close(ctx)
		if err != nil && closeErr == nil {
			closeErr = fmt.Errorf("close stream %s: %w", name, err)
		}
		if streamSummary != nil {
			summary.Streams = append(summary.Streams, streamSummary)
			files = append(files, streamSummary.Files...)
		}
	}
	if err := t.sink.Close(); err != nil && closeErr == nil {
		closeErr = err
	}

	if runErr == nil {
		runErr = closeErr
	}

	if runErr == nil && t.cfg.Publish != nil && len(files) > 0 {
		keys, err := t.publishFiles(ctx, files)
		summary.Published = keys
		if err != nil {
			// Files are on disk either way; report and keep the run green.
			t.logger.Error("publishing ldif files failed", zap.Error(err))
		}
	}

	t.logger.Info("run finished",
		zap.String("run_id", t.runID),
		zap.Int("streams", len(summary.Streams)),
		zap.Int64("records", summary.TotalProcessed()),
		zap.Int64("malformed", summary.Malformed),
		zap.Strings("files", files))

	return summary, runErr
}

func (t *Target) publishFiles(ctx context.Context, files []string) ([]string, error) {
	publisher, err := publish.New(ctx, t.cfg.Publish)
	if err != nil {
		return nil, err
	}
	return publisher.Upload(ctx, t.runID, files)
}
