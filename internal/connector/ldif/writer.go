package ldif

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// fileWriter owns the output file(s) for one stream. The file is opened
// lazily on the first appended entry and rotated when the configured
// thresholds are crossed at a flush boundary.
type fileWriter struct {
	opts   *Options
	stream string
	logger *zap.Logger
	enc    *Encoder

	file         *os.File
	path         string
	bytes        int64
	fileEntries  int
	totalEntries int
	seq          int
	paths        []string
}

func newFileWriter(opts *Options, stream string, logger *zap.Logger) *fileWriter {
	return &fileWriter{
		opts:   opts,
		stream: stream,
		logger: logger,
		enc:    NewEncoder(opts),
	}
}

// Append renders and writes entries to the current file, rotating between
// entries when a threshold is crossed. Returns the number written.
func (w *fileWriter) Append(entries []*Entry) (int, error) {
	written := 0
	for _, entry := range entries {
		if err := w.ensureOpen(); err != nil {
			return written, err
		}
		n, err := w.file.WriteString(entry.Render(w.enc))
		if err != nil {
			return written, wrapError(CodeFileWriteFailed, true, fmt.Errorf("append to %s: %w", w.path, err))
		}
		w.bytes += int64(n)
		w.fileEntries++
		w.totalEntries++
		written++
		if err := w.rotateIfNeeded(); err != nil {
			return written, err
		}
	}
	return written, nil
}

// Close finalizes the current file. No file is created for a stream that
// never produced an entry; that is deliberate, not incidental.
func (w *fileWriter) Close() error {
	return w.closeCurrent()
}

// Path returns the current output file path, empty before the lazy open.
func (w *fileWriter) Path() string { return w.path }

// Bytes returns the size of the current output file.
func (w *fileWriter) Bytes() int64 { return w.bytes }

// Paths lists every file this writer produced, in order.
func (w *fileWriter) Paths() []string { return w.paths }

func (w *fileWriter) ensureOpen() error {
	if w.file != nil {
		return nil
	}
	if err := os.MkdirAll(w.opts.OutputPath, 0o755); err != nil {
		return wrapError(CodeOutputPathInvalid, false, fmt.Errorf("create output path %s: %w", w.opts.OutputPath, err))
	}
	path := filepath.Join(w.opts.OutputPath, w.fileName())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return wrapError(CodeFileWriteFailed, false, fmt.Errorf("open %s: %w", path, err))
	}
	w.file = f
	w.path = path
	w.bytes = 0
	w.fileEntries = 0
	w.paths = append(w.paths, path)
	w.logger.Info("opened ldif output file", zap.String("path", path))
	return w.writeHeader()
}

func (w *fileWriter) writeHeader() error {
	var b strings.Builder
	b.WriteString("version: 1\n")
	if w.opts.IncludeTimestamps {
		b.WriteString("# Generated on: " + time.Now().UTC().Format(time.RFC3339) + "\n")
		b.WriteString("# target-ldif stream: " + w.stream + "\n")
	}
	b.WriteString("\n")
	n, err := w.file.WriteString(b.String())
	if err != nil {
		return wrapError(CodeFileWriteFailed, true, fmt.Errorf("write header to %s: %w", w.path, err))
	}
	w.bytes += int64(n)
	return nil
}

func (w *fileWriter) rotateIfNeeded() error {
	if w.opts.MaxEntriesPerFile > 0 && w.fileEntries >= w.opts.MaxEntriesPerFile {
		return w.rotate()
	}
	if w.opts.MaxBytesPerFile > 0 && w.bytes >= w.opts.MaxBytesPerFile {
		return w.rotate()
	}
	return nil
}

func (w *fileWriter) rotate() error {
	if err := w.closeCurrent(); err != nil {
		return err
	}
	w.seq++
	w.logger.Info("rotating ldif output file", zap.String("stream", w.stream), zap.Int("seq", w.seq))
	return nil
}

func (w *fileWriter) closeCurrent() error {
	if w.file == nil {
		return nil
	}
	var trailerErr error
	if w.opts.IncludeTimestamps {
		trailer := fmt.Sprintf("# Total entries: %d\n", w.fileEntries)
		n, err := w.file.WriteString(trailer)
		w.bytes += int64(n)
		if err != nil {
			trailerErr = wrapError(CodeFileWriteFailed, true, fmt.Errorf("write trailer to %s: %w", w.path, err))
		}
	}
	closeErr := w.file.Close()
	w.file = nil
	if trailerErr != nil {
		return trailerErr
	}
	if closeErr != nil {
		return wrapError(CodeFileWriteFailed, false, fmt.Errorf("close %s: %w", w.path, closeErr))
	}
	return nil
}

// fileName resolves the naming pattern for the current sequence: the
// sanitized stream name and a UTC timestamp, with a numeric suffix once the
// writer has rotated.
func (w *fileWriter) fileName() string {
	name := w.opts.FileNamingPattern
	name = strings.ReplaceAll(name, "{stream_name}", sanitizeStreamName(w.stream))
	name = strings.ReplaceAll(name, "{timestamp}", time.Now().UTC().Format("20060102T150405"))
	if w.seq > 0 {
		ext := filepath.Ext(name)
		name = fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(name, ext), w.seq, ext)
	}
	return name
}

// sanitizeStreamName keeps alphanumerics, '-' and '_'; an empty result falls
// back to "stream".
func sanitizeStreamName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "stream"
	}
	return out
}
