// Package ldif implements the file.ldif sink connector: it converts streamed
// records into RFC 2849 LDIF entries and appends them to one output file per
// logical stream.
//
// The conversion pipeline is
//
//	BuildDN    - resolve the DN template against the record
//	Normalize  - map field names to attribute names, apply value transforms
//	Assemble   - combine DN, object classes and attributes into an Entry
//	Encoder    - RFC 2849 value encoding (plain, folded, or base64)
//
// StreamSink drives the pipeline per stream: records are buffered in memory
// and flushed to the file at batch boundaries or on close. Record-level
// failures are counted and skipped; only file-level failures fail a stream.
package ldif
