package endpoint

// Descriptor provides metadata about an endpoint type.
// Used by the CLI's describe output.
type Descriptor struct {
	ID           string
	Family       string
	Title        string
	Description  string
	Categories   []string
	Fields       []*FieldDescriptor
	SampleConfig map[string]any
}

// FieldDescriptor defines a configuration field.
type FieldDescriptor struct {
	Key          string
	Label        string
	ValueType    string // "string", "integer", "boolean", "password"
	Required     bool
	Description  string
	DefaultValue string
	Sensitive    bool
}

// Capabilities describes the operations an endpoint supports.
type Capabilities struct {
	// Source capabilities
	SupportsRead    bool
	SupportsPreview bool

	// Sink capabilities
	SupportsWrite    bool
	SupportsBatching bool
	SupportsRotation bool

	DefaultBatchSize int
}
