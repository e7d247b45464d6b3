package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldWidgetID   = "widget_id"
	FieldDatasetID  = "dataset_id"
	FieldSessionID  = "session_id"
	FieldVersion    = "version"
	FieldRowCount   = "row_count"
	FieldNodeCount  = "node_count"
	FieldLeafCount  = "leaf_count"
	FieldWarnings   = "warnings"
	FieldSource     = "source"
	FieldNodePath   = "node_path"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentWidget  = "widget"
	ComponentPivot   = "pivot"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSource  = "source"
	ComponentCache   = "cache"
	ComponentTrace   = "trace"
	ComponentBackend = "backend"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpFetch     = "fetch"
	OpBuild     = "build"
	OpRender    = "render"
	OpRefresh   = "refresh"
	OpDrilldown = "drilldown"
	OpExpand    = "expand"
	OpToggle    = "toggle_percentage"
	OpSave      = "save"
	OpLoad      = "load"
	OpPrune     = "prune"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithWidget adds the widget and its refresh version.
func (f LogFields) WithWidget(widgetID string, version int64) LogFields {
	f[FieldWidgetID] = widgetID
	f[FieldVersion] = version
	return f
}

// WithBuild adds the shape of a built pivot table.
func (f LogFields) WithBuild(rows, nodes, leaves, warnings int) LogFields {
	f[FieldRowCount] = rows
	f[FieldNodeCount] = nodes
	f[FieldLeafCount] = leaves
	f[FieldWarnings] = warnings
	return f
}

func (f LogFields) WithHTTP(method, path string, status int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
