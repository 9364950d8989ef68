package log

// Field names shared by every component.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldChallengeID = "challenge_id"
	FieldSlotValue   = "slot_value"
	FieldAmountCents = "amount_cents"
	FieldAction      = "action"
	FieldKeys        = "keys"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSavings   = "savings"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentAdvisor   = "advisor"
	ComponentBackup    = "backup"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

const (
	OpToggle   = "toggle"
	OpWithdraw = "withdraw"
	OpCashOut  = "cash_out"
	OpSelect   = "select"
	OpCreate   = "create"
	OpExport   = "export"
	OpImport   = "import"
	OpAdvise   = "advise"
	OpSync     = "sync"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Fields is a builder for structured log attributes.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithComponent(component string) Fields {
	f[FieldComponent] = component
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithChallenge(id string) Fields {
	f[FieldChallengeID] = id
	return f
}

func (f Fields) WithHTTPRequest(method, path, query, userAgent string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog key/value arguments.
func (f Fields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
