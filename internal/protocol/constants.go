package protocol

const (
	ToolNameRunGeneration       = "run_contextweave_generation"
	ToolNameEdit                = "edit_contextweave"
	ToolNameExportSession       = "export_session_contextweave"
	ToolNameOutlinePrompt       = "get_outline_prompt"
	ToolNameGenerateFromOutline = "generate_contextweave_from_outline"
	ToolNameImportCode          = "import_contextweave_code"
	ToolNameExportCode          = "export_contextweave_code"
)

// Error codes carried in envelope.error.code.
const (
	ErrorCodeFileNotFound    = "FILE_NOT_FOUND"
	ErrorCodePathNotFound    = "PATH_NOT_FOUND"
	ErrorCodeReadError       = "READ_ERROR"
	ErrorCodeWriteError      = "WRITE_ERROR"
	ErrorCodeCreateDirError  = "CREATE_DIR_ERROR"
	ErrorCodeAPIError        = "API_ERROR"
	ErrorCodeAuthError       = "AUTH_ERROR"
	ErrorCodePaymentRequired = "PAYMENT_REQUIRED"
	ErrorCodeNoSession       = "NO_SESSION"
	ErrorCodeMissingField    = "MISSING_FIELD"
	ErrorCodeInvalidField    = "INVALID_FIELD"
)

// Remote endpoints.
const (
	PathRun             = "/run"
	PathExportSession   = "/export-session"
	PathOutlinePrompt   = "/outline/prompt"
	PathOutlineGenerate = "/outline/generate"
	PathSessionImport   = "/session/import"
	PathSessionExport   = "/session/export"
)

const (
	HeaderAPIKey    = "X-API-Key"
	HeaderRequestID = "X-Request-ID"
)

const (
	EnvBaseURL        = "INTERLEAVED_THINKING_API_URL"
	EnvAPIKey         = "MCP_API_KEY"
	EnvTimeoutSeconds = "CWMCP_TIMEOUT_SECONDS"
	EnvEnablePlanMode = "CWMCP_ENABLE_PLAN_MODE"

	DefaultBaseURL        = "http://localhost:8000"
	DefaultTimeoutSeconds = 300
	DefaultMode           = "3"
	DefaultCodeDir        = "ContextWeave"
	DefaultListenAddr     = "127.0.0.1:8088"
	DefaultMCPPath        = "/mcp"
)

const (
	MarkerFileName = ".last_session_id"
	CodeFileName   = "diagram.cw"
	CodeFileExt    = ".cw"
)

// Envelope field names the local side reads or adds.
const (
	FieldStatus          = "status"
	FieldError           = "error"
	FieldWarnings        = "warnings"
	FieldSessionID       = "session_id"
	FieldSessionFilePath = "session_file_path"
	FieldSVGURL          = "svg_url"
	FieldD2Code          = "d2_code"
	FieldFilePath        = "file_path"
	FieldPrompt          = "prompt"

	StatusOK    = "ok"
	StatusError = "error"
)
