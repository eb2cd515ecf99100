package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"cwmcp/internal/appender"
	"cwmcp/internal/document"
	"cwmcp/internal/model"
	"cwmcp/internal/protocol"
	"cwmcp/internal/session"
)

const (
	argInputFile     = "input_file"
	argUserRequest   = "user_request"
	argSessionID     = "session_id"
	argMode          = "mode"
	argInputSequence = "input_sequence"
	argWorkingDir    = "working_dir"
	argFormat        = "format"
	argOutlinePath   = "outline_file_path"
	argPath          = "path"
)

const noSessionMessage = "No active session found. Please provide session_id or ensure " +
	protocol.MarkerFileName + " exists in working_dir."

// Gateway is the remote side of every tool. *gateway.Client satisfies it.
type Gateway interface {
	Call(ctx context.Context, method, path string, body interface{}) model.Envelope
	CallText(ctx context.Context, method, path string) (string, error)
}

type toolHandler func(context.Context, map[string]interface{}) model.Envelope

type toolParam struct {
	Name        string
	Description string
	Required    bool
}

type toolDefinition struct {
	Name        string
	Description string
	Params      []toolParam
	handler     toolHandler
}

// Tools holds the handlers behind every exposed operation. It is safe for
// concurrent use; each call works only on its own arguments and files.
type Tools struct {
	gateway  Gateway
	appender *appender.Appender
	logger   *zap.Logger
	getwd    func() (string, error)
	defs     map[string]toolDefinition
}

type Option func(*Tools)

func WithLogger(logger *zap.Logger) Option {
	return func(t *Tools) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithWorkingDirFunc replaces os.Getwd for the default session lookup
// directory and relative code paths.
func WithWorkingDirFunc(fn func() (string, error)) Option {
	return func(t *Tools) {
		if fn != nil {
			t.getwd = fn
		}
	}
}

func NewTools(gw Gateway, opts ...Option) *Tools {
	t := &Tools{
		gateway: gw,
		logger:  zap.NewNop(),
		getwd:   os.Getwd,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.appender = appender.New(t.logger)
	t.defs = t.buildToolRegistry()
	return t
}

func (t *Tools) definition(name string) (toolDefinition, bool) {
	def, ok := t.defs[name]
	return def, ok
}

// Call runs one tool by name. Every outcome, including unknown tools and
// bad arguments, is an envelope.
func (t *Tools) Call(ctx context.Context, name string, args map[string]interface{}) model.Envelope {
	def, ok := t.defs[name]
	if !ok {
		return model.Fail(protocol.ErrorCodeInvalidField, "unknown tool: "+name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	names := make([]string, 0, len(def.Params))
	for _, p := range def.Params {
		names = append(names, p.Name)
	}
	if err := assertNoUnknownArguments(args, allowedSet(names...)); err != nil {
		return model.Fail(protocol.ErrorCodeInvalidField, err.Error())
	}

	env := def.handler(ctx, args)
	fields := []zap.Field{zap.String("tool", name), zap.String("status", env.Status)}
	if env.Error != nil {
		fields = append(fields, zap.String("code", env.Error.Code))
	}
	if len(env.Warnings) > 0 {
		fields = append(fields, zap.Strings("warnings", env.Warnings))
	}
	t.logger.Debug("tool call", fields...)
	return env
}

func (t *Tools) buildToolRegistry() map[string]toolDefinition {
	workingDirParam := toolParam{
		Name:        argWorkingDir,
		Description: "Directory holding " + protocol.MarkerFileName + ". The returned session id is saved there.",
	}
	defs := []toolDefinition{
		{
			Name: protocol.ToolNameRunGeneration,
			Description: "Create a new ContextWeave diagram. Preferred for any new diagram. " +
				"Pass input_file instead of a long user_request to save tokens. " +
				"Use edit_contextweave to change an existing diagram.",
			Params: []toolParam{
				{Name: argInputFile, Description: "Path to a .md or .txt file with '# Request' and optional '# D2' sections."},
				{Name: argUserRequest, Description: "Natural language description of the diagram."},
				{Name: argSessionID, Description: "Session to continue. Falls back to working_dir's marker."},
				{Name: argMode, Description: "Running mode, default \"" + protocol.DefaultMode + "\"."},
				{Name: argInputSequence, Description: "JSON list string of scripted inputs, e.g. '[\"yes\", \"1\"]'."},
				workingDirParam,
			},
			handler: t.handleRunGeneration,
		},
		{
			Name:        protocol.ToolNameEdit,
			Description: "Modify the diagram of an existing session. Requires a session id, explicit or from the marker file.",
			Params: []toolParam{
				{Name: argUserRequest, Description: "The modification instructions.", Required: true},
				{Name: argWorkingDir, Description: "Directory holding " + protocol.MarkerFileName + ". Defaults to the current directory."},
				{Name: argSessionID, Description: "Explicit session id. Overrides the marker file."},
			},
			handler: t.handleEdit,
		},
		{
			Name:        protocol.ToolNameExportSession,
			Description: "Export the rendered diagram of a session as svg or pptx.",
			Params: []toolParam{
				{Name: argFormat, Description: "Target format: svg or pptx.", Required: true},
				{Name: argSessionID, Description: "Session to export. Falls back to working_dir's marker."},
				{Name: argWorkingDir, Description: "Directory holding " + protocol.MarkerFileName + ". Defaults to the current directory."},
			},
			handler: t.handleExportSession,
		},
		{
			Name: protocol.ToolNameOutlinePrompt,
			Description: "Plan mode step 1. Only when the user explicitly asks to plan or confirm before drawing. " +
				"Returns the prompt for writing a JSON outline; save the outline in a markdown file inside a ```json fence.",
			handler: t.handleOutlinePrompt,
		},
		{
			Name: protocol.ToolNameGenerateFromOutline,
			Description: "Plan mode step 2. Generate a diagram from a confirmed JSON outline file. " +
				"The SVG link is appended to the outline file.",
			Params: []toolParam{
				{Name: argOutlinePath, Description: "Absolute path to the markdown file holding the outline JSON.", Required: true},
				{Name: argUserRequest, Description: "Original user request to guide refinement."},
				{Name: argWorkingDir, Description: "Where to save the session id. Defaults to the outline file's directory."},
			},
			handler: t.handleGenerateFromOutline,
		},
		{
			Name:        protocol.ToolNameImportCode,
			Description: "Import " + protocol.CodeFileExt + " code from a directory into a new session.",
			Params: []toolParam{
				{Name: argPath, Description: "Directory to import from. Default \"" + protocol.DefaultCodeDir + "\"."},
				workingDirParam,
			},
			handler: t.handleImportCode,
		},
		{
			Name:        protocol.ToolNameExportCode,
			Description: "Export a session's code to <path>/" + protocol.CodeFileName + ".",
			Params: []toolParam{
				{Name: argSessionID, Description: "Session to export. Falls back to working_dir's marker."},
				{Name: argPath, Description: "Directory to export to. Default \"" + protocol.DefaultCodeDir + "\"."},
				{Name: argWorkingDir, Description: "Directory holding " + protocol.MarkerFileName + ". Defaults to the current directory."},
			},
			handler: t.handleExportCode,
		},
	}

	out := make(map[string]toolDefinition, len(defs))
	for _, d := range defs {
		out[d.Name] = d
	}
	return out
}

func invalidField(err error) model.Envelope {
	return model.Fail(protocol.ErrorCodeInvalidField, err.Error())
}

func (t *Tools) handleRunGeneration(ctx context.Context, args map[string]interface{}) model.Envelope {
	var (
		strs = map[string]string{}
		keys = []string{argInputFile, argUserRequest, argSessionID, argMode, argWorkingDir}
	)
	for _, key := range keys {
		v, err := parseOptionalString(args, key)
		if err != nil {
			return invalidField(err)
		}
		strs[key] = v
	}
	inputs, err := parseInputSequence(args, argInputSequence)
	if err != nil {
		return invalidField(err)
	}
	mode := strs[argMode]
	if mode == "" {
		mode = protocol.DefaultMode
	}

	userRequest := strs[argUserRequest]
	var priorCode interface{}
	if inputFile := strs[argInputFile]; inputFile != "" {
		text, err := document.Load(inputFile)
		if err != nil {
			return model.FailErr(protocol.ErrorCodeReadError, err)
		}
		sections := document.Parse(text)
		userRequest = sections.Request
		priorCode = sections.PriorCode
	} else if userRequest == "" {
		return model.Fail(protocol.ErrorCodeMissingField, "user_request or input_file is required")
	}

	workingDir := strs[argWorkingDir]
	sessionID, _ := session.Resolve(strs[argSessionID], workingDir)

	env := t.gateway.Call(ctx, http.MethodPost, protocol.PathRun, runPayload(mode, inputs, userRequest, priorCode, sessionID))
	t.appender.PersistSession(workingDir, &env)
	return env
}

func (t *Tools) handleEdit(ctx context.Context, args map[string]interface{}) model.Envelope {
	userRequest, present, err := parseRequiredString(args, argUserRequest)
	if err != nil {
		return invalidField(err)
	}
	if !present {
		return model.Fail(protocol.ErrorCodeMissingField, "user_request is required")
	}
	sessionArg, err := parseOptionalString(args, argSessionID)
	if err != nil {
		return invalidField(err)
	}
	workingDir, err := parseOptionalString(args, argWorkingDir)
	if err != nil {
		return invalidField(err)
	}

	sessionID, ok := session.Resolve(sessionArg, t.lookupDir(workingDir))
	if !ok {
		return model.Fail(protocol.ErrorCodeNoSession, noSessionMessage)
	}

	env := t.gateway.Call(ctx, http.MethodPost, protocol.PathRun, runPayload(protocol.DefaultMode, nil, userRequest, nil, sessionID))
	t.appender.PersistSession(workingDir, &env)
	return env
}

func (t *Tools) handleExportSession(ctx context.Context, args map[string]interface{}) model.Envelope {
	format, present, err := parseRequiredString(args, argFormat)
	if err != nil {
		return invalidField(err)
	}
	if !present {
		return model.Fail(protocol.ErrorCodeMissingField, "format is required")
	}
	format = strings.ToLower(format)
	if format != "svg" && format != "pptx" {
		return model.Fail(protocol.ErrorCodeInvalidField, "format must be one of: svg, pptx")
	}
	sessionArg, err := parseOptionalString(args, argSessionID)
	if err != nil {
		return invalidField(err)
	}
	workingDir, err := parseOptionalString(args, argWorkingDir)
	if err != nil {
		return invalidField(err)
	}

	sessionID, ok := session.Resolve(sessionArg, t.lookupDir(workingDir))
	if !ok {
		return model.Fail(protocol.ErrorCodeNoSession, noSessionMessage)
	}
	return t.gateway.Call(ctx, http.MethodPost, protocol.PathExportSession, map[string]interface{}{
		argSessionID: sessionID,
		argFormat:    format,
	})
}

func (t *Tools) handleOutlinePrompt(ctx context.Context, _ map[string]interface{}) model.Envelope {
	prompt, err := t.gateway.CallText(ctx, http.MethodGet, protocol.PathOutlinePrompt)
	if err != nil {
		return model.FailErr(protocol.ErrorCodeAPIError, err)
	}
	return model.OK(map[string]interface{}{protocol.FieldPrompt: prompt})
}

func (t *Tools) handleGenerateFromOutline(ctx context.Context, args map[string]interface{}) model.Envelope {
	outlinePath, present, err := parseRequiredString(args, argOutlinePath)
	if err != nil {
		return invalidField(err)
	}
	if !present {
		return model.Fail(protocol.ErrorCodeMissingField, "outline_file_path is required")
	}
	userRequest, err := parseOptionalString(args, argUserRequest)
	if err != nil {
		return invalidField(err)
	}
	workingDir, err := parseOptionalString(args, argWorkingDir)
	if err != nil {
		return invalidField(err)
	}

	text, err := document.Load(outlinePath)
	if err != nil {
		return model.FailErr(protocol.ErrorCodeReadError, err)
	}
	outline := document.ExtractOutline(text)

	env := t.gateway.Call(ctx, http.MethodPost, protocol.PathOutlineGenerate, map[string]interface{}{
		"outline_json": outline,
		argUserRequest: userRequest,
	})
	if !json.Valid([]byte(strings.TrimSpace(outline))) {
		env.Warn("Outline extracted from %s is not valid JSON; it was sent as extracted", outlinePath)
	}
	t.appender.AppendArtifact(outlinePath, &env)

	if workingDir == "" {
		workingDir = filepath.Dir(outlinePath)
	}
	t.appender.PersistSession(workingDir, &env)
	return env
}

func (t *Tools) handleImportCode(ctx context.Context, args map[string]interface{}) model.Envelope {
	path, err := parseOptionalString(args, argPath)
	if err != nil {
		return invalidField(err)
	}
	workingDir, err := parseOptionalString(args, argWorkingDir)
	if err != nil {
		return invalidField(err)
	}
	if path == "" {
		path = protocol.DefaultCodeDir
	}

	codeFile, err := document.FindCodeFile(t.absPath(path))
	if err != nil {
		return model.FailErr(protocol.ErrorCodeReadError, err)
	}
	code, err := document.Load(codeFile)
	if err != nil {
		return model.FailErr(protocol.ErrorCodeReadError, err)
	}

	env := t.gateway.Call(ctx, http.MethodPost, protocol.PathSessionImport, map[string]interface{}{
		protocol.FieldD2Code: code,
		"source_name":        codeFile,
	})
	t.appender.PersistSession(workingDir, &env)
	env.Delete(protocol.FieldD2Code)
	return env
}

func (t *Tools) handleExportCode(ctx context.Context, args map[string]interface{}) model.Envelope {
	sessionArg, err := parseOptionalString(args, argSessionID)
	if err != nil {
		return invalidField(err)
	}
	path, err := parseOptionalString(args, argPath)
	if err != nil {
		return invalidField(err)
	}
	workingDir, err := parseOptionalString(args, argWorkingDir)
	if err != nil {
		return invalidField(err)
	}
	if path == "" {
		path = protocol.DefaultCodeDir
	}

	sessionID, ok := session.Resolve(sessionArg, t.lookupDir(workingDir))
	if !ok {
		return model.Fail(protocol.ErrorCodeNoSession, noSessionMessage)
	}

	env := t.gateway.Call(ctx, http.MethodPost, protocol.PathSessionExport, map[string]interface{}{
		argSessionID: sessionID,
	})
	if env.Failed() {
		return env
	}
	code, ok := env.Data[protocol.FieldD2Code].(string)
	if !ok {
		return model.Fail(protocol.ErrorCodeAPIError, "export response carried no d2_code")
	}

	target, err := appender.WriteCode(t.absPath(path), code)
	if err != nil {
		return model.FailErr(protocol.ErrorCodeWriteError, err)
	}
	out := model.OK(map[string]interface{}{protocol.FieldFilePath: target})
	out.Warnings = env.Warnings
	return out
}

// lookupDir is where session-required tools look for the marker when no
// working_dir was given.
func (t *Tools) lookupDir(workingDir string) string {
	if workingDir != "" {
		return workingDir
	}
	wd, err := t.getwd()
	if err != nil {
		t.logger.Warn("current directory unavailable", zap.Error(err))
		return ""
	}
	return wd
}

func (t *Tools) absPath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	wd, err := t.getwd()
	if err != nil {
		if abs, absErr := filepath.Abs(path); absErr == nil {
			return abs
		}
		return path
	}
	return filepath.Join(wd, path)
}

func runPayload(mode string, inputs []interface{}, userRequest string, priorCode interface{}, sessionID string) map[string]interface{} {
	var sid interface{}
	if sessionID != "" {
		sid = sessionID
	}
	return map[string]interface{}{
		argMode:           mode,
		argInputSequence:  inputs,
		"export_svg":      true,
		"export_pptx":     false,
		argUserRequest:    userRequest,
		"initial_d2_code": priorCode,
		"test_file":       nil,
		argSessionID:      sid,
	}
}
