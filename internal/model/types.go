package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"cwmcp/internal/protocol"
)

// ErrorInfo is the error half of an Envelope.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the uniform result shape returned by every tool. Exactly one of
// Data or Error is meaningful; Warnings may accompany either.
//
// On the wire the Data keys are flattened next to status/error/warnings, so
// the remote service's success payload round-trips unchanged.
type Envelope struct {
	Status   string
	Data     map[string]interface{}
	Error    *ErrorInfo
	Warnings []string
}

// OK builds a success envelope. data may be nil.
func OK(data map[string]interface{}) Envelope {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Envelope{Status: protocol.StatusOK, Data: data}
}

// Fail builds an error envelope.
func Fail(code, message string) Envelope {
	return Envelope{
		Status: protocol.StatusError,
		Error:  &ErrorInfo{Code: code, Message: message},
	}
}

// FailErr builds an error envelope from err. A *CodedError keeps its own code;
// anything else is reported under defaultCode.
func FailErr(defaultCode string, err error) Envelope {
	if err == nil {
		return Fail(defaultCode, "unknown error")
	}
	if code := CodeOf(err); code != "" {
		return Fail(code, err.Error())
	}
	return Fail(defaultCode, err.Error())
}

// IsOK reports a success envelope.
func (e Envelope) IsOK() bool {
	return e.Error == nil && e.Status == protocol.StatusOK
}

// Failed reports whether the envelope carries an error.
func (e Envelope) Failed() bool {
	return e.Error != nil
}

// Warn records a non-fatal problem. It never changes Status.
func (e *Envelope) Warn(format string, args ...interface{}) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// String returns a non-empty string data field.
func (e Envelope) String(key string) (string, bool) {
	if e.Error != nil || e.Data == nil {
		return "", false
	}
	v, ok := e.Data[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Set adds a data field to a success envelope. It is a no-op on errors so the
// data/error exclusivity holds.
func (e *Envelope) Set(key string, value interface{}) {
	if e.Error != nil {
		return
	}
	if e.Data == nil {
		e.Data = map[string]interface{}{}
	}
	e.Data[key] = value
}

// Delete removes a data field if present.
func (e *Envelope) Delete(key string) {
	delete(e.Data, key)
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Data)+3)
	if e.Error == nil {
		for k, v := range e.Data {
			out[k] = v
		}
	} else {
		out[protocol.FieldError] = e.Error
	}
	out[protocol.FieldStatus] = e.Status
	if len(e.Warnings) > 0 {
		out[protocol.FieldWarnings] = e.Warnings
	}
	return json.Marshal(out)
}

func (e *Envelope) UnmarshalJSON(raw []byte) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("envelope must be a JSON object")
	}

	next := Envelope{}
	if status, ok := fields[protocol.FieldStatus].(string); ok {
		next.Status = status
	}
	if rawErr, ok := fields[protocol.FieldError]; ok && rawErr != nil {
		next.Error = decodeErrorInfo(rawErr)
	}
	if rawWarnings, ok := fields[protocol.FieldWarnings].([]interface{}); ok {
		for _, w := range rawWarnings {
			if s, ok := w.(string); ok {
				next.Warnings = append(next.Warnings, s)
			}
		}
	}
	if next.Status == protocol.StatusError && next.Error == nil {
		next.Error = &ErrorInfo{
			Code:    protocol.ErrorCodeAPIError,
			Message: "remote reported an error without details",
		}
	}

	if next.Error != nil {
		next.Status = protocol.StatusError
	} else {
		delete(fields, protocol.FieldStatus)
		delete(fields, protocol.FieldWarnings)
		delete(fields, protocol.FieldError)
		next.Data = fields
	}
	*e = next
	return nil
}

// Indented renders the envelope the way tools return it to the host.
func (e Envelope) Indented() string {
	raw, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		fallback, _ := json.MarshalIndent(Fail(protocol.ErrorCodeAPIError, "encode result: "+err.Error()), "", "  ")
		return string(fallback)
	}
	return string(raw)
}

func decodeErrorInfo(raw interface{}) *ErrorInfo {
	switch v := raw.(type) {
	case map[string]interface{}:
		info := &ErrorInfo{Code: protocol.ErrorCodeAPIError}
		if code, ok := v["code"].(string); ok && strings.TrimSpace(code) != "" {
			info.Code = code
		}
		switch msg := v["message"].(type) {
		case string:
			info.Message = msg
		case nil:
		default:
			encoded, _ := json.Marshal(msg)
			info.Message = string(encoded)
		}
		return info
	case string:
		return &ErrorInfo{Code: protocol.ErrorCodeAPIError, Message: v}
	default:
		encoded, _ := json.Marshal(v)
		return &ErrorInfo{Code: protocol.ErrorCodeAPIError, Message: string(encoded)}
	}
}
