package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"cwmcp/internal/protocol"
)

// StatusError is a non-2xx answer from the remote service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	text := strings.TrimSpace(e.Body)
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, text)
}

// CodeForStatus maps a failed HTTP status to exactly one envelope code.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusPaymentRequired:
		return protocol.ErrorCodePaymentRequired
	case http.StatusForbidden:
		return protocol.ErrorCodeAuthError
	default:
		return protocol.ErrorCodeAPIError
	}
}

// ActionableMessageForCode maps an envelope code to user guidance.
func ActionableMessageForCode(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case protocol.ErrorCodeAuthError:
		return "Authentication failed. Set " + protocol.EnvAPIKey + " or add api_key to cwmcp_config.json, then retry."
	case protocol.ErrorCodePaymentRequired:
		return "The account behind this API key is out of credit. Top up or switch keys, then retry."
	case protocol.ErrorCodeNoSession:
		return "No session to continue. Pass session_id, or point working_dir at a directory holding " + protocol.MarkerFileName + "."
	case protocol.ErrorCodeAPIError:
		return "The diagram service call failed. Check " + protocol.EnvBaseURL + " and that the service is reachable."
	case protocol.ErrorCodeFileNotFound, protocol.ErrorCodePathNotFound:
		return "The input path does not exist. Verify it and retry."
	default:
		return ""
	}
}
