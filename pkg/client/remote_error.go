package client

import (
	"fmt"
	"regexp"

	"flexilims/pkg/domain"
)

// RemoteError is the structured error record the registry embeds in the
// HTML body of every 4xx/5xx response: three bold-labeled paragraphs.
type RemoteError struct {
	Type        string
	Message     string
	Description string
}

// The registry emits this exact fragment for error responses. A body that
// does not match is a contract violation, reported as a transport error.
var remoteErrorPattern = regexp.MustCompile(
	`(?s)<b>Type</b>(.*)</p><p><b>Message</b>(.*)</p><p><b>Description</b>(.*)</p>`)

// parseRemoteError extracts the typed error record from an HTML error body.
func parseRemoteError(body []byte) (RemoteError, error) {
	m := remoteErrorPattern.FindSubmatch(body)
	if m == nil {
		return RemoteError{}, fmt.Errorf("error body does not match the registry error format")
	}
	return RemoteError{
		Type:        string(m[1]),
		Message:     string(m[2]),
		Description: string(m[3]),
	}, nil
}

// classifyStatus maps a non-2xx response to the client error taxonomy:
// 400 validation, 403 authentication (renewable), 404 not found, anything
// else a transport error carrying the numeric status and parsed message.
func classifyStatus(status int, body []byte) error {
	if status == 403 {
		return domain.AuthenticationError{Msg: "Forbidden. Are you logged in?"}
	}
	remote, err := parseRemoteError(body)
	if err != nil {
		return domain.TransportError{Status: status, Msg: err.Error()}
	}
	switch status {
	case 400:
		return domain.ValidationError{Msg: remote.Message}
	case 404:
		return domain.NotFoundError{Msg: remote.Message}
	default:
		return domain.TransportError{Status: status, Msg: remote.Message}
	}
}
