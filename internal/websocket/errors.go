// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrHubClosed    = errors.New("websocket hub is closed")
)
