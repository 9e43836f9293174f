package content

import "errors"

var (
	ErrNotFound           = errors.New("content: not found")
	ErrConflict           = errors.New("content: already exists")
	ErrInvalid            = errors.New("content: invalid input")
	ErrInvalidCredentials = errors.New("content: invalid credentials")
	ErrBuildRunning       = errors.New("content: build already running")
	ErrBuildDisabled      = errors.New("content: no build command configured")
)
