package services

import "errors"

var (
	ErrNoSession = errors.New("session id is required")
	ErrNoFile    = errors.New("no file uploaded")
)
