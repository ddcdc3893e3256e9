package domain

import "errors"

var (
	// ErrValidation marks absent or malformed input. Nothing has been touched when it is returned.
	ErrValidation = errors.New("bad request")

	// ErrUpstreamRejected means Telegram refused the bot credential.
	ErrUpstreamRejected = errors.New("invalid token")

	// ErrNotFound means no binding matches the resolved credential.
	ErrNotFound = errors.New("no flow binding with the address")

	// ErrDecode means a routing token could not be decoded or decrypted.
	ErrDecode = errors.New("malformed routing token")
)
