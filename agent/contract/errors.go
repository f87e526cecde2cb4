package contract

import "errors"

var (
	ErrModelInvoke   = errors.New("model invoke failed")
	ErrPromptMissing = errors.New("required prompt is missing")
	ErrValidation    = errors.New("validation failed")
	ErrConfig        = errors.New("configuration error")
	ErrUpstream      = errors.New("upstream service error")
	ErrDispatch      = errors.New("reply dispatch failed")
)
