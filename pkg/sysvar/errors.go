package sysvar

import "github.com/pkg/errors"

var (
	ErrDuplicateName   = errors.New("system variable already registered with a different type")
	ErrUnknownVariable = errors.New("unknown system variable")
	ErrTypeMismatch    = errors.New("system variable type mismatch")
)
