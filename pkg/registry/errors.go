package registry

import "github.com/pkg/errors"

var (
	ErrUnknownHandle     = errors.New("unknown resource handle")
	ErrInvalidKind       = errors.New("invalid resource kind")
	ErrInvalidDescriptor = errors.New("invalid resource descriptor")
)
