package steps

import "errors"

const Namespace = "steps"

var (
	ErrInvalidParameters = errors.New(Namespace + ": parameters must be name/value pairs with string names")
	ErrFileNotOpen       = errors.New(Namespace + ": file is not open")
	ErrInvalidMode       = errors.New(Namespace + ": invalid file open mode")
	ErrUnsupportedValue  = errors.New(Namespace + ": only string or numeric scalar values are supported")
	ErrInvalidFormat     = errors.New(Namespace + ": format parameter must be a string")
	ErrInvalidTable      = errors.New(Namespace + ": invalid table name")
	ErrNilStep           = errors.New(Namespace + ": step must not be nil")
)
