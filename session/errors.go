package session

import "errors"

const Namespace = "session"

var (
	// ErrUnknownCommand is returned by Call for a name that was never registered.
	ErrUnknownCommand = errors.New(Namespace + ": unknown command")

	// ErrArgCount is returned when a command receives the wrong number of arguments.
	ErrArgCount = errors.New(Namespace + ": wrong number of arguments")

	// ErrInvalidArgument is returned when an argument has the wrong type or value.
	ErrInvalidArgument = errors.New(Namespace + ": invalid argument")

	// ErrDuplicateCommand is returned by AddCommand for a name that is already registered.
	ErrDuplicateCommand = errors.New(Namespace + ": command already registered")
)
