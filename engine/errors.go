package engine

import "errors"

// IncompatibleInputTypeError indicates that the input has an incompatible
// type for the engine that received it.
var IncompatibleInputTypeError = errors.New("incompatible message type")
