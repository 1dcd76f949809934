package core

import (
	"errors"

	"github.com/dosco/mongopipe/core/expr"
)

var (
	// ErrInvalidArgument is returned for arguments that can never produce a
	// valid stage and for documents the iterator cannot decode.
	ErrInvalidArgument = expr.ErrInvalidArgument

	// ErrIteratorDone is returned by Iterator.Next once the results are exhausted.
	ErrIteratorDone = errors.New("iterator done")

	// ErrPipelineClosed is recorded when a stage is appended after Out.
	ErrPipelineClosed = errors.New("pipeline closed by $out")
)
