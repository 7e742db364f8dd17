// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

// Fatal sentinel errors (spec.md §7): these abort the analysis and
// unwind the current entry point without attempting to resume.
var (
	ErrMaxTagIndexExceeded      = errors.New("stacore: max_tag_index_exceeded")
	ErrMaxTagGroupIndexExceeded = errors.New("stacore: max_tag_group_index_exceeded")
	ErrUnexpectedFilterPath     = errors.New("stacore: unexpected_filter_path")
	ErrCorruptState             = errors.New("stacore: corrupt internal state")
)

// errNoLatchAnalyzer is returned internally when the graph contains a
// latch D->Q edge but the Engine was constructed without a
// LatchAnalyzer; it is wrapped into a Warning rather than propagated as
// fatal, since spec.md §7 treats a bad edge traversal result as silent
// dominance, not an abort.
var errNoLatchAnalyzer = errors.New("stacore: latch D->Q edge present but no LatchAnalyzer configured")

// errNoPathEndVisitor is wrapped as ErrCorruptState when required-time
// propagation is requested without a PathEndVisitor configured; unlike
// errNoLatchAnalyzer this is always a caller-configuration mistake, not
// a data condition, so it aborts.
var errNoPathEndVisitor = errors.New("stacore: required propagation requested but no PathEndVisitor configured")

// Warning is a recoverable, user-visible condition (spec.md §7) that the
// external reporter surfaces after a query rather than aborting the
// analysis. Examples: clock-to-clock max-cycle advisories.
type Warning struct {
	Vertex  uint32
	Message string
}

// fatal wraps a sentinel with context and logs it at Error level before
// returning, matching the AleutianLocal example's pattern of logging at
// the point an error is manufactured rather than only at its final
// handler.
func (e *Engine) fatal(sentinel error, context error) error {
	err := errors.Wrap(sentinel, context.Error())
	if e.log != nil {
		e.log.Error("fatal engine error", slog.String("error", err.Error()))
	}
	return err
}

// warn appends a recoverable condition to Engine.Warnings() (spec.md §7:
// "surface as zero- or warning-annotated paths in the query output").
func (e *Engine) warn(vertex uint32, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	e.warnings = append(e.warnings, Warning{Vertex: vertex, Message: msg})
	if e.log != nil {
		e.log.Warn(msg, slog.Uint64("vertex", uint64(vertex)))
	}
}
