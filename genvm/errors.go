package genvm

import (
	"errors"
	"fmt"
)

// ErrProtocol marks fatal framing violations on the engine socket: unknown
// method or result tags, length mismatches, duplicate nondeterministic
// results. Any error wrapping it terminates the dispatch loop. Short reads
// also terminate the loop but surface as the io errors of the read
// (io.EOF, io.ErrUnexpectedEOF) and do not wrap ErrProtocol.
var ErrProtocol = errors.New("genvm: protocol violation")

func protocolErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// ExitCodeError records a non-zero engine exit observed on the natural-exit
// path. Exit codes from signalled shutdowns are not trusted and never
// produce one.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("genvm: engine exit code %d != 0", e.Code)
}
