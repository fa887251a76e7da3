package genvm

import (
	"fmt"

	"go.uber.org/multierr"
)

// PendingTransaction is an outbound cross-contract call the executed
// contract wants to emit once execution succeeds. The address is the 0x-hex
// form of the 20 raw bytes; calldata is kept verbatim and serializes to
// base64 in JSON.
type PendingTransaction struct {
	Address  string `json:"address"`
	Calldata []byte `json:"calldata"`
}

// ExecutionOutcome is the final-result sum: exactly one of ExecutionReturn,
// ExecutionRollback or ExecutionFail appears in an ExecutionResult.
type ExecutionOutcome interface {
	isExecutionOutcome()
	String() string
}

// ExecutionReturn carries the raw return payload posted by the engine.
type ExecutionReturn struct {
	Ret []byte
}

// ExecutionRollback carries the UTF-8 rollback message posted by the engine.
type ExecutionRollback struct {
	Message string
}

// ExecutionFail carries the composite cause of a failed invocation. Err may
// join several underlying errors (loop exception, exit-code exception);
// unwrap them with multierr.Errors.
type ExecutionFail struct {
	Err error
}

func (ExecutionReturn) isExecutionOutcome()   {}
func (ExecutionRollback) isExecutionOutcome() {}
func (ExecutionFail) isExecutionOutcome()     {}

func (r ExecutionReturn) String() string {
	return fmt.Sprintf("Return(%d bytes)", len(r.Ret))
}

func (r ExecutionRollback) String() string {
	return fmt.Sprintf("Rollback(%q)", r.Message)
}

func (f ExecutionFail) String() string {
	if f.Err == nil {
		return "Fail(<unknown error>)"
	}
	return fmt.Sprintf("Fail(%v)", f.Err)
}

// ExecutionResult is everything one engine invocation produced: the final
// outcome, the nondeterministic outputs keyed by call number, the outbound
// transactions in wire order, and the engine's captured stdio.
type ExecutionResult struct {
	Result              ExecutionOutcome
	EqOutputs           map[uint32][]byte
	PendingTransactions []PendingTransaction
	Stdout              string
	Stderr              string
}

// Failed reports whether the invocation ended in ExecutionFail.
func (r *ExecutionResult) Failed() bool {
	_, ok := r.Result.(ExecutionFail)
	return ok
}

// combine folds the collected loop/exit exceptions into one composite error.
// A nil result means nothing was collected, which still classifies the run
// as failed when no final result was posted.
func combine(errs []error) error {
	return multierr.Combine(errs...)
}
