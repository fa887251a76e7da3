package genvm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// StateProxy is the host's sole window into world state. The host never
// owns the underlying store; it only calls through this capability, and any
// error it returns is fatal to the dispatch loop (the protocol has no error
// channel for state operations).
//
// Gas values are ferried, not judged: implementations return the remaining
// gas after the operation and the host passes it back to the engine.
type StateProxy interface {
	StorageRead(gasBefore uint64, account common.Address, slot common.Hash, index uint32, le uint32) ([]byte, uint64, error)
	StorageWrite(gasBefore uint64, account common.Address, slot common.Hash, index uint32, got []byte) (uint64, error)
	GetCode(addr common.Address) ([]byte, error)
}

// hostHandler is the callback surface the dispatch loop drives, one method
// per wire tag. session is its only implementation.
type hostHandler interface {
	GetCalldata() ([]byte, error)
	GetCode(addr common.Address) ([]byte, error)
	StorageRead(gasBefore uint64, account common.Address, slot common.Hash, index uint32, le uint32) ([]byte, uint64, error)
	StorageWrite(gasBefore uint64, account common.Address, slot common.Hash, index uint32, got []byte) (uint64, error)
	ConsumeResult(code ResultCode, data []byte) error
	GetLeaderNondetResult(callNo uint32) (ResultCode, []byte, error)
	PostNondetResult(callNo uint32, code ResultCode, data []byte) error
	PostMessage(account common.Address, gas uint64, calldata []byte, code []byte) error
}

// session holds all mutable per-invocation state. It is created by the
// supervisor before spawn, mutated exclusively by the dispatch loop, and
// read once by the assembler after both the loop and the engine terminated.
type session struct {
	calldata      []byte
	state         StateProxy
	leaderResults map[uint32][]byte // nil means this run is the leader

	eqOutputs  map[uint32][]byte
	pendingTxs []PendingTransaction
	result     ExecutionOutcome // nil until CONSUME_RESULT
}

func newSession(calldata []byte, state StateProxy, leaderResults map[uint32][]byte) *session {
	return &session{
		calldata:      calldata,
		state:         state,
		leaderResults: leaderResults,
		eqOutputs:     make(map[uint32][]byte),
	}
}

func (s *session) GetCalldata() ([]byte, error) {
	return s.calldata, nil
}

func (s *session) GetCode(addr common.Address) ([]byte, error) {
	return s.state.GetCode(addr)
}

func (s *session) StorageRead(gasBefore uint64, account common.Address, slot common.Hash, index uint32, le uint32) ([]byte, uint64, error) {
	storageReadMeter.Mark(int64(le))
	return s.state.StorageRead(gasBefore, account, slot, index, le)
}

func (s *session) StorageWrite(gasBefore uint64, account common.Address, slot common.Hash, index uint32, got []byte) (uint64, error) {
	storageWriteMeter.Mark(int64(len(got)))
	return s.state.StorageWrite(gasBefore, account, slot, index, got)
}

// ConsumeResult records the engine's final result. A NONE code ends the loop
// without a result; the assembler then classifies the run as failed.
func (s *session) ConsumeResult(code ResultCode, data []byte) error {
	switch code {
	case ResultReturn:
		s.result = ExecutionReturn{Ret: data}
	case ResultRollback:
		s.result = ExecutionRollback{Message: string(data)}
	}
	return nil
}

// GetLeaderNondetResult resolves a prior leader output for the given call
// number. ResultNone signals that this run is itself the leader. A non-nil
// leader map that lacks the requested call number is a hard error: the
// engine asked for a result the leader never produced.
func (s *session) GetLeaderNondetResult(callNo uint32) (ResultCode, []byte, error) {
	if s.leaderResults == nil {
		return ResultNone, nil, nil
	}
	entry, ok := s.leaderResults[callNo]
	if !ok {
		return 0, nil, fmt.Errorf("no leader result for call %d", callNo)
	}
	if len(entry) == 0 {
		return 0, nil, fmt.Errorf("empty leader result for call %d", callNo)
	}
	code := ResultCode(entry[0])
	if code != ResultReturn && code != ResultRollback {
		return 0, nil, fmt.Errorf("leader result for call %d has invalid code %d", callNo, entry[0])
	}
	return code, entry[1:], nil
}

// PostNondetResult records {code || payload} into the equivalence outputs.
// A call number is written at most once per invocation.
func (s *session) PostNondetResult(callNo uint32, code ResultCode, data []byte) error {
	if _, ok := s.eqOutputs[callNo]; ok {
		return protocolErrorf("duplicate nondet result for call %d", callNo)
	}
	out := make([]byte, 0, 1+len(data))
	out = append(out, byte(code))
	out = append(out, data...)
	s.eqOutputs[callNo] = out
	return nil
}

// PostMessage appends an outbound cross-contract message. The gas and code
// fields arrive on the wire but are not used yet; they are consumed so the
// frame stays aligned.
func (s *session) PostMessage(account common.Address, gas uint64, calldata []byte, code []byte) error {
	s.pendingTxs = append(s.pendingTxs, PendingTransaction{
		Address:  "0x" + common.Bytes2Hex(account.Bytes()),
		Calldata: calldata,
	})
	return nil
}

// provideResult assembles the invocation's single ExecutionResult. A setup
// failure wins over everything; otherwise a posted final result wins over
// collected exceptions; otherwise the exceptions (possibly none) become the
// composite failure.
func (s *session) provideResult(res runOutput, setupErr error) *ExecutionResult {
	out := &ExecutionResult{
		EqOutputs:           s.eqOutputs,
		PendingTransactions: s.pendingTxs,
		Stdout:              res.stdout,
		Stderr:              res.stderr,
	}
	switch {
	case setupErr != nil:
		out.Result = ExecutionFail{Err: setupErr}
	case s.result != nil:
		out.Result = s.result
	default:
		out.Result = ExecutionFail{Err: combine(res.errs)}
	}
	if out.Failed() {
		runFailCounter.Inc(1)
	}
	return out
}

// codeOnlyProxy backs schema queries: the only state the synthesized session
// may touch is the code of the queried contract itself.
type codeOnlyProxy struct {
	addr common.Address
	code []byte
}

func (p *codeOnlyProxy) StorageRead(uint64, common.Address, common.Hash, uint32, uint32) ([]byte, uint64, error) {
	return nil, 0, fmt.Errorf("storage read not available in schema context")
}

func (p *codeOnlyProxy) StorageWrite(uint64, common.Address, common.Hash, uint32, []byte) (uint64, error) {
	return 0, fmt.Errorf("storage write not available in schema context")
}

func (p *codeOnlyProxy) GetCode(addr common.Address) ([]byte, error) {
	if addr != p.addr {
		return nil, fmt.Errorf("unexpected code request for %s", addr.Hex())
	}
	return p.code, nil
}
