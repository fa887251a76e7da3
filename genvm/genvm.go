// Package genvm supervises the untrusted GenVM engine process and bridges
// its state and nondeterminism requests to the node's world state.
//
// Per invocation the host binds a UNIX-domain socket, spawns the engine
// pointed at it, services the engine's framed requests through a StateProxy
// capability, and collects the final result, equivalence outputs, outbound
// messages and captured stdio into one ExecutionResult.
package genvm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/genlayer/go-genvm/calldata"
)

// schemaMethod is the well-known method the engine resolves to a contract's
// schema string.
const schemaMethod = "__get_schema__"

// GenVM is the abstraction over a contract execution backend. Host is the
// production implementation; tests may substitute their own.
type GenVM interface {
	// RunContract executes one contract invocation. The returned result is
	// never nil; failures are reported through its Result variant.
	RunContract(ctx context.Context, state StateProxy, params RunParams) *ExecutionResult

	// GetContractSchema resolves the schema string of the given contract
	// code without touching world state.
	GetContractSchema(ctx context.Context, contractCode []byte) (string, error)
}

// RunParams carries the per-invocation inputs to RunContract.
type RunParams struct {
	From     common.Address
	Contract common.Address
	Calldata []byte
	IsInit   bool

	// LeaderResults maps call numbers to a prior leader's encoded
	// nondeterministic outputs (code byte || payload). nil means this run
	// is itself the leader.
	LeaderResults map[uint32][]byte

	// Config is the raw engine configuration; when non-empty it is written
	// to a file and passed via --config.
	Config string
}

// Host runs contracts by supervising the external genvm engine.
type Host struct {
	log       log.Logger
	exitGrace time.Duration
}

var _ GenVM = (*Host)(nil)

// NewHost returns a Host logging through the given logger; a nil logger
// falls back to the root logger.
func NewHost(logger log.Logger) *Host {
	if logger == nil {
		logger = log.Root()
	}
	return &Host{log: logger, exitGrace: defaultExitGrace}
}

// RunContract implements GenVM.
func (h *Host) RunContract(ctx context.Context, state StateProxy, params RunParams) *ExecutionResult {
	s := newSession(params.Calldata, state, params.LeaderResults)
	raw, err := json.Marshal(newMessage(params.IsInit, params.Contract, params.From))
	if err != nil {
		return s.provideResult(runOutput{}, errors.Wrap(err, "encode message"))
	}
	return h.runEngine(ctx, s, []string{"--message", string(raw)}, params.Config)
}

// GetContractSchema implements GenVM. It synthesizes a session with a zero
// address, a calldata payload naming the schema method, and a proxy whose
// only capability is returning the provided code.
func (h *Host) GetContractSchema(ctx context.Context, contractCode []byte) (string, error) {
	var zero common.Address
	cd, err := calldata.Encode(map[string]any{"method": schemaMethod})
	if err != nil {
		return "", errors.Wrap(err, "encode schema calldata")
	}
	s := newSession(cd, &codeOnlyProxy{addr: zero, code: contractCode}, nil)
	raw, err := json.Marshal(newMessage(false, zero, zero))
	if err != nil {
		return "", errors.Wrap(err, "encode message")
	}
	res := h.runEngine(ctx, s, []string{"--message", string(raw)}, "")
	ret, ok := res.Result.(ExecutionReturn)
	if !ok {
		return "", errors.Errorf("schema query failed: %s", res.Result)
	}
	decoded, err := calldata.Decode(ret.Ret)
	if err != nil {
		return "", errors.Wrap(err, "decode schema")
	}
	schema, ok := decoded.(string)
	if !ok {
		return "", errors.Errorf("abi violation, %s returned %T", schemaMethod, decoded)
	}
	return schema, nil
}
