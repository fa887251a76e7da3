package genvm

import (
	"errors"
	"regexp"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"go.uber.org/multierr"
)

func TestProvideResultSetupErrorWins(t *testing.T) {
	s := newSession(nil, nil, nil)
	s.result = ExecutionReturn{Ret: []byte("ignored")}

	setupErr := errors.New("bind failed")
	res := s.provideResult(runOutput{errs: []error{errors.New("loop")}}, setupErr)
	fail, ok := res.Result.(ExecutionFail)
	if !ok || !errors.Is(fail.Err, setupErr) {
		t.Fatalf("result = %v", res.Result)
	}
}

func TestProvideResultFinalResultWinsOverErrors(t *testing.T) {
	s := newSession(nil, nil, nil)
	s.result = ExecutionReturn{Ret: []byte("done")}

	res := s.provideResult(runOutput{errs: []error{&ExitCodeError{Code: 3}}}, nil)
	if _, ok := res.Result.(ExecutionReturn); !ok {
		t.Fatalf("result = %v", res.Result)
	}
	if res.Failed() {
		t.Fatalf("captured result classified as failure")
	}
}

func TestProvideResultCombinesLoopErrors(t *testing.T) {
	s := newSession(nil, nil, nil)

	loopErr := errors.New("connection reset")
	exitErr := &ExitCodeError{Code: 2}
	res := s.provideResult(runOutput{errs: []error{loopErr, exitErr}, stdout: "out", stderr: "err"}, nil)

	fail, ok := res.Result.(ExecutionFail)
	if !ok {
		t.Fatalf("result = %v", res.Result)
	}
	causes := multierr.Errors(fail.Err)
	if len(causes) != 2 || !errors.Is(causes[0], loopErr) || !errors.Is(causes[1], exitErr) {
		t.Fatalf("composite causes = %v", causes)
	}
	if res.Stdout != "out" || res.Stderr != "err" {
		t.Fatalf("stdio not attached: %q %q", res.Stdout, res.Stderr)
	}
}

func TestProvideResultNoResultNoErrors(t *testing.T) {
	s := newSession(nil, nil, nil)
	res := s.provideResult(runOutput{}, nil)
	fail, ok := res.Result.(ExecutionFail)
	if !ok {
		t.Fatalf("result = %v", res.Result)
	}
	if fail.Err != nil {
		t.Fatalf("expected empty composite, got %v", fail.Err)
	}
}

func TestPendingTransactionAddressForm(t *testing.T) {
	s := newSession(nil, nil, nil)
	addr := common.HexToAddress("0xAbCdEf0102030405060708090a0B0c0D0e0F1011")
	if err := s.PostMessage(addr, 9, []byte("cd"), []byte("code")); err != nil {
		t.Fatalf("post message: %v", err)
	}
	got := s.pendingTxs[0].Address
	if !regexp.MustCompile(`^0x[0-9a-f]{40}$`).MatchString(got) {
		t.Fatalf("address %q is not 0x + 40 lowercase hex", got)
	}
	if got != "0xabcdef0102030405060708090a0b0c0d0e0f1011" {
		t.Fatalf("address = %s", got)
	}
}

func TestCodeOnlyProxy(t *testing.T) {
	var zero common.Address
	p := &codeOnlyProxy{addr: zero, code: []byte("code")}

	if got, err := p.GetCode(zero); err != nil || string(got) != "code" {
		t.Fatalf("get code = %q, %v", got, err)
	}
	other := common.HexToAddress("0x0000000000000000000000000000000000000001")
	if _, err := p.GetCode(other); err == nil {
		t.Fatalf("foreign code request succeeded")
	}
	if _, _, err := p.StorageRead(0, zero, common.Hash{}, 0, 1); err == nil {
		t.Fatalf("storage read succeeded in schema context")
	}
	if _, err := p.StorageWrite(0, zero, common.Hash{}, 0, nil); err == nil {
		t.Fatalf("storage write succeeded in schema context")
	}
}
