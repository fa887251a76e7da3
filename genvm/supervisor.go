package genvm

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// defaultExitGrace is the budget the engine gets to leave on its own after
// the loop finished, and again after SIGTERM before SIGKILL.
const defaultExitGrace = 50 * time.Millisecond

// runOutput is what one supervised engine run produced besides the session
// accumulators: captured stdio and the collected loop/exit exceptions.
type runOutput struct {
	stdout string
	stderr string
	errs   []error
}

// hostConn owns the listening socket and, once accepted, the engine's
// connection. The listener is closed immediately after the first accept; at
// most one client is ever served. closeAll is safe from any goroutine and
// cancels a blocked accept or read.
type hostConn struct {
	mu     sync.Mutex
	ln     net.Listener
	conn   net.Conn
	closed bool
}

func (c *hostConn) accept() (net.Conn, error) {
	conn, err := c.ln.Accept()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ln.Close()
	if err != nil {
		return nil, err
	}
	if c.closed {
		conn.Close()
		return nil, net.ErrClosed
	}
	c.conn = conn
	return conn, nil
}

func (c *hostConn) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.ln.Close()
	if c.conn != nil {
		c.conn.Close()
	}
}

// runEngine performs one full supervised invocation: temp dir, socket,
// spawn, host/child race, staged shutdown, cleanup. It always returns a
// fully-assembled ExecutionResult; setup failures synthesize an empty run
// output instead of ever starting (or re-starting) the engine.
func (h *Host) runEngine(ctx context.Context, s *session, tailArgs []string, config string) *ExecutionResult {
	start := time.Now()
	defer runTimer.UpdateSince(start)

	runID := uuid.New().String()[:8]
	logger := h.log.New("run", runID)
	registerRun(runID, s)
	defer releaseRun(runID)

	exe, err := enginePath()
	if err != nil {
		return s.provideResult(runOutput{}, err)
	}

	tmpDir, err := os.MkdirTemp("", "genvm-*")
	if err != nil {
		return s.provideResult(runOutput{}, errors.Wrap(err, "create temp dir"))
	}
	defer os.RemoveAll(tmpDir)

	sockPath := filepath.Join(tmpDir, "sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return s.provideResult(runOutput{}, errors.Wrap(err, "bind host socket"))
	}
	hc := &hostConn{ln: ln}
	defer hc.closeAll()

	argv := []string{exe, "--host", "unix://" + sockPath, "--print=all"}
	if config != "" {
		confPath := filepath.Join(tmpDir, "conf.json")
		if err := os.WriteFile(confPath, []byte(config), 0o644); err != nil {
			return s.provideResult(runOutput{}, errors.Wrap(err, "write engine config"))
		}
		argv = append(argv, "--config", confPath)
	}
	argv = append(argv, tailArgs...)

	logger.Debug("starting engine", "exe", exe, "sock", sockPath)
	out, err := runHostAndProgram(ctx, logger, s, hc, argv, h.exitGrace)
	if err != nil {
		return s.provideResult(runOutput{}, err)
	}
	return s.provideResult(out, nil)
}

// runHostAndProgram spawns the engine and races the dispatch loop against
// the child's lifetime. The returned error is spawn-level only (the engine
// never ran); everything observed after a successful spawn lands in the
// runOutput's error list.
func runHostAndProgram(ctx context.Context, logger log.Logger, h hostHandler, hc *hostConn, argv []string, grace time.Duration) (runOutput, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	// stdin stays on the null device; the engine only ever talks through
	// the socket and its stdio pipes.
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return runOutput{}, errors.Wrap(err, "stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return runOutput{}, errors.Wrap(err, "stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return runOutput{}, errors.Wrapf(err, "spawn %s", argv[0])
	}

	var outBuf, errBuf bytes.Buffer
	var drain errgroup.Group
	drain.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	drain.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})

	// Child task: drain both pipes to EOF, then reap the process.
	childDone := make(chan struct{})
	go func() {
		if err := drain.Wait(); err != nil {
			logger.Debug("engine pipe drain failed", "err", err)
		}
		cmd.Wait()
		close(childDone)
	}()

	// Host task: accept exactly one client and run the dispatch loop.
	hostDone := make(chan error, 1)
	go func() {
		hostDone <- serveHost(hc, h)
	}()

	var errs []error
	childFirst := false
	select {
	case err := <-hostDone:
		if err != nil {
			errs = append(errs, err)
		}
	case <-childDone:
		// The engine left without posting a terminal result. Cancel the
		// loop; its pending read fails with a reset-equivalent that gets
		// recorded below.
		childFirst = true
		logger.Warn("engine exited before posting a result")
		hc.closeAll()
		if err := <-hostDone; err != nil {
			errs = append(errs, err)
		}
	case <-ctx.Done():
		hc.closeAll()
		if err := <-hostDone; err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, ctx.Err())
	}

	// Staged shutdown: natural exit within the grace budget keeps the exit
	// code trusted; SIGTERM and SIGKILL paths discard it.
	exitTrusted := true
	if !childFirst {
		select {
		case <-childDone:
		case <-time.After(grace):
			exitTrusted = false
			cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-childDone:
			case <-time.After(grace):
				logger.Warn("engine ignored SIGTERM, killing", "pid", cmd.Process.Pid)
				cmd.Process.Kill()
				<-childDone
			}
		}
	}

	if exitTrusted {
		if code := cmd.ProcessState.ExitCode(); code != 0 {
			errs = append(errs, &ExitCodeError{Code: code})
		}
	}
	return runOutput{stdout: outBuf.String(), stderr: errBuf.String(), errs: errs}, nil
}

func serveHost(hc *hostConn, h hostHandler) error {
	conn, err := hc.accept()
	if err != nil {
		return errors.Wrap(err, "accept engine connection")
	}
	return hostLoop(conn, h)
}
