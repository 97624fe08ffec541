package pty

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/user/termcore/internal/metrics"
	"github.com/user/termcore/internal/parser"
)

// Session owns a PTY pair and the shell running on its slave side. Output
// is read in ChunkSize pieces, tokenized and handed to the registered
// OutputFunc; input queued with Send is written by a separate goroutine.
type Session struct {
	id   string
	opts Options
	log  *slog.Logger
	mets *metrics.Metrics

	master    *os.File
	slave     *os.File
	slavePath string
	cmd       *exec.Cmd

	outbox chan []byte
	output atomic.Pointer[OutputFunc]

	started atomic.Bool
	running atomic.Bool

	done       chan struct{}
	readerDone chan struct{}
	wg         sync.WaitGroup

	mu         sync.Mutex
	descClosed bool
	closeOnce  sync.Once
	closeErr   error
}

// Open allocates a PTY pair sized to opts. Nothing is started until Spawn.
func Open(opts Options) (*Session, error) {
	opts = opts.withDefaults()

	master, slave, err := creackpty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPTYOpen, err)
	}

	id := uuid.NewString()
	s := &Session{
		id:         id,
		opts:       opts,
		log:        opts.Logger.With("component", "pty", "session", id),
		mets:       opts.Metrics,
		master:     master,
		slave:      slave,
		slavePath:  slave.Name(),
		outbox:     make(chan []byte, opts.QueueDepth),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}

	if err := creackpty.Setsize(master, &creackpty.Winsize{Cols: opts.Cols, Rows: opts.Rows}); err != nil {
		s.log.Warn("initial window size not applied", "error", err)
	}

	s.log.Info("pty opened", "slave", s.slavePath)
	return s, nil
}

// Spawn starts the configured command on the slave side as a session leader
// with the slave as controlling terminal, then starts the writer and reader
// loops. The child exits on its own if any step before exec fails; the
// failure is reported here as ErrControllingTTY, ErrExec or ErrSpawn. A
// failed Spawn closes the session: both descriptors are closed, Done is
// closed and Send returns ErrSessionClosed.
func (s *Session) Spawn() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if s.isClosed() {
		return ErrSessionClosed
	}

	argv := s.opts.Command
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = s.opts.Dir
	cmd.Env = append(os.Environ(), "TERM="+s.opts.Term)
	cmd.Env = append(cmd.Env, s.opts.Env...)
	cmd.Stdin = s.slave
	cmd.Stdout = s.slave
	cmd.Stderr = s.slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	s.log.Info("spawning shell", "argv", argv)
	if err := cmd.Start(); err != nil {
		spawnErr := classifyStartError(err)
		s.log.Error("shell startup failed", "error", spawnErr)
		s.closeOnce.Do(s.teardown)
		return spawnErr
	}

	// Loops are registered under the same lock teardown takes to close the
	// descriptors, so a concurrent Shutdown either sees the child and joins
	// the loops or runs first and makes this Spawn fail.
	s.mu.Lock()
	if s.descClosed {
		s.mu.Unlock()
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		_ = cmd.Wait()
		return ErrSessionClosed
	}
	s.cmd = cmd
	s.running.Store(true)
	s.mets.SessionStarted()
	s.wg.Add(2)
	s.mu.Unlock()

	// The child holds its own copies of the slave.
	if err := s.slave.Close(); err != nil {
		s.log.Warn("closing slave in parent", "error", err)
	}

	go s.writeLoop()
	go s.readLoop()

	s.log.Info("shell started", "pid", cmd.Process.Pid)
	return nil
}

// classifyStartError maps a fork/exec failure onto the package sentinels
// while keeping the OS error in the chain.
func classifyStartError(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrExec, err)
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ENOENT, unix.EACCES, unix.ENOEXEC, unix.ENOTDIR, unix.ELOOP:
			return fmt.Errorf("%w: %w", ErrExec, err)
		case unix.ENOTTY, unix.EPERM, unix.EINVAL:
			return fmt.Errorf("%w: %w", ErrControllingTTY, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrSpawn, err)
}

// Send queues data for the child. Payloads are written in the order they
// were sent; Send blocks while the queue is full. data is copied. A payload
// accepted while Shutdown is already closing the session may be dropped
// unwritten; Send reports ErrSessionClosed whenever it observes the close.
func (s *Session) Send(data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	payload := append([]byte(nil), data...)
	select {
	case s.outbox <- payload:
		// Both cases may have been ready; the writer stops on done and
		// would never see this payload.
		select {
		case <-s.done:
			return ErrSessionClosed
		default:
		}
		s.log.Debug("input queued", "size", humanize.Bytes(uint64(len(payload))), "payload", string(payload))
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// SetOutputCallback registers fn as the receiver of every tokenized read,
// replacing any previous one from the next read on. nil unregisters.
func (s *Session) SetOutputCallback(fn OutputFunc) {
	if fn == nil {
		s.output.Store(nil)
		return
	}
	s.output.Store(&fn)
}

// Resize applies a new window size to the PTY.
func (s *Session) Resize(cols, rows uint16) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return creackpty.Setsize(s.master, &creackpty.Winsize{Cols: cols, Rows: rows})
}

// Shutdown stops the session: it clears the running flag, closes both
// descriptors so any blocked read or write returns, hangs up the child and
// only then joins both loops and reaps the child. A child still alive
// KillGrace after the hangup has its process group killed. Calling it again
// is a no-op.
func (s *Session) Shutdown() error {
	s.closeOnce.Do(func() {
		s.log.Info("shutdown requested")
		s.teardown()
	})
	return s.closeErr
}

// teardown runs once, from Shutdown or from a failed Spawn.
func (s *Session) teardown() {
	s.running.Store(false)
	close(s.done)

	s.closeErr = s.closeDescriptors()

	cmd := s.process()
	if cmd == nil {
		close(s.readerDone)
		s.log.Info("session closed")
		return
	}

	_ = cmd.Process.Signal(unix.SIGHUP)
	s.wg.Wait()
	s.reap(cmd)
	s.running.Store(false)

	s.mets.SessionStopped()
	s.log.Info("session closed")
}

// reap waits for the child, escalating to SIGKILL on its process group once
// KillGrace has passed. The child is a session leader, so its pid is also
// its process group id.
func (s *Session) reap(cmd *exec.Cmd) {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	timer := time.NewTimer(s.opts.KillGrace)
	defer timer.Stop()

	select {
	case err := <-exited:
		if err != nil {
			s.log.Debug("shell exited", "status", err)
		}
		return
	case <-timer.C:
	}

	pid := cmd.Process.Pid
	s.log.Warn("shell ignored hangup, killing process group", "pid", pid, "grace", s.opts.KillGrace)
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
	if err := <-exited; err != nil {
		s.log.Debug("shell killed", "status", err)
	}
}

// Done is closed once the reader loop has stopped, because the child exited
// or the session was shut down.
func (s *Session) Done() <-chan struct{} { return s.readerDone }

func (s *Session) ID() string        { return s.id }
func (s *Session) SlavePath() string { return s.slavePath }

// Running reports whether the loops are up and the child has not gone away.
func (s *Session) Running() bool {
	if !s.running.Load() {
		return false
	}
	select {
	case <-s.readerDone:
		return false
	default:
		return true
	}
}

// Pid returns the child's process id, or 0 before Spawn.
func (s *Session) Pid() int {
	cmd := s.process()
	if cmd == nil {
		return 0
	}
	return cmd.Process.Pid
}

func (s *Session) process() *exec.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descClosed
}

func (s *Session) closeDescriptors() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.descClosed {
		return nil
	}
	s.descClosed = true

	err := s.master.Close()
	// Already closed after a successful Spawn; the error is expected then.
	_ = s.slave.Close()
	return err
}

// writeLoop drains the outbound queue. It parks on the channel while idle.
func (s *Session) writeLoop() {
	defer s.wg.Done()
	s.log.Debug("writer started")

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.outbox:
			s.write(payload)
		}
	}
}

// write issues one write per payload. Failed and short writes are logged
// and the payload, or what is left of it, is dropped.
func (s *Session) write(payload []byte) {
	n, err := s.master.Write(payload)
	switch {
	case n == len(payload) && err == nil:
		s.mets.ObserveWrite(metrics.WriteOK, n)
		s.log.Debug("input passed to shell", "size", humanize.Bytes(uint64(n)))
	case n <= 0:
		s.mets.ObserveWrite(metrics.WriteFailed, 0)
		s.log.Error("input passing to shell failed", "size", len(payload), "error", err)
	default:
		s.mets.ObserveWrite(metrics.WriteShort, n)
		s.log.Warn("input passing to shell fragmented", "written", n, "size", len(payload), "error", err)
	}
}

// readLoop reads until the master is closed or the child goes away. Each
// non-empty read is tokenized and delivered before the next read starts,
// so batches never interleave.
func (s *Session) readLoop() {
	defer s.wg.Done()
	defer close(s.readerDone)
	s.log.Debug("reader started")

	buf := make([]byte, ChunkSize)
	for s.running.Load() {
		n, err := s.master.Read(buf[:ChunkSize-1])
		if n > 0 {
			s.mets.ObserveRead(n)
			s.deliver(parser.Tokenize(buf[:n]))
		}
		if err != nil {
			if s.running.Load() {
				s.log.Info("reader stopped", "error", err)
			}
			return
		}
	}
}

func (s *Session) deliver(batch parser.Batch) {
	fn := s.output.Load()
	if fn == nil {
		return
	}
	(*fn)(batch)
	s.log.Debug("reader transferred data to callback", "tokens", len(batch))
}
