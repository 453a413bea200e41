package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"hdvapourize/internal/logging"
	"hdvapourize/internal/services"
)

const (
	defaultGracePeriod = 10 * time.Second
	diagnosticLines    = 40
	diagnosticBytes    = 4 << 10
)

// Command is one executable invocation.
type Command struct {
	Binary string
	Args   []string
	Env    []string
	Dir    string
}

// String renders the command line for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Binary)
	for _, arg := range c.Args {
		if strings.ContainsAny(arg, " \t\"'") {
			arg = fmt.Sprintf("%q", arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

func (c Command) build() *exec.Cmd {
	cmd := exec.Command(c.Binary, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Dir = c.Dir
	setProcessGroup(cmd)
	return cmd
}

// Spec describes a single stage execution.
type Spec struct {
	Stage   string
	Command Command
	// Pipe, when set, consumes Command's stdout on its stdin.
	Pipe   *Command
	Parser Parser
	// FramesTotal is used when the parser cannot report a total itself.
	FramesTotal int64
	// FrameCeiling stops the producer once this many frames are reported.
	FrameCeiling int64
	Timeout      time.Duration
	// StallTimeout stops the processes when no output line arrives for
	// this long. Zero disables it.
	StallTimeout time.Duration
	GracePeriod  time.Duration
	// ExpectedOutput must exist and be non-empty for the run to succeed.
	ExpectedOutput string
	Signatures     []Signature
	OnProgress     func(Progress)
}

// Result describes what happened, whether or not the run succeeded.
type Result struct {
	Stage       string
	Started     time.Time
	Finished    time.Time
	FramesDone  int64
	FramesTotal int64
	ExitCode    int
	Truncated   bool
	OutputBytes int64
	Diagnostic  string
	// Signature holds the matched environment failure reason, if any.
	Signature string
}

// Duration is the wall-clock time the run took.
func (r Result) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Runner launches stage processes.
type Runner struct {
	logger *slog.Logger
}

// New constructs a Runner.
func New(logger *slog.Logger) *Runner {
	return &Runner{logger: logging.NewComponentLogger(logger, "runner")}
}

type lineEvent struct {
	source string
	text   string
}

type exitStatus struct {
	head error
	pipe error
}

// Run executes spec and blocks until every process has exited.
func (r *Runner) Run(ctx context.Context, spec Spec) (Result, error) {
	res := Result{Stage: spec.Stage, Started: time.Now(), FramesTotal: spec.FramesTotal, ExitCode: -1}
	if spec.FrameCeiling > 0 && (res.FramesTotal == 0 || res.FramesTotal > spec.FrameCeiling) {
		res.FramesTotal = spec.FrameCeiling
	}
	logger := logging.WithContext(ctx, r.logger)

	if err := ctx.Err(); err != nil {
		res.Finished = time.Now()
		return res, services.Wrap(services.ErrCancelled, spec.Stage, spec.Command.Binary, "cancelled before start", err)
	}

	stageCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}
	grace := spec.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	head, pipe, streams, err := start(spec)
	if err != nil {
		res.Finished = time.Now()
		return res, classifyStartError(spec, err)
	}
	logger.Debug("process started",
		logging.String("command", spec.Command.String()),
		logging.Int("pid", head.Process.Pid),
		logging.String(logging.FieldEventType, "process_start"),
	)
	if pipe != nil {
		logger.Debug("pipe consumer started",
			logging.String("command", spec.Pipe.String()),
			logging.Int("pid", pipe.Process.Pid),
		)
	}

	lines := make(chan lineEvent)
	done := make(chan exitStatus, 1)
	var readers sync.WaitGroup
	for source, stream := range streams {
		readers.Add(1)
		go func(source string, stream io.Reader) {
			defer readers.Done()
			scanner := bufio.NewScanner(stream)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			scanner.Split(scanLines)
			for scanner.Scan() {
				lines <- lineEvent{source: source, text: scanner.Text()}
			}
			// Keep draining so a chatty process never blocks on a full pipe.
			_, _ = io.Copy(io.Discard, stream)
		}(source, stream)
	}
	go func() {
		readers.Wait()
		close(lines)
		var status exitStatus
		status.head = head.Wait()
		if pipe != nil {
			status.pipe = pipe.Wait()
		}
		done <- status
	}()

	var (
		tail      = newTailBuffer(diagnosticLines, diagnosticBytes)
		ctxDone   = stageCtx.Done()
		killTimer <-chan time.Time
		signature *Signature
		status    exitStatus
		exited    bool
		stalled   bool
		stall     *time.Timer
		stallC    <-chan time.Time
	)
	all := []*exec.Cmd{head, pipe}
	if spec.StallTimeout > 0 {
		stall = time.NewTimer(spec.StallTimeout)
		defer stall.Stop()
		stallC = stall.C
	}

	for !exited {
		select {
		case ev, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if stallC != nil {
				stall.Reset(spec.StallTimeout)
			}
			if r.observe(&res, spec, ev.text) {
				if spec.FrameCeiling > 0 && res.FramesDone >= spec.FrameCeiling && !res.Truncated {
					res.Truncated = true
					logger.Info("frame ceiling reached; stopping producer",
						logging.Int64("frames_done", res.FramesDone),
						logging.Int64("frame_ceiling", spec.FrameCeiling),
						logging.String(logging.FieldEventType, "frame_ceiling"),
					)
					_ = interruptGroup(head)
					stallC = nil
					if killTimer == nil {
						killTimer = time.After(grace)
					}
				}
				continue
			}
			tail.Add(ev.text)
			if signature == nil {
				if sig, ok := MatchSignature(spec.Signatures, ev.text); ok {
					signature = &sig
				}
			}
		case <-stallC:
			stallC = nil
			stalled = true
			logging.WarnWithContext(logger, "process produced no output; terminating", "process_stall",
				logging.Duration("stall_timeout", spec.StallTimeout),
				logging.Int64("frames_done", res.FramesDone),
				logging.String(logging.FieldErrorHint, "check the processing script and GPU driver for a hang"),
				logging.String(logging.FieldImpact, "the job fails with a timeout"),
			)
			for _, cmd := range all {
				_ = terminateGroup(cmd)
			}
			if killTimer == nil {
				killTimer = time.After(grace)
			}
		case <-ctxDone:
			ctxDone = nil
			stallC = nil
			logger.Info("terminating stage processes",
				logging.String("reason", terminationReason(ctx, stageCtx)),
				logging.Duration("grace_period", grace),
				logging.String(logging.FieldEventType, "process_terminate"),
			)
			for _, cmd := range all {
				_ = terminateGroup(cmd)
			}
			killTimer = time.After(grace)
		case <-killTimer:
			killTimer = nil
			logging.WarnWithContext(logger, "process ignored termination; killing", "process_kill",
				logging.Duration("grace_period", grace),
				logging.String(logging.FieldImpact, "partial output will be discarded"),
			)
			for _, cmd := range all {
				_ = killGroup(cmd)
			}
		case status = <-done:
			exited = true
		}
	}

	res.Finished = time.Now()
	res.Diagnostic = tail.String()
	res.ExitCode = exitCode(status.head)
	if pipe != nil && (status.pipe != nil || res.Truncated) {
		res.ExitCode = exitCode(status.pipe)
	}
	if signature != nil {
		res.Signature = signature.Reason
	}

	logger.Debug("process exited",
		logging.Int("exit_code", res.ExitCode),
		logging.Int64("frames_done", res.FramesDone),
		logging.Duration("elapsed", res.Duration()),
		logging.String(logging.FieldEventType, "process_exit"),
	)

	binary := spec.Command.Binary
	if err := ctx.Err(); err != nil {
		return res, services.Wrap(services.ErrCancelled, spec.Stage, binary, "cancelled", err)
	}
	if stalled {
		return res, services.Wrap(services.ErrTimeout, spec.Stage, binary,
			fmt.Sprintf("no output for %s", spec.StallTimeout), nil)
	}
	if err := stageCtx.Err(); err != nil {
		return res, services.Wrap(services.ErrTimeout, spec.Stage, binary, fmt.Sprintf("exceeded %s", spec.Timeout), err)
	}

	if failed, err := failedProcess(spec, status, res.Truncated); failed != "" {
		if signature != nil {
			return res, services.Wrap(services.ErrEnvironment, spec.Stage, failed, signature.Reason, err)
		}
		return res, services.Wrap(services.ErrToolFailure, spec.Stage, failed, fmt.Sprintf("exit status %d", exitCode(err)), err)
	}

	if spec.ExpectedOutput != "" {
		info, err := os.Stat(spec.ExpectedOutput)
		if err != nil {
			return res, services.Wrap(services.ErrToolFailure, spec.Stage, binary, "expected output missing", err)
		}
		res.OutputBytes = info.Size()
		if info.Size() == 0 {
			return res, services.Wrap(services.ErrToolFailure, spec.Stage, binary, "expected output is empty", nil)
		}
	}
	if !res.Truncated && res.FramesTotal > 0 && res.FramesDone < res.FramesTotal {
		res.FramesDone = res.FramesTotal
	}
	return res, nil
}

// observe parses line and updates res. It reports whether the line was a
// progress marker.
func (r *Runner) observe(res *Result, spec Spec, line string) bool {
	if spec.Parser == nil {
		return false
	}
	p, ok := spec.Parser.Parse(line)
	if !ok {
		return false
	}
	if p.FramesTotal > 0 {
		res.FramesTotal = p.FramesTotal
		if spec.FrameCeiling > 0 && res.FramesTotal > spec.FrameCeiling {
			res.FramesTotal = spec.FrameCeiling
		}
	}
	done := p.FramesDone
	if spec.FrameCeiling > 0 && done > spec.FrameCeiling {
		done = spec.FrameCeiling
	}
	if res.FramesTotal > 0 && done > res.FramesTotal {
		done = res.FramesTotal
	}
	if done < res.FramesDone {
		done = res.FramesDone
	}
	res.FramesDone = done
	if spec.OnProgress != nil {
		spec.OnProgress(Progress{FramesDone: res.FramesDone, FramesTotal: res.FramesTotal})
	}
	return true
}

// start launches the head command and, when configured, the pipe consumer.
// The returned map holds every output stream keyed by a label.
func start(spec Spec) (*exec.Cmd, *exec.Cmd, map[string]io.Reader, error) {
	if strings.TrimSpace(spec.Command.Binary) == "" {
		return nil, nil, nil, errors.New("empty command")
	}
	streams := make(map[string]io.Reader, 3)
	head := spec.Command.build()
	headErr, err := head.StderrPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	streams["stderr"] = headErr

	if spec.Pipe == nil {
		headOut, err := head.StdoutPipe()
		if err != nil {
			return nil, nil, nil, err
		}
		streams["stdout"] = headOut
		if err := head.Start(); err != nil {
			return nil, nil, nil, err
		}
		return head, nil, streams, nil
	}

	pipe := spec.Pipe.build()
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, err
	}
	head.Stdout = writer
	pipe.Stdin = reader
	pipeOut, err := pipe.StdoutPipe()
	if err != nil {
		reader.Close()
		writer.Close()
		return nil, nil, nil, err
	}
	pipeErr, err := pipe.StderrPipe()
	if err != nil {
		reader.Close()
		writer.Close()
		return nil, nil, nil, err
	}
	streams["pipe_stdout"] = pipeOut
	streams["pipe_stderr"] = pipeErr

	if err := pipe.Start(); err != nil {
		reader.Close()
		writer.Close()
		return nil, nil, nil, fmt.Errorf("%s: %w", spec.Pipe.Binary, err)
	}
	if err := head.Start(); err != nil {
		reader.Close()
		writer.Close()
		_ = killGroup(pipe)
		_ = pipe.Wait()
		return nil, nil, nil, err
	}
	// The children hold their own copies of the pipe ends.
	reader.Close()
	writer.Close()
	return head, pipe, streams, nil
}

func classifyStartError(spec Spec, err error) error {
	binary := spec.Command.Binary
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrEnvironment, spec.Stage, binary, "executable not found", err)
	}
	if errors.Is(err, fs.ErrPermission) {
		return services.Wrap(services.ErrEnvironment, spec.Stage, binary, "executable not runnable", err)
	}
	return services.Wrap(services.ErrToolFailure, spec.Stage, binary, "start failed", err)
}

// failedProcess names the process whose exit status fails the run. A
// producer stopped at the frame ceiling is expected to exit abnormally.
func failedProcess(spec Spec, status exitStatus, truncated bool) (string, error) {
	if spec.Pipe == nil {
		if status.head != nil && !truncated {
			return spec.Command.Binary, status.head
		}
		return "", nil
	}
	if status.head != nil && !truncated {
		return spec.Command.Binary, status.head
	}
	if status.pipe != nil {
		return spec.Pipe.Binary, status.pipe
	}
	return "", nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func terminationReason(parent, stage context.Context) string {
	if parent.Err() != nil {
		return "cancelled"
	}
	if errors.Is(stage.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	return "stopped"
}
