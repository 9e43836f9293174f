package content

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxBuildOutput bounds the captured build log.
const maxBuildOutput = 64 << 10

// BuildStatus describes one build run.
type BuildStatus struct {
	ID          string    `json:"id"`
	RequestedBy string    `json:"requested_by"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	Running     bool      `json:"running"`
	Succeeded   bool      `json:"succeeded"`
	Error       string    `json:"error,omitempty"`
	Output      string    `json:"output,omitempty"`
}

// Builder runs the static site build command, one run at a time.
type Builder struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	last *BuildStatus
	wg   sync.WaitGroup
}

// NewBuilder creates a Builder running command (argv form). An empty
// command disables builds. A non-positive timeout means no limit.
func NewBuilder(command []string, timeout time.Duration, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		command: append([]string(nil), command...),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Trigger starts a build in the background and returns its initial
// status. It fails with [ErrBuildRunning] while a build is in progress.
func (b *Builder) Trigger(ctx context.Context, requestedBy string) (BuildStatus, error) {
	if len(b.command) == 0 {
		return BuildStatus{}, ErrBuildDisabled
	}

	b.mu.Lock()
	if b.last != nil && b.last.Running {
		b.mu.Unlock()
		return BuildStatus{}, ErrBuildRunning
	}
	status := &BuildStatus{
		ID:          uuid.NewString(),
		RequestedBy: requestedBy,
		StartedAt:   b.now().UTC(),
		Running:     true,
	}
	b.last = status
	snapshot := *status
	b.wg.Add(1)
	b.mu.Unlock()

	go b.run(context.WithoutCancel(ctx), status)
	return snapshot, nil
}

// Last returns the most recent build, if any.
func (b *Builder) Last() (BuildStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return BuildStatus{}, false
	}
	return *b.last, true
}

// Wait blocks until the running build, if any, finishes.
func (b *Builder) Wait() {
	b.wg.Wait()
}

func (b *Builder) run(ctx context.Context, status *BuildStatus) {
	defer b.wg.Done()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, b.command[0], b.command[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	b.logger.InfoContext(ctx, "site build started", "build_id", status.ID, "requested_by", status.RequestedBy)
	err := cmd.Run()

	b.mu.Lock()
	defer b.mu.Unlock()
	status.Running = false
	status.FinishedAt = b.now().UTC()
	status.Succeeded = err == nil
	status.Output = truncate(out.String(), maxBuildOutput)
	if err != nil {
		status.Error = err.Error()
		b.logger.WarnContext(ctx, "site build failed", "build_id", status.ID, "error", err)
		return
	}
	b.logger.InfoContext(ctx, "site build finished", "build_id", status.ID,
		"duration", status.FinishedAt.Sub(status.StartedAt))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
