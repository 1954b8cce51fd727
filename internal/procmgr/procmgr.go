// Package procmgr spawns and tracks child processes. Each child is reaped by
// its own goroutine; a liveness monitor drops entries whose process vanished
// without being reaped and keeps the child process gauge current.
package procmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"pingpong/internal/output"
)

// Child is a spawned process.
type Child struct {
	PID       int
	Args      []string
	StartedAt time.Time

	done chan struct{}
	err  error
}

// Wait blocks until the child exits and returns its exit error, nil when it
// exited with status 0.
func (c *Child) Wait() error {
	<-c.done
	return c.err
}

// Done is closed once the child has been reaped.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Info is a copy of a tracked child's metadata.
type Info struct {
	PID       int
	Args      []string
	StartedAt time.Time
}

// Registry starts children from one executable and tracks the live ones.
type Registry struct {
	mu            sync.RWMutex
	children      map[int]*Child
	executable    string
	env           []string
	checkInterval time.Duration
}

// New creates a registry that spawns executable. An empty executable means
// the running binary itself. checkInterval controls how often liveness is
// checked (default 5s).
func New(executable string, checkInterval time.Duration) (*Registry, error) {
	if executable == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve own executable: %w", err)
		}
		executable = self
	}
	if checkInterval == 0 {
		checkInterval = 5 * time.Second
	}
	return &Registry{
		children:      make(map[int]*Child),
		executable:    executable,
		checkInterval: checkInterval,
	}, nil
}

// SetEnv adds variables to the environment children inherit.
func (r *Registry) SetEnv(env ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.env = append(r.env, env...)
}

// Spawn starts the executable with args. The child shares stdout and stderr
// with the parent and is killed when ctx is cancelled.
func (r *Registry) Spawn(ctx context.Context, args ...string) (*Child, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd := exec.CommandContext(ctx, r.executable, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.executable, err)
	}

	child := &Child{
		PID:       cmd.Process.Pid,
		Args:      args,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	r.children[child.PID] = child
	output.UpdateChildProcesses(len(r.children))

	go r.reap(cmd, child)

	slog.Info("Spawned child process", "pid", child.PID)
	return child, nil
}

func (r *Registry) reap(cmd *exec.Cmd, child *Child) {
	err := cmd.Wait()

	r.mu.Lock()
	delete(r.children, child.PID)
	output.UpdateChildProcesses(len(r.children))
	r.mu.Unlock()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		slog.Warn("Child process exited", "pid", child.PID, "code", exitErr.ExitCode())
	} else if err != nil {
		slog.Warn("Child process wait failed", "pid", child.PID, "error", err)
	} else {
		slog.Info("Child process exited", "pid", child.PID, "code", 0)
	}

	child.err = err
	close(child.done)
}

// List returns all currently tracked children ordered by PID.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Info, 0, len(r.children))
	for _, c := range r.children {
		result = append(result, Info{PID: c.PID, Args: c.Args, StartedAt: c.StartedAt})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PID < result[j].PID })
	return result
}

// Get returns the tracked child with the given PID.
func (r *Registry) Get(pid int) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.children[pid]
	if !ok {
		return Info{}, false
	}
	return Info{PID: c.PID, Args: c.Args, StartedAt: c.StartedAt}, true
}

// IsRegistered checks if a PID is currently tracked.
func (r *Registry) IsRegistered(pid int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.children[pid]
	return exists
}

// StartLivenessMonitor starts a goroutine that periodically checks that
// tracked children still exist. The monitor stops when ctx is cancelled.
func (r *Registry) StartLivenessMonitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.checkLiveness()
			}
		}
	}()
}

func (r *Registry) checkLiveness() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for pid := range r.children {
		if !processExists(pid) {
			delete(r.children, pid)
			slog.Warn("Dropped vanished child process", "pid", pid)
		}
	}
	output.UpdateChildProcesses(len(r.children))
}

func processExists(pid int) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}
