package hooks

import (
	"log/slog"
	"os"
	"os/exec"

	"github.com/calacuda/auto-desk/internal/events"
	"github.com/google/uuid"
)

const defaultShell = "sh"

// Executor launches hook commands. It never blocks on a running hook.
type Executor struct {
	Shell string

	// done, if set, receives every finished run. Used by tests.
	done chan<- Result
}

// Result describes a finished hook run.
type Result struct {
	RunID string
	Hook  Hook
	Err   error
}

func NewExecutor() *Executor {
	return &Executor{Shell: defaultShell}
}

// Execute starts every hook in hs in its own goroutine with c exported as
// environment variables. Failures are logged with the command text.
func (e *Executor) Execute(c events.Context, hs []Hook) {
	env := append(os.Environ(), c.Environ()...)
	for _, h := range hs {
		go e.run(h, env)
	}
}

func (e *Executor) run(h Hook, env []string) {
	runID := uuid.NewString()
	log := slog.With("run_id", runID, "event", h.Event, "exec", h.Exec)

	cmd := exec.Command(e.shell(), "-c", h.Exec)
	cmd.Env = env

	err := cmd.Start()
	if err != nil {
		log.Error("hook executor: starting hook", "error", err)
	} else {
		log.Debug("hook executor: hook started", "pid", cmd.Process.Pid)
		if err = cmd.Wait(); err != nil {
			log.Error("hook executor: hook failed", "error", err)
		} else {
			log.Debug("hook executor: hook finished")
		}
	}

	if e.done != nil {
		e.done <- Result{RunID: runID, Hook: h, Err: err}
	}
}

func (e *Executor) shell() string {
	if e.Shell == "" {
		return defaultShell
	}
	return e.Shell
}
