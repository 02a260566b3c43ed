package trigger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/builderbridge/internal/shared/duration"
)

// EntryPoint is the function a trigger script must define.
const EntryPoint = "trigger"

var (
	// ErrNoEntryPoint is returned when the script does not define trigger.
	ErrNoEntryPoint = errors.New("script does not define " + EntryPoint)
	// ErrTimeout is returned when a script runs past its deadline.
	ErrTimeout = errors.New("trigger script timed out")
)

// Config holds a trigger script, inline or from a file.
type Config struct {
	Script     string        `yaml:"script" toml:"script"`
	ScriptFile string        `yaml:"script_file" toml:"script_file"`
	Timeout    duration.Duration `yaml:"timeout" toml:"timeout"`
}

// Runner answers trigger requests by running a JavaScript function
//
//	function trigger(type) { return "..." }
//
// in a fresh sandboxed VM per call.
type Runner struct {
	program *goja.Program
	timeout time.Duration
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewRunner compiles the configured script.
func NewRunner(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	src := cfg.Script
	if cfg.ScriptFile != "" {
		data, err := os.ReadFile(cfg.ScriptFile)
		if err != nil {
			return nil, fmt.Errorf("read trigger script: %w", err)
		}
		src = string(data)
	}
	if src == "" {
		return nil, errors.New("trigger script is empty")
	}

	program, err := goja.Compile("trigger.js", src, true)
	if err != nil {
		return nil, fmt.Errorf("compile trigger script: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = duration.Duration(2 * time.Second)
	}
	return &Runner{program: program, timeout: cfg.Timeout.Std(), logger: logger.Named("trigger"), metrics: metrics}, nil
}

// Run calls the script for an element type and returns its string result.
func (r *Runner) Run(ctx context.Context, extra protocol.TriggerExtra) (string, error) {
	timer := monitoring.NewTimer(r.metrics, "trigger", "run")
	out, err := r.run(ctx, extra)
	if err != nil {
		timer.Stop("error")
		return "", err
	}
	timer.Stop("success")
	return out, nil
}

func (r *Runner) run(ctx context.Context, extra protocol.TriggerExtra) (string, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunProgram(r.program); err != nil {
		return "", r.wrap(ctx, err)
	}
	fn, ok := goja.AssertFunction(vm.Get(EntryPoint))
	if !ok {
		return "", ErrNoEntryPoint
	}
	val, err := fn(goja.Undefined(), vm.ToValue(string(extra.Type)))
	if err != nil {
		return "", r.wrap(ctx, err)
	}
	if goja.IsUndefined(val) || goja.IsNull(val) {
		return "", nil
	}
	return val.String(), nil
}

func (r *Runner) wrap(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
	return fmt.Errorf("trigger script: %w", err)
}

// Handler answers trigger requests.
func (r *Runner) Handler() dispatch.TriggerHandler {
	return func(ctx context.Context, resolve func(string), reject dispatch.Reject, extra protocol.TriggerExtra) {
		out, err := r.Run(ctx, extra)
		if err != nil {
			r.logger.Warn("Trigger script failed", zap.String("type", string(extra.Type)), zap.Error(err))
			reject(err.Error())
			return
		}
		resolve(out)
	}
}
