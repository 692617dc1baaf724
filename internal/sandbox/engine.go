// Package sandbox runs untrusted wasm bots.
//
// A bot gets no host functions and no WASI. The host talks to it only through
// two exported functions and one scratch region in its linear memory, which is
// allocated once per game and rewritten on every turn.
package sandbox

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/sync/singleflight"

	"github.com/rocketscienceinc/botarena/internal/apperror"
)

// validationEdge is the board edge used to trial a payload at registration.
const validationEdge = 8

var (
	allocSignature  = []api.ValueType{api.ValueTypeI32}
	decideSignature = []api.ValueType{
		api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
	}
	resultSignature = []api.ValueType{api.ValueTypeI32}
)

type Config struct {
	// CallTimeout bounds every guest call. Zero disables the deadline.
	CallTimeout time.Duration
	// MemoryLimitPages caps guest linear memory in 64KiB pages.
	MemoryLimitPages uint32
	// AllocExports and DecideExports list accepted export names in lookup order.
	AllocExports  []string
	DecideExports []string
}

// Engine compiles bot payloads and hands out isolated instances of them.
type Engine struct {
	logger  *slog.Logger
	conf    Config
	runtime wazero.Runtime

	mu       sync.Mutex
	programs map[[sha256.Size]byte]*Program
	compiles singleflight.Group
}

func NewEngine(ctx context.Context, logger *slog.Logger, conf Config) *Engine {
	runtimeConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if conf.MemoryLimitPages > 0 {
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(conf.MemoryLimitPages)
	}

	return &Engine{
		logger:   logger.With("component", "sandbox"),
		conf:     conf,
		runtime:  wazero.NewRuntimeWithConfig(ctx, runtimeConfig),
		programs: make(map[[sha256.Size]byte]*Program),
	}
}

// Load - compiles a payload and checks its exports. Compiled programs are cached by content.
func (that *Engine) Load(ctx context.Context, payload []byte) (*Program, error) {
	key := sha256.Sum256(payload)

	that.mu.Lock()
	program, ok := that.programs[key]
	that.mu.Unlock()
	if ok {
		return program, nil
	}

	value, err, _ := that.compiles.Do(string(key[:]), func() (any, error) {
		program, err := that.compile(ctx, payload)
		if err != nil {
			return nil, err
		}

		that.mu.Lock()
		that.programs[key] = program
		that.mu.Unlock()

		return program, nil
	})
	if err != nil {
		return nil, err
	}

	return value.(*Program), nil
}

// Validate - checks that a payload loads and can set up a game.
func (that *Engine) Validate(ctx context.Context, payload []byte) error {
	program, err := that.Load(ctx, payload)
	if err != nil {
		return err
	}

	bot, err := program.NewBot(ctx, validationEdge)
	if err != nil {
		return err
	}

	if err = bot.Close(ctx); err != nil {
		that.logger.Warn("failed to close validation instance", "error", err)
	}

	return nil
}

// Close - releases the runtime and every instance still alive.
func (that *Engine) Close(ctx context.Context) error {
	if err := that.runtime.Close(ctx); err != nil {
		return fmt.Errorf("failed to close wasm runtime: %w", err)
	}

	return nil
}

func (that *Engine) compile(ctx context.Context, payload []byte) (*Program, error) {
	compiled, err := that.runtime.CompileModule(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compile module: %w", apperror.ErrSandboxLoad, err)
	}

	program, err := that.inspect(compiled)
	if err != nil {
		if closeErr := compiled.Close(ctx); closeErr != nil {
			that.logger.Warn("failed to close rejected module", "error", closeErr)
		}

		return nil, err
	}

	return program, nil
}

func (that *Engine) inspect(compiled wazero.CompiledModule) (*Program, error) {
	if imports := compiled.ImportedFunctions(); len(imports) > 0 {
		module, name, _ := imports[0].Import()
		return nil, fmt.Errorf("%w: module imports %s.%s, no host functions are provided",
			apperror.ErrSandboxLoad, module, name)
	}

	if len(compiled.ImportedMemories()) > 0 {
		return nil, fmt.Errorf("%w: module imports its memory", apperror.ErrSandboxLoad)
	}

	if len(compiled.ExportedMemories()) == 0 {
		return nil, fmt.Errorf("%w: module exports no memory", apperror.ErrSandboxLoad)
	}

	functions := compiled.ExportedFunctions()

	allocName, err := findExport(functions, that.conf.AllocExports, allocSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: allocation entry point: %w", apperror.ErrSandboxLoad, err)
	}

	decideName, err := findExport(functions, that.conf.DecideExports, decideSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: decision entry point: %w", apperror.ErrSandboxLoad, err)
	}

	return &Program{
		engine:     that,
		compiled:   compiled,
		allocName:  allocName,
		decideName: decideName,
	}, nil
}

var errExportMissing = errors.New("export not found")

func findExport(functions map[string]api.FunctionDefinition, names []string, params []api.ValueType) (string, error) {
	for _, name := range names {
		def, ok := functions[name]
		if !ok {
			continue
		}

		if !slices.Equal(def.ParamTypes(), params) || !slices.Equal(def.ResultTypes(), resultSignature) {
			return "", fmt.Errorf("export %q has signature %v -> %v", name, def.ParamTypes(), def.ResultTypes())
		}

		return name, nil
	}

	return "", fmt.Errorf("%w: tried %v", errExportMissing, names)
}
