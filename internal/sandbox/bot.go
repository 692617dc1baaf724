package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/rocketscienceinc/botarena/internal/apperror"
	"github.com/rocketscienceinc/botarena/internal/game"
)

var errNoLegalMoves = errors.New("no legal moves to offer")

// Program is a compiled, export-checked bot payload. It is safe for concurrent use.
type Program struct {
	engine     *Engine
	compiled   wazero.CompiledModule
	allocName  string
	decideName string
}

// Bot is one isolated instance of a Program bound to a single game.
// It must not be shared between goroutines or reused for another game.
type Bot struct {
	module  api.Module
	memory  api.Memory
	decide  api.Function
	timeout time.Duration

	edge    int
	scratch uint32
	buf     []byte
}

// NewBot - instantiates the program and allocates its scratch region for an edge*edge game.
func (that *Program) NewBot(ctx context.Context, edge int) (*Bot, error) {
	if err := game.ValidateEdge(edge); err != nil {
		return nil, err
	}

	config := wazero.NewModuleConfig().WithName("").WithStartFunctions()

	module, err := that.engine.runtime.InstantiateModule(ctx, that.compiled, config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to instantiate module: %w", apperror.ErrSandboxLoad, err)
	}

	bot, err := that.setup(ctx, module, edge)
	if err != nil {
		_ = module.Close(ctx)
		return nil, err
	}

	return bot, nil
}

func (that *Program) setup(ctx context.Context, module api.Module, edge int) (*Bot, error) {
	memory := module.Memory()
	if memory == nil {
		return nil, fmt.Errorf("%w: instance has no memory", apperror.ErrSandboxLoad)
	}

	bot := &Bot{
		module:  module,
		memory:  memory,
		decide:  module.ExportedFunction(that.decideName),
		timeout: that.engine.conf.CallTimeout,
		edge:    edge,
		buf:     make([]byte, edge*edge*2),
	}

	callCtx, cancel := bot.callContext(ctx)
	defer cancel()

	// Board cells plus at most one offset per cell.
	size := uint64(len(bot.buf))
	results, err := module.ExportedFunction(that.allocName).Call(callCtx, size)
	if err != nil {
		return nil, fmt.Errorf("%w: allocation call failed: %w", apperror.ErrSandboxLoad, err)
	}

	scratch := api.DecodeU32(results[0])
	if uint64(scratch)+size > uint64(memory.Size()) {
		return nil, fmt.Errorf("%w: scratch region [%d, %d) outside guest memory of %d bytes",
			apperror.ErrSandboxLoad, scratch, uint64(scratch)+size, memory.Size())
	}

	bot.scratch = scratch

	return bot, nil
}

// Propose - asks the guest for a move in the current position.
// The returned position is whatever the guest answered and may be off the board or illegal.
func (that *Bot) Propose(ctx context.Context, g *game.Game) (pos game.Position, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: host panic during guest call: %v", apperror.ErrSandboxTrap, r)
		}
	}()

	if g.Edge() != that.edge {
		return game.Position{}, fmt.Errorf("%w: bot set up for edge %d, game has %d",
			apperror.ErrInvalidConfiguration, that.edge, g.Edge())
	}

	player := g.CurrentPlayer()
	moves := g.LegalMoves(player)
	if len(moves) == 0 {
		return game.Position{}, errNoLegalMoves
	}

	cells := that.edge * that.edge
	g.Board().Serialize(that.buf[:cells])
	for i, move := range moves {
		that.buf[cells+i] = move.Offset(that.edge)
	}

	if !that.memory.Write(that.scratch, that.buf[:cells+len(moves)]) {
		return game.Position{}, fmt.Errorf("%w: scratch region no longer fits guest memory", apperror.ErrSandboxTrap)
	}

	callCtx, cancel := that.callContext(ctx)
	defer cancel()

	results, err := that.decide.Call(callCtx,
		api.EncodeU32(that.scratch),
		api.EncodeU32(uint32(that.edge)),
		api.EncodeU32(that.scratch+uint32(cells)),
		api.EncodeU32(uint32(len(moves))),
		api.EncodeU32(uint32(player.Code())),
	)
	if err != nil {
		return game.Position{}, fmt.Errorf("%w: %w", apperror.ErrSandboxTrap, err)
	}

	return game.FromOffset(uint8(results[0]), that.edge), nil
}

// Close - tears down the instance and its memory.
func (that *Bot) Close(ctx context.Context) error {
	if err := that.module.Close(ctx); err != nil {
		return fmt.Errorf("failed to close bot instance: %w", err)
	}

	return nil
}

func (that *Bot) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if that.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, that.timeout)
}
