package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/botarena/internal/entity"
	"github.com/rocketscienceinc/botarena/internal/repository"
	"github.com/rocketscienceinc/botarena/internal/sandbox"
	"github.com/rocketscienceinc/botarena/internal/sandbox/sandboxtest"
)

type mockResultMirror struct {
	mock.Mock
}

func (m *mockResultMirror) Publish(ctx context.Context, results []entity.MatchResult, bots []entity.BotRecord) error {
	args := m.Called(ctx, results, bots)
	return args.Error(0)
}

type mockTournamentRunner struct {
	mock.Mock
}

func (m *mockTournamentRunner) Run(ctx context.Context, contender string, edge int) (*TournamentSummary, error) {
	args := m.Called(ctx, contender, edge)

	summary, _ := args.Get(0).(*TournamentSummary)

	return summary, args.Error(1)
}

type mockPayloadValidator struct {
	mock.Mock
}

func (m *mockPayloadValidator) Validate(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) *sandbox.Engine {
	t.Helper()

	ctx := context.Background()
	engine := sandbox.NewEngine(ctx, newTestLogger(), sandbox.Config{
		CallTimeout:   time.Second,
		AllocExports:  []string{sandboxtest.DefaultAlloc},
		DecideExports: []string{sandboxtest.DefaultDecide},
	})
	t.Cleanup(func() {
		_ = engine.Close(ctx)
	})

	return engine
}

// seedBots - stores bots directly, in order, skipping payload validation.
func seedBots(t *testing.T, repo repository.BotRepository, bots map[string][]byte, order ...string) {
	t.Helper()

	for _, name := range order {
		_, err := repo.Create(context.Background(), &entity.BotRecord{Name: name, Creator: "test", Payload: bots[name]})
		require.NoError(t, err)
	}
}
