package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/botarena/internal/apperror"
	"github.com/rocketscienceinc/botarena/internal/config"
	"github.com/rocketscienceinc/botarena/internal/entity"
	"github.com/rocketscienceinc/botarena/internal/usecase"
	"github.com/rocketscienceinc/botarena/internal/worker"
)

type mockArena struct {
	mock.Mock
}

func (m *mockArena) RegisterBot(ctx context.Context, name, creator string, payload []byte) (*usecase.Registration, error) {
	args := m.Called(ctx, name, creator, payload)
	registration, _ := args.Get(0).(*usecase.Registration)
	return registration, args.Error(1)
}

func (m *mockArena) ListBots(ctx context.Context) []entity.BotRecord {
	args := m.Called(ctx)
	return args.Get(0).([]entity.BotRecord)
}

func (m *mockArena) GetBot(ctx context.Context, name string) (*entity.BotRecord, error) {
	args := m.Called(ctx, name)
	bot, _ := args.Get(0).(*entity.BotRecord)
	return bot, args.Error(1)
}

func (m *mockArena) ListMatches(ctx context.Context) []entity.MatchSummary {
	args := m.Called(ctx)
	return args.Get(0).([]entity.MatchSummary)
}

func (m *mockArena) ListBotMatches(ctx context.Context, name string) ([]entity.MatchSummary, error) {
	args := m.Called(ctx, name)
	games, _ := args.Get(0).([]entity.MatchSummary)
	return games, args.Error(1)
}

func (m *mockArena) GetMatch(ctx context.Context, id string) (*usecase.MatchDetails, error) {
	args := m.Called(ctx, id)
	details, _ := args.Get(0).(*usecase.MatchDetails)
	return details, args.Error(1)
}

func newTestServer(t *testing.T, arena arenaUseCase, maxPayload int64) (*Server, *worker.Pool) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	pool, err := worker.NewPool(logger, 1)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = pool.Shutdown(ctx)
	})

	server := NewServer(logger, config.HTTP{Port: "0", MaxPayloadBytes: maxPayload}, NewHandler(logger, arena, pool))

	return server, pool
}

func doRequest(server http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	return rec
}

func TestHandler_Ping(t *testing.T) {
	server, _ := newTestServer(t, &mockArena{}, 1024)

	rec := doRequest(server, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestHandler_NewBot(t *testing.T) {
	t.Run("Accepts a base64 payload", func(t *testing.T) {
		// Given: an arena that registers the bot
		arena := &mockArena{}
		arena.On("RegisterBot", mock.Anything, "alpha", "ann", []byte{0x00, 0x61, 0x73, 0x6d}).
			Return(&usecase.Registration{Bot: entity.BotRecord{Name: "alpha", Creator: "ann", Payload: []byte{1}}}, nil).
			Once()

		server, _ := newTestServer(t, arena, 1024)

		// When: the bot is posted with a base64 payload
		rec := doRequest(server, http.MethodPost, "/new-bot", `{"name":"alpha","creator":"ann","wasm":"AGFzbQ=="}`)

		// Then: the bot is created and the payload is not echoed back
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"alpha"`)
		assert.NotContains(t, rec.Body.String(), "payload")
		arena.AssertExpectations(t)
	})

	t.Run("Accepts a byte array payload", func(t *testing.T) {
		arena := &mockArena{}
		arena.On("RegisterBot", mock.Anything, "alpha", "ann", []byte{0, 97, 115, 109}).
			Return(&usecase.Registration{Bot: entity.BotRecord{Name: "alpha"}}, nil).
			Once()

		server, _ := newTestServer(t, arena, 1024)

		rec := doRequest(server, http.MethodPost, "/new-bot", `{"name":"alpha","creator":"ann","wasm":[0,97,115,109]}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		arena.AssertExpectations(t)
	})

	t.Run("Maps registration errors", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
		}{
			{err: fmt.Errorf("%w: x", apperror.ErrInvalidName), status: http.StatusBadRequest},
			{err: fmt.Errorf("%w: x", apperror.ErrInvalidPayload), status: http.StatusBadRequest},
			{err: fmt.Errorf("%w: x", apperror.ErrDuplicateName), status: http.StatusConflict},
			{err: io.ErrUnexpectedEOF, status: http.StatusInternalServerError},
		}

		for _, tt := range tests {
			arena := &mockArena{}
			arena.On("RegisterBot", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			server, _ := newTestServer(t, arena, 1024)

			rec := doRequest(server, http.MethodPost, "/new-bot", `{"name":"alpha","creator":"ann","wasm":[1]}`)

			assert.Equal(t, tt.status, rec.Code, tt.err.Error())
		}
	})

	t.Run("Rejects malformed bodies", func(t *testing.T) {
		server, _ := newTestServer(t, &mockArena{}, 1024)

		for _, body := range []string{
			`{"name":"alpha","wasm":[256]}`,
			`{"name":"alpha","wasm":"***"}`,
			`{"name":`,
		} {
			rec := doRequest(server, http.MethodPost, "/new-bot", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("Rejects oversized bodies", func(t *testing.T) {
		server, _ := newTestServer(t, &mockArena{}, 16)

		rec := doRequest(server, http.MethodPost, "/new-bot", `{"name":"alpha","creator":"ann","wasm":[1,2,3,4,5,6,7,8]}`)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestHandler_Lists(t *testing.T) {
	// Given: an arena with one bot and one match
	arena := &mockArena{}
	arena.On("ListBots", mock.Anything).Return([]entity.BotRecord{{Name: "alpha", Wins: 2}})
	arena.On("ListMatches", mock.Anything).Return([]entity.MatchSummary{{ID: "m1", White: "alpha", Black: "beta", Winner: entity.WinnerTie}})
	arena.On("ListBotMatches", mock.Anything, "alpha").Return([]entity.MatchSummary{{ID: "m1"}}, nil)
	arena.On("ListBotMatches", mock.Anything, "ghost").Return(nil, apperror.ErrNotFound)

	server, _ := newTestServer(t, arena, 1024)

	// When: the lists are requested
	bots := doRequest(server, http.MethodGet, "/bots", "")
	games := doRequest(server, http.MethodGet, "/games", "")
	botGames := doRequest(server, http.MethodGet, "/bots/alpha/games", "")
	ghostGames := doRequest(server, http.MethodGet, "/bots/ghost/games", "")

	// Then: they are wrapped in named arrays
	require.Equal(t, http.StatusOK, bots.Code)
	var botsBody struct {
		Bots []entity.BotRecord `json:"bots"`
	}
	require.NoError(t, json.Unmarshal(bots.Body.Bytes(), &botsBody))
	require.Len(t, botsBody.Bots, 1)
	assert.Equal(t, 2, botsBody.Bots[0].Wins)

	require.Equal(t, http.StatusOK, games.Code)
	assert.Contains(t, games.Body.String(), `"winner":"-"`)
	assert.Contains(t, games.Body.String(), `"white_player":"alpha"`)

	assert.Equal(t, http.StatusOK, botGames.Code)
	assert.Equal(t, http.StatusNotFound, ghostGames.Code)
}

func TestHandler_GetGame(t *testing.T) {
	// Given: one stored match
	arena := &mockArena{}
	arena.On("GetMatch", mock.Anything, "m1").Return(&usecase.MatchDetails{
		MatchResult: entity.MatchResult{ID: "m1", Moves: entity.MoveLog{19, 18}},
		FinalBoard:  []string{".."},
	}, nil)
	arena.On("GetMatch", mock.Anything, "nope").Return(nil, fmt.Errorf("failed to get match: %w", apperror.ErrNotFound))
	arena.On("GetBot", mock.Anything, "ghost").Return(nil, apperror.ErrNotFound)

	server, _ := newTestServer(t, arena, 1024)

	// When: the match is fetched
	found := doRequest(server, http.MethodGet, "/game/m1", "")
	missing := doRequest(server, http.MethodGet, "/game/nope", "")
	ghost := doRequest(server, http.MethodGet, "/bots/ghost", "")

	// Then: moves are plain numbers and unknown IDs are 404
	require.Equal(t, http.StatusOK, found.Code)
	assert.Contains(t, found.Body.String(), `"moves":[19,18]`)
	assert.Contains(t, found.Body.String(), `"final_board":[".."]`)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, http.StatusNotFound, ghost.Code)
}

func TestHandler_Tasks(t *testing.T) {
	// Given: one running task
	server, pool := newTestServer(t, &mockArena{}, 1024)

	started := make(chan struct{})
	task, err := pool.Submit("tournament alpha 8x8", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	<-started

	// When: tasks are listed and read
	list := doRequest(server, http.MethodGet, "/tasks", "")
	one := doRequest(server, http.MethodGet, "/tasks/"+task.ID, "")
	missing := doRequest(server, http.MethodGet, "/tasks/unknown", "")

	// Then: the task is visible
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), task.ID)
	require.Equal(t, http.StatusOK, one.Code)
	assert.Contains(t, one.Body.String(), `"status":"running"`)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	// When: the task is canceled
	canceled := doRequest(server, http.MethodDelete, "/tasks/"+task.ID, "")

	// Then: it stops
	assert.Equal(t, http.StatusOK, canceled.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.ErrorIs(t, task.Wait(ctx), context.Canceled)
	assert.Equal(t, worker.StatusCanceled, task.Status())
}
