package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/botarena/internal/apperror"
	"github.com/rocketscienceinc/botarena/internal/entity"
	"github.com/rocketscienceinc/botarena/internal/usecase"
	"github.com/rocketscienceinc/botarena/internal/worker"
)

type arenaUseCase interface {
	RegisterBot(ctx context.Context, name, creator string, payload []byte) (*usecase.Registration, error)
	ListBots(ctx context.Context) []entity.BotRecord
	GetBot(ctx context.Context, name string) (*entity.BotRecord, error)
	ListMatches(ctx context.Context) []entity.MatchSummary
	ListBotMatches(ctx context.Context, name string) ([]entity.MatchSummary, error)
	GetMatch(ctx context.Context, id string) (*usecase.MatchDetails, error)
}

type taskRegistry interface {
	Get(id string) (*worker.Task, error)
	List() []*worker.Task
}

type Handler struct {
	logger *slog.Logger
	arena  arenaUseCase
	tasks  taskRegistry
}

func NewHandler(logger *slog.Logger, arena arenaUseCase, tasks taskRegistry) *Handler {
	return &Handler{
		logger: logger.With("component", "rest"),
		arena:  arena,
		tasks:  tasks,
	}
}

// Register - mounts every route on e.
func (that *Handler) Register(e *echo.Echo) {
	e.GET("/ping", that.Ping)

	e.POST("/new-bot", that.NewBot)
	e.GET("/bots", that.ListBots)
	e.GET("/bots/:name", that.GetBot)
	e.GET("/bots/:name/games", that.ListBotGames)

	e.GET("/games", that.ListGames)
	e.GET("/game/:id", that.GetGame)

	e.GET("/tasks", that.ListTasks)
	e.GET("/tasks/:id", that.GetTask)
	e.DELETE("/tasks/:id", that.CancelTask)
}

func (that *Handler) Ping(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "pong")
}

func (that *Handler) NewBot(ctx echo.Context) error {
	log := that.logger.With("method", "NewBot")

	var request newBotRequest
	if err := ctx.Bind(&request); err != nil {
		log.Debug("failed to bind request", "error", err)

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge {
			return err
		}

		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	registration, err := that.arena.RegisterBot(ctx.Request().Context(), request.Name, request.Creator, request.Wasm)
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, registration)
}

func (that *Handler) ListBots(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"bots": that.arena.ListBots(ctx.Request().Context()),
	})
}

func (that *Handler) GetBot(ctx echo.Context) error {
	bot, err := that.arena.GetBot(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, bot)
}

func (that *Handler) ListBotGames(ctx echo.Context) error {
	games, err := that.arena.ListBotMatches(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"games": games,
	})
}

func (that *Handler) ListGames(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"games": that.arena.ListMatches(ctx.Request().Context()),
	})
}

func (that *Handler) GetGame(ctx echo.Context) error {
	details, err := that.arena.GetMatch(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, details)
}

func (that *Handler) ListTasks(ctx echo.Context) error {
	tasks := that.tasks.List()

	infos := make([]worker.TaskInfo, 0, len(tasks))
	for _, task := range tasks {
		infos = append(infos, task.Info())
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"tasks": infos,
	})
}

func (that *Handler) GetTask(ctx echo.Context) error {
	task, err := that.tasks.Get(ctx.Param("id"))
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, task.Info())
}

func (that *Handler) CancelTask(ctx echo.Context) error {
	task, err := that.tasks.Get(ctx.Param("id"))
	if err != nil {
		return that.fail(ctx, err)
	}

	task.Cancel()
	that.logger.Info("task cancel requested", "task", task.ID, "name", task.Name)

	return ctx.JSON(http.StatusOK, task.Info())
}

// fail - maps domain errors to status codes.
func (that *Handler) fail(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperror.ErrInvalidName), errors.Is(err, apperror.ErrInvalidPayload):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	default:
		that.logger.Error("request failed", "path", ctx.Path(), "error", err)
		return ctx.JSON(status, errorResponse{Error: http.StatusText(status)})
	}

	return ctx.JSON(status, errorResponse{Error: err.Error()})
}
