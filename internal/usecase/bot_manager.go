package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/rocketscienceinc/botarena/internal/apperror"
	"github.com/rocketscienceinc/botarena/internal/entity"
	"github.com/rocketscienceinc/botarena/internal/game"
	"github.com/rocketscienceinc/botarena/internal/worker"
)

const maxCreatorLength = 128

// Names start with a letter or digit, so the tie marker "-" can never be a bot name.
var botNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

type botRepo interface {
	Create(ctx context.Context, bot *entity.BotRecord) (*entity.BotRecord, error)
	GetByName(ctx context.Context, name string) (*entity.BotRecord, error)
	Exists(ctx context.Context, name string) bool
	List(ctx context.Context) []entity.BotRecord
}

type matchRepo interface {
	GetByID(ctx context.Context, id string) (*entity.MatchResult, error)
	List(ctx context.Context) []entity.MatchSummary
	ListByBot(ctx context.Context, name string) []entity.MatchSummary
}

type payloadValidator interface {
	Validate(ctx context.Context, payload []byte) error
}

type taskSubmitter interface {
	Submit(name string, job worker.Job) (*worker.Task, error)
}

type tournamentRunner interface {
	Run(ctx context.Context, contender string, edge int) (*TournamentSummary, error)
}

// Registration is a stored bot and the tournament tasks queued for it.
type Registration struct {
	Bot   entity.BotRecord  `json:"bot"`
	Tasks []worker.TaskInfo `json:"tasks"`
}

// MatchDetails is a stored match with the final position rebuilt from its move log.
type MatchDetails struct {
	entity.MatchResult
	FinalBoard []string `json:"final_board"`
}

type BotManager struct {
	logger     *slog.Logger
	bots       botRepo
	matches    matchRepo
	validator  payloadValidator
	tasks      taskSubmitter
	tournament tournamentRunner
	boardSizes []int
}

func NewBotManager(
	logger *slog.Logger,
	bots botRepo,
	matches matchRepo,
	validator payloadValidator,
	tasks taskSubmitter,
	tournament tournamentRunner,
	boardSizes []int,
) *BotManager {
	return &BotManager{
		logger:     logger.With("component", "bot_manager"),
		bots:       bots,
		matches:    matches,
		validator:  validator,
		tasks:      tasks,
		tournament: tournament,
		boardSizes: boardSizes,
	}
}

// RegisterBot - stores a bot whose payload loads in the sandbox and queues one tournament run per board size.
func (that *BotManager) RegisterBot(ctx context.Context, name, creator string, payload []byte) (*Registration, error) {
	log := that.logger.With("method", "RegisterBot", "bot", name)

	if !botNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", apperror.ErrInvalidName, name)
	}

	if len(creator) > maxCreatorLength {
		return nil, fmt.Errorf("%w: creator is longer than %d bytes", apperror.ErrInvalidName, maxCreatorLength)
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: payload is empty", apperror.ErrInvalidPayload)
	}

	if that.bots.Exists(ctx, name) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrDuplicateName, name)
	}

	if err := that.validator.Validate(ctx, payload); err != nil {
		log.Info("bot payload rejected", "error", err)
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err)
	}

	record, err := that.bots.Create(ctx, &entity.BotRecord{
		Name:         name,
		Creator:      creator,
		Payload:      payload,
		RegisteredAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info("bot registered", "seq", record.Seq)

	registration := &Registration{
		Bot: *record,
	}

	for _, size := range that.boardSizes {
		task, err := that.tasks.Submit(fmt.Sprintf("tournament %s %dx%d", name, size, size), func(ctx context.Context) error {
			_, err := that.tournament.Run(ctx, name, size)
			return err
		})
		if err != nil {
			log.Error("failed to queue tournament", "board_size", size, "error", err)
			continue
		}

		registration.Tasks = append(registration.Tasks, task.Info())
	}

	return registration, nil
}

// ListBots - returns every bot in registration order.
func (that *BotManager) ListBots(ctx context.Context) []entity.BotRecord {
	return that.bots.List(ctx)
}

func (that *BotManager) GetBot(ctx context.Context, name string) (*entity.BotRecord, error) {
	record, err := that.bots.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}

	return record, nil
}

// ListMatches - returns every match summary in insertion order.
func (that *BotManager) ListMatches(ctx context.Context) []entity.MatchSummary {
	return that.matches.List(ctx)
}

func (that *BotManager) ListBotMatches(ctx context.Context, name string) ([]entity.MatchSummary, error) {
	if !that.bots.Exists(ctx, name) {
		return nil, fmt.Errorf("%w: bot %s", apperror.ErrNotFound, name)
	}

	return that.matches.ListByBot(ctx, name), nil
}

func (that *BotManager) GetMatch(ctx context.Context, id string) (*MatchDetails, error) {
	result, err := that.matches.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	details := &MatchDetails{
		MatchResult: *result,
	}

	replayed, err := game.Replay(result.BoardSize, result.Moves)
	if err != nil {
		that.logger.Error("failed to replay match", "match", id, "error", err)
		return details, nil
	}

	details.FinalBoard = replayed.Board().Rows()

	return details, nil
}
