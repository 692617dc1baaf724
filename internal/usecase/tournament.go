package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/botarena/internal/entity"
	"github.com/rocketscienceinc/botarena/internal/game"
	"github.com/rocketscienceinc/botarena/internal/match"
	"github.com/rocketscienceinc/botarena/internal/sandbox"
)

type tournamentBotRepo interface {
	Opponents(ctx context.Context, contender string) (*entity.BotRecord, []entity.BotRecord, error)
	ApplyResults(ctx context.Context, contender string, results []entity.MatchResult) ([]entity.BotRecord, error)
}

type tournamentMatchRepo interface {
	InsertMany(ctx context.Context, results []entity.MatchResult) error
}

type programLoader interface {
	Load(ctx context.Context, payload []byte) (*sandbox.Program, error)
}

type resultMirror interface {
	Publish(ctx context.Context, results []entity.MatchResult, bots []entity.BotRecord) error
}

// TournamentSummary is what one run changed for its contender.
type TournamentSummary struct {
	Contender string `json:"contender"`
	BoardSize int    `json:"board_size"`
	Matches   int    `json:"matches"`
	Wins      int    `json:"wins"`
	Losses    int    `json:"losses"`
	Ties      int    `json:"ties"`
}

// Tournament plays a contender against every bot registered before it.
type Tournament struct {
	logger      *slog.Logger
	bots        tournamentBotRepo
	matches     tournamentMatchRepo
	loader      programLoader
	driver      *match.Driver
	mirror      resultMirror
	concurrency int
}

// NewTournament - mirror may be nil.
func NewTournament(
	logger *slog.Logger,
	bots tournamentBotRepo,
	matches tournamentMatchRepo,
	loader programLoader,
	mirror resultMirror,
	concurrency int,
) *Tournament {
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Tournament{
		logger:      logger.With("component", "tournament"),
		bots:        bots,
		matches:     matches,
		loader:      loader,
		driver:      match.NewDriver(logger),
		mirror:      mirror,
		concurrency: concurrency,
	}
}

// seat is one side of a pairing. A seat whose program failed to load forfeits every game.
type seat struct {
	name    string
	program *sandbox.Program
	loadErr error
}

// Run - plays two games per opponent on an edge*edge board, stores the results and updates the scoreboard.
// Nothing is recorded when ctx is cancelled before every game finished.
func (that *Tournament) Run(ctx context.Context, contender string, edge int) (*TournamentSummary, error) {
	log := that.logger.With("method", "Run", "contender", contender, "edge", edge)

	if err := game.ValidateEdge(edge); err != nil {
		return nil, err
	}

	self, opponents, err := that.bots.Opponents(ctx, contender)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot opponents: %w", err)
	}

	log.Info("tournament started", "opponents", len(opponents))

	home := that.seat(ctx, self)
	results := make([]entity.MatchResult, 2*len(opponents))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(that.concurrency)

	for i := range opponents {
		away := that.seat(ctx, &opponents[i])

		pairings := [2][2]seat{{home, away}, {away, home}}
		for j, pairing := range pairings {
			slot := 2*i + j
			white, black := pairing[0], pairing[1]

			group.Go(func() error {
				result, err := that.playGame(groupCtx, edge, white, black)
				if err != nil {
					return err
				}

				results[slot] = *result

				return nil
			})
		}
	}

	if err = group.Wait(); err != nil {
		return nil, fmt.Errorf("tournament aborted: %w", err)
	}

	if err = that.matches.InsertMany(ctx, results); err != nil {
		return nil, fmt.Errorf("failed to store results: %w", err)
	}

	updated, err := that.bots.ApplyResults(ctx, contender, results)
	if err != nil {
		return nil, fmt.Errorf("failed to update scoreboard: %w", err)
	}

	if that.mirror != nil && len(results) > 0 {
		if err = that.mirror.Publish(ctx, results, updated); err != nil {
			log.Warn("failed to mirror results", "error", err)
		}
	}

	summary := summarize(contender, edge, results)
	log.Info("tournament finished",
		"matches", summary.Matches, "wins", summary.Wins, "losses", summary.Losses, "ties", summary.Ties)

	return summary, nil
}

func (that *Tournament) seat(ctx context.Context, record *entity.BotRecord) seat {
	program, err := that.loader.Load(ctx, record.Payload)
	if err != nil {
		that.logger.Warn("failed to load bot program", "bot", record.Name, "error", err)
	}

	return seat{
		name:    record.Name,
		program: program,
		loadErr: err,
	}
}

// playGame - runs one game on fresh instances of both programs.
func (that *Tournament) playGame(ctx context.Context, edge int, white, black seat) (*entity.MatchResult, error) {
	whiteBot, whiteErr := instantiate(ctx, white, edge)
	if whiteBot != nil {
		defer that.closeBot(ctx, whiteBot)
	}

	blackBot, blackErr := instantiate(ctx, black, edge)
	if blackBot != nil {
		defer that.closeBot(ctx, blackBot)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		result *match.Result
		err    error
	)

	switch {
	case whiteErr != nil:
		result, err = forfeit(edge, game.White, whiteErr)
	case blackErr != nil:
		result, err = forfeit(edge, game.Black, blackErr)
	default:
		result, err = that.driver.Play(ctx, edge, whiteBot, blackBot)
	}

	if err != nil {
		return nil, err
	}

	return newMatchResult(edge, white.name, black.name, result)
}

func (that *Tournament) closeBot(ctx context.Context, bot *sandbox.Bot) {
	if err := bot.Close(context.WithoutCancel(ctx)); err != nil {
		that.logger.Warn("failed to close bot instance", "error", err)
	}
}

func instantiate(ctx context.Context, s seat, edge int) (*sandbox.Bot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	return s.program.NewBot(ctx, edge)
}

// forfeit - ends a game before the first move because player's bot could not start.
func forfeit(edge int, player game.Player, cause error) (*match.Result, error) {
	g, err := game.New(edge)
	if err != nil {
		return nil, err
	}

	g.Misplay(player)

	return &match.Result{Game: g, MisplayErr: cause}, nil
}

func newMatchResult(edge int, white, black string, result *match.Result) (*entity.MatchResult, error) {
	winner, err := result.Game.Winner()
	if err != nil {
		return nil, fmt.Errorf("failed to decide winner: %w", err)
	}

	matchResult := &entity.MatchResult{
		ID:         uuid.New().String(),
		White:      white,
		Black:      black,
		BoardSize:  edge,
		Moves:      entity.MoveLog(result.Game.Moves()),
		Misplay:    result.Game.IsMisplay(),
		FinishedAt: time.Now().UTC(),
	}

	switch winner {
	case game.White:
		matchResult.Winner = white
	case game.Black:
		matchResult.Winner = black
	default:
		matchResult.Winner = entity.WinnerTie
	}

	if result.MisplayErr != nil {
		matchResult.MisplayReason = result.MisplayErr.Error()
	}

	return matchResult, nil
}

func summarize(contender string, edge int, results []entity.MatchResult) *TournamentSummary {
	summary := &TournamentSummary{
		Contender: contender,
		BoardSize: edge,
		Matches:   len(results),
	}

	for i := range results {
		switch {
		case results[i].IsTie():
			summary.Ties++
		case results[i].Winner == contender:
			summary.Wins++
		default:
			summary.Losses++
		}
	}

	return summary
}
