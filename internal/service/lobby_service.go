package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/pkg/logger"
)

const TeamSize = 2

// PlayersPerMatch is the queue length that triggers a match.
const PlayersPerMatch = 2 * TeamSize

type MatchPolicy string

const (
	// MatchPolicyWait keeps a full queue waiting until the active match is
	// finalized or abandoned, then promotes it.
	MatchPolicyWait MatchPolicy = "wait"
	// MatchPolicyReplace lets a full queue replace the active match.
	MatchPolicyReplace MatchPolicy = "replace"
)

// ParseMatchPolicy reads a configured policy. An empty value means wait;
// anything other than wait or replace is rejected.
func ParseMatchPolicy(value string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", MatchPolicyWait:
		return MatchPolicyWait, nil
	case MatchPolicyReplace:
		return MatchPolicyReplace, nil
	}
	return "", fmt.Errorf("%w: unknown match policy %q", ErrInvalidInput, value)
}

// FinalizeResult is returned by score and result submissions.
type FinalizeResult struct {
	Match     *models.Match         `json:"match"`
	Finalized bool                  `json:"finalized"`
	Result    *models.MatchResult   `json:"result,omitempty"`
	Changes   []models.RatingChange `json:"changes,omitempty"`
	NextMatch *models.Match         `json:"nextMatch,omitempty"`
}

// LobbyService holds the waiting queue and the single active match. One
// mutex covers every command, rating updates of a finalize included.
type LobbyService struct {
	elo      *ELOService
	balancer *TeamBalancer
	policy   MatchPolicy
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	queue  []string
	active *models.Match
}

// NewLobbyService builds the lobby. The zero policy means wait.
func NewLobbyService(elo *ELOService, balancer *TeamBalancer, policy MatchPolicy) *LobbyService {
	if policy == "" {
		policy = MatchPolicyWait
	}
	return &LobbyService{
		elo:      elo,
		balancer: balancer,
		policy:   policy,
		logger:   logger.Named("lobby"),
		now:      time.Now,
	}
}

func (s *LobbyService) Policy() MatchPolicy {
	return s.policy
}

// Join queues a player. It is a no-op for a player already queued or already
// playing in the active match. A non-nil match is returned when this join
// completed a group of four.
func (s *LobbyService) Join(ctx context.Context, playerID string) (*models.Match, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, fmt.Errorf("%w: empty player id", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.HasPlayer(playerID) {
		return nil, nil
	}

	added := false
	if !lo.Contains(s.queue, playerID) {
		s.queue = append(s.queue, playerID)
		added = true
		s.logger.Debug("Player queued",
			zap.String("player", playerID),
			zap.Int("queueSize", len(s.queue)))
	}

	match, err := s.createMatchLocked(ctx)
	if err != nil {
		if added {
			s.queue = lo.Without(s.queue, playerID)
		}
		return nil, err
	}

	return match.Clone(), nil
}

// Leave removes a player from the queue and from the active match's player
// list. A match left by everyone is discarded. Teams and scores of a match
// left by some players are kept as they are. The returned match is the
// waiting group promoted into the freed slot, if any.
func (s *LobbyService) Leave(ctx context.Context, playerID string) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lo.Contains(s.queue, playerID) {
		s.queue = lo.Without(s.queue, playerID)
		s.logger.Debug("Player left queue", zap.String("player", playerID))
	}

	if s.active == nil || !s.active.HasPlayer(playerID) {
		return nil
	}

	s.active.Players = lo.Without(s.active.Players, playerID)
	s.logger.Info("Player left active match",
		zap.String("matchId", s.active.ID),
		zap.String("player", playerID),
		zap.Int("remaining", len(s.active.Players)))

	if len(s.active.Players) > 0 {
		return nil
	}

	s.logger.Info("Active match abandoned", zap.String("matchId", s.active.ID))
	s.active = nil

	return s.promoteLocked(ctx).Clone()
}

// ActiveMatch returns a copy of the active match or nil.
func (s *LobbyService) ActiveMatch() *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active.Clone()
}

func (s *LobbyService) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

// Queue returns the waiting players in join order.
func (s *LobbyService) Queue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string{}, s.queue...)
}

// SetScore records one team's score. The second score finalizes the match
// with the margin-weighted update.
func (s *LobbyService) SetScore(ctx context.Context, team string, score int) (*FinalizeResult, error) {
	side, err := ParseTeam(team)
	if err != nil {
		return nil, err
	}
	if score < 0 {
		return nil, fmt.Errorf("%w: negative score %d", ErrInvalidInput, score)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, ErrNoActiveMatch
	}
	if s.active.Scores.Get(side) != nil {
		return nil, fmt.Errorf("%w: team %s", ErrAlreadyScored, side)
	}

	other := s.active.Scores.Get(otherTeam(side))
	if other != nil && *other == score {
		return nil, fmt.Errorf("%w: both teams scored %d", ErrInvalidResult, score)
	}

	value := score
	s.active.Scores.Set(side, &value)

	if other == nil {
		s.active.State = models.MatchStatePartial
		s.logger.Info("Team score set",
			zap.String("matchId", s.active.ID),
			zap.String("team", string(side)),
			zap.Int("score", score))
		return &FinalizeResult{Match: s.active.Clone()}, nil
	}

	result, err := s.finalizeLocked(ctx, RatingModeMargin, *s.active.Scores.A, *s.active.Scores.B)
	if err != nil {
		// keep the match retryable with the same call
		s.active.Scores.Set(side, nil)
		return nil, err
	}
	return result, nil
}

// SubmitResult finalizes the active match from both teams' win counts in a
// single call, using the Elo team update.
func (s *LobbyService) SubmitResult(ctx context.Context, aWins, bWins int) (*FinalizeResult, error) {
	if aWins < 0 || bWins < 0 {
		return nil, fmt.Errorf("%w: win counts must not be negative", ErrInvalidInput)
	}
	if aWins == bWins {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidResult, aWins, bWins)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, ErrNoActiveMatch
	}

	return s.finalizeLocked(ctx, RatingModeElo, aWins, bWins)
}

func (s *LobbyService) finalizeLocked(ctx context.Context, mode RatingMode, aScore, bScore int) (*FinalizeResult, error) {
	winner := models.TeamA
	if bScore > aScore {
		winner = models.TeamB
	}
	winners := s.active.Teams.Members(winner)
	losers := s.active.Teams.Members(otherTeam(winner))

	changes, err := s.elo.SettleMatch(ctx, mode, winners, losers, abs(aScore-bScore))
	if err != nil {
		s.logger.Error("Match finalization failed",
			zap.String("matchId", s.active.ID),
			zap.Error(err))
		return nil, err
	}

	finished := s.active.Clone()
	finished.Scores = models.Scores{A: &aScore, B: &bScore}
	finished.State = models.MatchStateFinalized
	s.active = nil

	s.logger.Info("Match finalized",
		zap.String("matchId", finished.ID),
		zap.String("mode", string(mode)),
		zap.String("winner", string(winner)),
		zap.Int("aScore", aScore),
		zap.Int("bScore", bScore))

	return &FinalizeResult{
		Match:     finished,
		Finalized: true,
		Result:    &models.MatchResult{Winner: winner, AScore: aScore, BScore: bScore},
		Changes:   changes,
		NextMatch: s.promoteLocked(ctx).Clone(),
	}, nil
}

// promoteLocked fills a freed slot from the queue. A failure leaves the
// group queued; the next join retries.
func (s *LobbyService) promoteLocked(ctx context.Context) *models.Match {
	match, err := s.createMatchLocked(ctx)
	if err != nil {
		s.logger.Error("Failed to promote waiting players", zap.Error(err))
		return nil
	}
	return match
}

// createMatchLocked turns the first four queued players into the active
// match when the policy allows it. The queue is only modified on success.
func (s *LobbyService) createMatchLocked(ctx context.Context) (*models.Match, error) {
	if len(s.queue) < PlayersPerMatch {
		return nil, nil
	}
	if s.active != nil && s.policy != MatchPolicyReplace {
		return nil, nil
	}

	group := append([]string(nil), s.queue[:PlayersPerMatch]...)

	ratings, err := s.elo.Ratings(ctx, group)
	if err != nil {
		return nil, err
	}

	teams, err := s.balancer.Split(group, func(p string) int { return ratings[p] })
	if err != nil {
		return nil, err
	}

	if s.active != nil {
		s.logger.Warn("Replacing active match",
			zap.String("matchId", s.active.ID),
			zap.Strings("players", s.active.Players))
	}

	match := &models.Match{
		ID:        uuid.New().String(),
		Players:   group,
		Teams:     teams,
		State:     models.MatchStateOpen,
		CreatedAt: s.now(),
	}
	s.active = match
	s.queue = append([]string{}, s.queue[PlayersPerMatch:]...)

	s.logger.Info("Match created",
		zap.String("matchId", match.ID),
		zap.Strings("teamA", teams.Members(models.TeamA)),
		zap.Strings("teamB", teams.Members(models.TeamB)),
		zap.Int("imbalance", Imbalance(teams, func(p string) int { return ratings[p] })))

	return match, nil
}

// ParseTeam accepts "a"/"A"/"b"/"B".
func ParseTeam(team string) (models.Team, error) {
	switch strings.ToUpper(strings.TrimSpace(team)) {
	case "A":
		return models.TeamA, nil
	case "B":
		return models.TeamB, nil
	}
	return "", fmt.Errorf("%w: unknown team %q", ErrInvalidInput, team)
}

func otherTeam(team models.Team) models.Team {
	if team == models.TeamA {
		return models.TeamB
	}
	return models.TeamA
}
