package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/internal/service"
	"github.com/mtricolici98/bot-wuzzler/internal/websocket"
	"github.com/mtricolici98/bot-wuzzler/pkg/logger"
)

const commandName = "/wuzzler"

// fillers used by "lfg test"
var testPlayers = []string{"U_FAKE1", "U_FAKE2", "U_FAKE3"}

const helpText = "*Commands:*\n" +
	"`" + commandName + " lfg` join the queue\n" +
	"`" + commandName + " lfg test` join with three test players\n" +
	"`" + commandName + " cancel` leave the queue or the current match\n" +
	"`" + commandName + " current` show the current match\n" +
	"`" + commandName + " score a|b <score>` report a team's score\n" +
	"`" + commandName + " result <a wins> <b wins>` report the series result\n" +
	"`" + commandName + " stats` your MMR and record\n" +
	"`" + commandName + " leaderboard` / `loserboard`"

// CommandHandler answers chat slash commands with a text reply.
type CommandHandler struct {
	lobby   *service.LobbyService
	elo     *service.ELOService
	history *service.HistoryService
	announcer
}

func NewCommandHandler(lobby *service.LobbyService, elo *service.ELOService, history *service.HistoryService, notifier websocket.Notifier) *CommandHandler {
	return &CommandHandler{
		lobby:     lobby,
		elo:       elo,
		history:   history,
		announcer: announcer{notifier: notifier},
	}
}

// HandleCommand godoc
// @Summary Run a text command
// @Tags commands
// @Accept json
// @Produce json
// @Param request body models.CommandRequest true "Command"
// @Success 200 {object} map[string]string "Reply text"
// @Router /commands [post]
func (h *CommandHandler) HandleCommand(c *gin.Context) {
	var req models.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"text": h.Execute(c.Request.Context(), req.UserID, req.Text),
	})
}

// Execute runs one command for userID and returns the reply.
func (h *CommandHandler) Execute(ctx context.Context, userID, text string) string {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return helpText
	}

	logger.Debug("Command received", "user", userID, "command", fields[0])

	switch fields[0] {
	case "lfg":
		if len(fields) == 1 {
			return h.lfg(ctx, userID, false)
		}
		if len(fields) == 2 && fields[1] == "test" {
			return h.lfg(ctx, userID, true)
		}
	case "cancel":
		return h.cancel(ctx, userID)
	case "complete", "current":
		return h.current()
	case "stats":
		return h.stats(ctx, userID)
	case "score":
		return h.score(ctx, fields[1:])
	case "result":
		return h.result(ctx, fields[1:])
	case "leaderboard":
		return h.board(ctx, "Leaderboard", h.elo.Leaderboard)
	case "loserboard":
		return h.board(ctx, "Loserboard", h.elo.Loserboard)
	case "help":
		return helpText
	case "a", "b":
		return fmt.Sprintf("Please use %s score a <score> or %s score b <score> instead.", commandName, commandName)
	}

	return "Unknown command."
}

func (h *CommandHandler) lfg(ctx context.Context, userID string, testMode bool) string {
	var created *models.Match

	join := func(player string) error {
		match, err := h.lobby.Join(ctx, player)
		if err != nil {
			return err
		}
		if match != nil {
			h.matchCreated(ctx, match)
			created = match
		}
		return nil
	}

	if testMode {
		for _, fake := range testPlayers {
			if err := join(fake); err != nil {
				return errorText(err)
			}
		}
	}
	if err := join(userID); err != nil {
		return errorText(err)
	}

	if created != nil && created.HasPlayer(userID) {
		return "Game ready! Check your DM for teams."
	}

	active := h.lobby.ActiveMatch()
	if active != nil && active.HasPlayer(userID) {
		return "You are already playing in the current match."
	}

	size := h.lobby.QueueSize()
	if active != nil && size >= service.PlayersPerMatch {
		return fmt.Sprintf("A match is in progress. You're queued for the next one (%d in queue).", size)
	}
	return fmt.Sprintf("Looking for game! Waiting for more players... (%d/%d in queue)", size, service.PlayersPerMatch)
}

func (h *CommandHandler) cancel(ctx context.Context, userID string) string {
	next := h.lobby.Leave(ctx, userID)
	h.matchCreated(ctx, next)
	return "You have been removed from matchmaking."
}

func (h *CommandHandler) current() string {
	match := h.lobby.ActiveMatch()
	if match == nil {
		return "No active match."
	}
	return formatMatch(match)
}

func (h *CommandHandler) stats(ctx context.Context, userID string) string {
	stats, err := h.history.Stats(ctx, userID)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("Your current MMR: %d (%dW / %dL)", stats.Rating, stats.Wins, stats.Losses)
}

func (h *CommandHandler) score(ctx context.Context, args []string) string {
	if len(args) != 2 || (args[0] != "a" && args[0] != "b") {
		return fmt.Sprintf("Usage: %s score a <score> or %s score b <score>", commandName, commandName)
	}
	team := strings.ToUpper(args[0])

	score, err := strconv.Atoi(args[1])
	if err != nil || score < 0 {
		return fmt.Sprintf("Invalid score for Team %s.", team)
	}

	res, err := h.lobby.SetScore(ctx, team, score)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyScored) {
			return fmt.Sprintf("Score for Team %s already set.", team)
		}
		return errorText(err)
	}

	reply := fmt.Sprintf("Set Team %s score to %d.", team, score)
	if !res.Finalized {
		return reply
	}

	h.finalized(ctx, res)
	return reply + "\n\n" + formatFinalized(res)
}

func (h *CommandHandler) result(ctx context.Context, args []string) string {
	usage := fmt.Sprintf("Usage: %s result <team A wins> <team B wins>", commandName)
	if len(args) != 2 {
		return usage
	}
	aWins, errA := strconv.Atoi(args[0])
	bWins, errB := strconv.Atoi(args[1])
	if errA != nil || errB != nil {
		return usage
	}

	res, err := h.lobby.SubmitResult(ctx, aWins, bWins)
	if err != nil {
		return errorText(err)
	}

	h.finalized(ctx, res)
	return fmt.Sprintf("Result recorded: Team A %d - %d Team B.", aWins, bWins) + "\n\n" + formatFinalized(res)
}

func (h *CommandHandler) board(ctx context.Context, title string, rank func(context.Context, int) ([]models.PlayerStats, error)) string {
	players, err := rank(ctx, defaultBoardSize)
	if err != nil {
		return errorText(err)
	}
	if len(players) == 0 {
		return "No rated players yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s:*\n", title)
	for i, p := range players {
		fmt.Fprintf(&b, "%d. %s %d (%dW / %dL)\n", i+1, mention(p.PlayerID), p.Rating, p.Wins, p.Losses)
	}
	return b.String()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, service.ErrNoActiveMatch):
		return "No active match."
	case errors.Is(err, service.ErrInvalidResult):
		return "A match can't end in a draw. Check the scores and try again."
	case errors.Is(err, service.ErrPersistence):
		return "Couldn't save to the rating store. Please try again."
	case errors.Is(err, service.ErrInvalidInput):
		return "Invalid input."
	}
	logger.Error("Command failed", "error", err)
	return "Something went wrong."
}

func mention(playerID string) string {
	return "<@" + playerID + ">"
}

func formatMatch(match *models.Match) string {
	var b strings.Builder
	b.WriteString("*Teams:*\n")
	fmt.Fprintf(&b, "*Team A*: %s %s\n", mention(match.Teams.A[0]), mention(match.Teams.A[1]))
	fmt.Fprintf(&b, "*Team B*: %s %s\n", mention(match.Teams.B[0]), mention(match.Teams.B[1]))
	if match.Scores.A != nil || match.Scores.B != nil {
		fmt.Fprintf(&b, "\nScores: A: %s  B: %s\n", scoreText(match.Scores.A), scoreText(match.Scores.B))
	}
	return b.String()
}

func scoreText(score *int) string {
	if score == nil {
		return "-"
	}
	return strconv.Itoa(*score)
}

func formatFinalized(res *service.FinalizeResult) string {
	var b strings.Builder
	b.WriteString("*MMR Adjustments:*\n")
	for _, ch := range res.Changes {
		sign := ""
		if ch.Delta >= 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "%s: %d → %d (%s%d)\n", mention(ch.PlayerID), ch.OldRating, ch.NewRating, sign, ch.Delta)
	}
	if res.NextMatch != nil {
		b.WriteString("\nNext game is ready! Check your DM for teams.\n")
	}
	return b.String()
}
