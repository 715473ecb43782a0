package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtricolici98/bot-wuzzler/internal/repository"
	"github.com/mtricolici98/bot-wuzzler/internal/service"
)

func newCommandHandler(policy service.MatchPolicy) (*CommandHandler, *service.LobbyService) {
	repo := repository.NewMemoryPlayerRepository()
	elo := service.NewELOService(repo, 32)
	lobby := service.NewLobbyService(elo, service.NewTeamBalancer(), policy)
	return NewCommandHandler(lobby, elo, service.NewHistoryService(repo), nil), lobby
}

func TestExecute_LfgQueuesAndStartsMatch(t *testing.T) {
	h, lobby := newCommandHandler(service.MatchPolicyWait)
	ctx := context.Background()

	assert.Equal(t, "Looking for game! Waiting for more players... (1/4 in queue)", h.Execute(ctx, "U1", "lfg"))
	assert.Equal(t, "Looking for game! Waiting for more players... (1/4 in queue)", h.Execute(ctx, "U1", "  LFG "))
	h.Execute(ctx, "U2", "lfg")
	h.Execute(ctx, "U3", "lfg")

	assert.Equal(t, "Game ready! Check your DM for teams.", h.Execute(ctx, "U4", "lfg"))
	require.NotNil(t, lobby.ActiveMatch())

	assert.Equal(t, "You are already playing in the current match.", h.Execute(ctx, "U2", "lfg"))

	for _, p := range []string{"Q1", "Q2", "Q3"} {
		h.Execute(ctx, p, "lfg")
	}
	assert.Equal(t, "A match is in progress. You're queued for the next one (4 in queue).", h.Execute(ctx, "Q4", "lfg"))
}

func TestExecute_LfgTestMode(t *testing.T) {
	h, lobby := newCommandHandler(service.MatchPolicyWait)

	reply := h.Execute(context.Background(), "U1", "lfg test")
	assert.Equal(t, "Game ready! Check your DM for teams.", reply)

	match := lobby.ActiveMatch()
	require.NotNil(t, match)
	assert.ElementsMatch(t, []string{"U_FAKE1", "U_FAKE2", "U_FAKE3", "U1"}, match.Players)
}

func TestExecute_CurrentAndCancel(t *testing.T) {
	h, lobby := newCommandHandler(service.MatchPolicyWait)
	ctx := context.Background()

	assert.Equal(t, "No active match.", h.Execute(ctx, "U1", "current"))
	assert.Equal(t, "No active match.", h.Execute(ctx, "U1", "complete"))

	h.Execute(ctx, "U1", "lfg test")
	match := lobby.ActiveMatch()
	require.NotNil(t, match)

	expected := fmt.Sprintf("*Teams:*\n*Team A*: <@%s> <@%s>\n*Team B*: <@%s> <@%s>\n",
		match.Teams.A[0], match.Teams.A[1], match.Teams.B[0], match.Teams.B[1])
	assert.Equal(t, expected, h.Execute(ctx, "U1", "current"))

	h.Execute(ctx, "U1", "score a 10")
	assert.Contains(t, h.Execute(ctx, "U1", "current"), "\nScores: A: 10  B: -\n")

	assert.Equal(t, "You have been removed from matchmaking.", h.Execute(ctx, "U1", "cancel"))
	assert.False(t, lobby.ActiveMatch().HasPlayer("U1"))
}

func TestExecute_ScoreFlow(t *testing.T) {
	h, lobby := newCommandHandler(service.MatchPolicyWait)
	ctx := context.Background()

	assert.Equal(t, "No active match.", h.Execute(ctx, "U1", "score a 10"))

	h.Execute(ctx, "U1", "lfg test")
	match := lobby.ActiveMatch()
	require.NotNil(t, match)

	tests := []struct {
		text  string
		reply string
	}{
		{text: "score c 10", reply: "Usage: /wuzzler score a <score> or /wuzzler score b <score>"},
		{text: "score a", reply: "Usage: /wuzzler score a <score> or /wuzzler score b <score>"},
		{text: "score a ten", reply: "Invalid score for Team A."},
		{text: "score b -1", reply: "Invalid score for Team B."},
		{text: "a 10", reply: "Please use /wuzzler score a <score> or /wuzzler score b <score> instead."},
		{text: "score a 10", reply: "Set Team A score to 10."},
		{text: "score a 7", reply: "Score for Team A already set."},
		{text: "score b 10", reply: "A match can't end in a draw. Check the scores and try again."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.reply, h.Execute(ctx, "U1", tt.text), tt.text)
	}

	reply := h.Execute(ctx, "U1", "score b 5")
	assert.Contains(t, reply, "Set Team B score to 5.\n\n*MMR Adjustments:*\n")
	// margin 5: round(32 * 1.0) = 32
	assert.Contains(t, reply, fmt.Sprintf("<@%s>: 1000 → 1032 (+32)\n", match.Teams.A[0]))
	assert.Contains(t, reply, fmt.Sprintf("<@%s>: 1000 → 968 (-32)\n", match.Teams.B[1]))

	assert.Equal(t, "No active match.", h.Execute(ctx, "U1", "current"))
	assert.Equal(t, "Your current MMR: 1032 (1W / 0L)", h.Execute(ctx, match.Teams.A[1], "stats"))
	assert.Equal(t, "Your current MMR: 968 (0W / 1L)", h.Execute(ctx, match.Teams.B[0], "stats"))
}

func TestExecute_Result(t *testing.T) {
	h, lobby := newCommandHandler(service.MatchPolicyWait)
	ctx := context.Background()

	h.Execute(ctx, "U1", "lfg test")

	assert.Equal(t, "Usage: /wuzzler result <team A wins> <team B wins>", h.Execute(ctx, "U1", "result 2"))
	assert.Equal(t, "Usage: /wuzzler result <team A wins> <team B wins>", h.Execute(ctx, "U1", "result x 1"))
	assert.Equal(t, "A match can't end in a draw. Check the scores and try again.", h.Execute(ctx, "U1", "result 1 1"))
	assert.Equal(t, "Invalid input.", h.Execute(ctx, "U1", "result -1 2"))

	reply := h.Execute(ctx, "U1", "result 2 1")
	assert.Contains(t, reply, "Result recorded: Team A 2 - 1 Team B.")
	assert.Contains(t, reply, "(+16)")
	assert.Contains(t, reply, "(-16)")
	assert.Nil(t, lobby.ActiveMatch())
}

func TestExecute_Boards(t *testing.T) {
	h, _ := newCommandHandler(service.MatchPolicyWait)
	ctx := context.Background()

	assert.Equal(t, "No rated players yet.", h.Execute(ctx, "U1", "leaderboard"))

	h.Execute(ctx, "U1", "lfg test")
	h.Execute(ctx, "U1", "result 0 3")

	board := h.Execute(ctx, "U1", "leaderboard")
	assert.Contains(t, board, "*Leaderboard:*\n1. <@")
	assert.Contains(t, board, " 1016 (1W / 0L)\n")

	loser := h.Execute(ctx, "U1", "loserboard")
	assert.Contains(t, loser, "*Loserboard:*\n1. <@")
	assert.Contains(t, loser, " 984 (0W / 1L)\n")
}

func TestExecute_UnknownAndHelp(t *testing.T) {
	h, _ := newCommandHandler(service.MatchPolicyWait)
	ctx := context.Background()

	assert.Equal(t, "Unknown command.", h.Execute(ctx, "U1", "dance"))
	assert.Equal(t, "Unknown command.", h.Execute(ctx, "U1", "lfg now please"))
	assert.Equal(t, helpText, h.Execute(ctx, "U1", ""))
	assert.Equal(t, helpText, h.Execute(ctx, "U1", "help"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("%w: bad", service.ErrInvalidInput), status: http.StatusBadRequest},
		{err: service.ErrInvalidResult, status: http.StatusUnprocessableEntity},
		{err: service.ErrNoActiveMatch, status: http.StatusNotFound},
		{err: service.ErrAlreadyScored, status: http.StatusConflict},
		{err: fmt.Errorf("%w: %w", service.ErrPersistence, errors.New("db")), status: http.StatusServiceUnavailable},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}
