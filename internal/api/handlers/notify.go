package handlers

import (
	"context"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/internal/service"
	"github.com/mtricolici98/bot-wuzzler/internal/websocket"
	"github.com/mtricolici98/bot-wuzzler/pkg/logger"
)

// announcer pushes lobby events to the players involved. A nil notifier
// disables pushes.
type announcer struct {
	notifier websocket.Notifier
}

func (a announcer) matchCreated(ctx context.Context, match *models.Match) {
	if a.notifier == nil || match == nil {
		return
	}
	if err := a.notifier.Notify(ctx, websocket.MessageMatchCreated, match.Players, match); err != nil {
		logger.Warn("Failed to announce match", "matchId", match.ID, "error", err)
	}
}

// finalized announces the result to the finished match's teams, then the
// promoted match, if any.
func (a announcer) finalized(ctx context.Context, res *service.FinalizeResult) {
	if a.notifier == nil || res == nil || !res.Finalized {
		return
	}

	teams := res.Match.Teams
	recipients := append(teams.Members(models.TeamA), teams.Members(models.TeamB)...)
	if err := a.notifier.Notify(ctx, websocket.MessageMatchFinalized, recipients, res); err != nil {
		logger.Warn("Failed to announce result", "matchId", res.Match.ID, "error", err)
	}

	a.matchCreated(ctx, res.NextMatch)
}
