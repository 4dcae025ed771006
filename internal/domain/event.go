package domain

const (
	EventNamePointsAwarded      = "points.awarded"
	EventNameGameWon            = "game.won"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventPointsAwarded struct {
	Score      Score
	QuestionID uint32
}

func (EventPointsAwarded) Name() string { return EventNamePointsAwarded }

type EventGameWon struct {
	SessionID string
	Username  string
	Points    int
}

func (EventGameWon) Name() string { return EventNameGameWon }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
