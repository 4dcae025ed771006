package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
	"github.com/victornm/listenup/internal/game"
	"github.com/victornm/listenup/internal/leaderboard"
	"github.com/victornm/listenup/internal/user"
)

const playerKey = "player"

type (
	ErrorResponse struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	AuthResponse struct {
		Token     string `json:"token"`
		Username  string `json:"username"`
		Points    int    `json:"points"`
		SessionID string `json:"session_id"`
	}

	OptionsResponse struct {
		Types        []domain.Choice[string] `json:"types"`
		Difficulties []domain.Choice[string] `json:"difficulties"`
		Categories   []domain.Choice[int]    `json:"categories"`
	}

	Progress struct {
		Points     int  `json:"points"`
		GamePoints int  `json:"game_points"`
		Goal       int  `json:"goal"`
		Won        bool `json:"won"`
	}

	Question struct {
		ID         uint32   `json:"id"`
		Question   string   `json:"question"`
		Choices    []string `json:"choices"`
		Type       string   `json:"type,omitempty"`
		Difficulty string   `json:"difficulty,omitempty"`
		Category   string   `json:"category,omitempty"`
		Audio      string   `json:"audio,omitempty"`
	}

	NextQuestionResponse struct {
		Progress Progress  `json:"progress"`
		Question *Question `json:"question,omitempty"`
	}

	SubmitAnswerRequest struct {
		Answer string `json:"answer" binding:"required"`
	}

	SubmitAnswerResponse struct {
		Correct  bool     `json:"correct"`
		Progress Progress `json:"progress"`
	}

	Song struct {
		ID     uint32 `json:"id"`
		Artist string `json:"artist"`
		Title  string `json:"title"`
		Lyrics string `json:"lyrics"`
		Audio  string `json:"audio,omitempty"`
	}

	RewardSongResponse struct {
		Song     Song     `json:"song"`
		Progress Progress `json:"progress"`
	}

	LeaderboardResponse struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
)

func (a *API) Signup(c *gin.Context) {
	var req user.Credentials
	if !bind(c, &req) {
		return
	}

	u, err := a.us.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	a.startSession(c, http.StatusCreated, u)
}

func (a *API) Login(c *gin.Context) {
	var req user.Credentials
	if !bind(c, &req) {
		return
	}

	u, err := a.us.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	a.startSession(c, http.StatusOK, u)
}

func (a *API) startSession(c *gin.Context, status int, u *domain.User) {
	ss, err := a.gs.Start(c.Request.Context(), u.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := a.ts.Issue(user.Principal{UserID: u.ID, SessionID: ss.SessionID})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(status, AuthResponse{
		Token:     token,
		Username:  u.Username,
		Points:    u.Points,
		SessionID: ss.SessionID,
	})
}

func (a *API) Logout(c *gin.Context) {
	if err := a.gs.End(c.Request.Context(), player(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) ChangePassword(c *gin.Context) {
	var req user.ChangePasswordRequest
	if !bind(c, &req) {
		return
	}
	req.UserID = player(c).UserID

	if err := a.us.ChangePassword(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) ListOptions(c *gin.Context) {
	c.JSON(http.StatusOK, OptionsResponse{
		Types:        domain.QuestionTypes,
		Difficulties: domain.Difficulties,
		Categories:   domain.Categories,
	})
}

func (a *API) SetOptions(c *gin.Context) {
	var opts domain.Options
	if !bind(c, &opts) {
		return
	}

	ss, err := a.gs.SetOptions(c.Request.Context(), player(c), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ss.Options)
}

func (a *API) NextQuestion(c *gin.Context) {
	resp, err := a.gs.NextQuestion(c.Request.Context(), player(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := NextQuestionResponse{Progress: progress(resp.Progress)}
	if q := resp.Question; q != nil {
		out.Question = &Question{
			ID:         q.ID,
			Question:   q.Prompt,
			Choices:    resp.Choices,
			Type:       q.Type,
			Difficulty: q.Difficulty,
			Category:   q.Category,
			Audio:      resp.MediaRef,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (a *API) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if !bind(c, &req) {
		return
	}

	resp, err := a.gs.SubmitAnswer(c.Request.Context(), player(c), req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SubmitAnswerResponse{
		Correct:  resp.Correct,
		Progress: progress(resp.Progress),
	})
}

func (a *API) RewardSong(c *gin.Context) {
	resp, err := a.gs.RewardSong(c.Request.Context(), player(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, RewardSongResponse{
		Song: Song{
			ID:     resp.Song.ID,
			Artist: resp.Song.Artist,
			Title:  resp.Song.Title,
			Lyrics: resp.Song.Lyrics,
			Audio:  resp.MediaRef,
		},
		Progress: progress(resp.Progress),
	})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	var req leaderboard.GetLeaderboardRequest
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid limit %q", s)))
			return
		}
		req.Limit = n
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LeaderboardResponse{Entries: leaderboardEntries(*l)})
}

// authenticate accepts a bearer token and stores the player it identifies.
func (a *API) authenticate(c *gin.Context) {
	h := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		respondError(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing bearer token")))
		return
	}

	p, err := a.ts.Parse(token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Set(playerKey, game.Player{UserID: p.UserID, SessionID: p.SessionID})
	c.Next()
}

func player(c *gin.Context) game.Player {
	return c.MustGet(playerKey).(game.Player)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid request body: %v", err),
			errors.WithCause(err),
		))
		return false
	}
	return true
}

func respondError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), ErrorResponse{
		Code:    e.Code.String(),
		Message: e.Message,
	})
}

func progress(p game.Progress) Progress {
	return Progress{
		Points:     p.Points,
		GamePoints: p.GamePoints,
		Goal:       p.Goal,
		Won:        p.Won,
	}
}
