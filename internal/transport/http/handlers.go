package http

import (
	"net/http"
	"strconv"

	"bleepy-challenge-service/internal/app"
	"bleepy-challenge-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ChallengeHandler exposes the challenge use cases over REST.
type ChallengeHandler struct {
	service *app.ChallengeService
	log     *logrus.Entry
}

func NewChallengeHandler(service *app.ChallengeService, log *logrus.Entry) *ChallengeHandler {
	return &ChallengeHandler{service: service, log: log}
}

type createChallengeRequest struct {
	Categories    []string            `json:"categories"`
	Difficulties  []domain.Difficulty `json:"difficulties"`
	QuestionCount int                 `json:"questionCount" binding:"required"`
}

type submitAnswerRequest struct {
	ParticipantID    string   `json:"participantId" binding:"required"`
	QuestionID       string   `json:"questionId" binding:"required"`
	SelectedAnswer   *string  `json:"selectedAnswer"`
	TimeTakenSeconds *float64 `json:"timeTakenSeconds" binding:"required"`
}

func (h *ChallengeHandler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, h.log, domain.Invalid("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	var req createChallengeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	ch, err := h.service.CreateChallenge(c.Request.Context(), identityFrom(c).UserID, domain.Filters{
		Categories:    req.Categories,
		Difficulties:  req.Difficulties,
		QuestionCount: req.QuestionCount,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": ch.ID, "code": ch.Code, "status": ch.Status})
}

func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	view, err := h.service.Challenge(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ChallengeHandler) JoinChallenge(c *gin.Context) {
	p, err := h.service.JoinChallenge(c.Request.Context(), c.Param("code"), identityFrom(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ChallengeHandler) MarkReady(c *gin.Context) {
	p, err := h.service.MarkReady(c.Request.Context(), c.Param("code"), identityFrom(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ChallengeHandler) RemoveParticipant(c *gin.Context) {
	err := h.service.RemoveParticipant(c.Request.Context(), c.Param("code"), c.Param("participantId"), identityFrom(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChallengeHandler) StartChallenge(c *gin.Context) {
	ch, err := h.service.StartChallenge(c.Request.Context(), c.Param("code"), identityFrom(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *ChallengeHandler) EndChallenge(c *gin.Context) {
	ch, err := h.service.EndChallenge(c.Request.Context(), c.Param("code"), identityFrom(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *ChallengeHandler) SubmitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.service.SubmitAnswer(c.Request.Context(), c.Param("code"), domain.AnswerSubmission{
		ParticipantID:    req.ParticipantID,
		UserID:           identityFrom(c).UserID,
		QuestionID:       req.QuestionID,
		SelectedAnswer:   req.SelectedAnswer,
		TimeTakenSeconds: *req.TimeTakenSeconds,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ChallengeHandler) Leaderboard(c *gin.Context) {
	q := domain.LeaderboardQuery{
		Period:     domain.Period(c.Query("period")),
		Category:   c.Query("category"),
		Difficulty: domain.Difficulty(c.Query("difficulty")),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, h.log, domain.Invalid("limit must be a number"))
			return
		}
		q.Limit = n
	}
	entries, err := h.service.Leaderboard(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	period := q.Period
	if period == "" {
		period = domain.PeriodAllTime
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "entries": entries})
}

func (h *ChallengeHandler) ResetLeaderboard(c *gin.Context) {
	summary, err := h.service.ResetLeaderboard(c.Request.Context(), identityFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *ChallengeHandler) MyXP(c *gin.Context) {
	xp, err := h.service.UserXP(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, xp)
}
