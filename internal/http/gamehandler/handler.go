package gamehandler

import (
	"errors"
	"net/http"

	"classgame/internal/metrics"
	"classgame/internal/room"
	"classgame/internal/services/score"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	registry room.Registry
	scores   score.IScoreService
	metrics  *metrics.Metrics
}

func New(registry room.Registry, scores score.IScoreService, m *metrics.Metrics) *Handler {
	return &Handler{registry: registry, scores: scores, metrics: m}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms/:code", h.info)
	r.GET("/rooms/:code/scores", h.leaderboard)
	r.POST("/rooms/:code/scores", h.submit)
}

// @Summary		Get room details
// @Description	Returns the lifecycle state and current roster of a live room.
// @Tags			Rooms
// @Param			code	path		string	true	"Room code"	default(GAME1)
// @Success		200		{object}	room.Info
// @Failure		404		{object}	ErrorResponse
// @Router			/rooms/{code} [get]
func (h *Handler) info(c *gin.Context) {
	info, ok, err := h.registry.Info(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// @Summary		Room leaderboard
// @Description	Lists persisted scores of a room, best first.
// @Tags			Scores
// @Param			code		path		string	true	"Room code"				default(GAME1)
// @Param			owner_id	query		string	true	"Session owner"
// @Param			limit		query		int		false	"Max results (0‑100)"	minimum(0)	maximum(100)	default(10)
// @Success		200			{array}		score.Record
// @Failure		400			{object}	ErrorResponse
// @Failure		500			{object}	ErrorResponse
// @Router			/rooms/{code}/scores [get]
func (h *Handler) leaderboard(c *gin.Context) {
	var q LeaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.scores.Leaderboard(c.Request.Context(), q.OwnerID, c.Param("code"), q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Submit a score
// @Description	Records a participant's score. Submissions less than 30 s after the previous one for the same participant overwrite it.
// @Tags			Scores
// @Param			code	path		string			true	"Room code"	default(GAME1)
// @Param			body	body		SubmitScoreBody	true	"Score payload"
// @Success		200		{object}	score.Result
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/rooms/{code}/scores [post]
func (h *Handler) submit(c *gin.Context) {
	var body SubmitScoreBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.scores.Submit(c.Request.Context(), score.Key{
		OwnerID:       body.OwnerID,
		RoomCode:      c.Param("code"),
		ParticipantID: body.ParticipantID,
	}, *body.Points)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, score.ErrMissingOwner) ||
			errors.Is(err, score.ErrMissingRoomCode) ||
			errors.Is(err, score.ErrMissingParticipant) {
			status = http.StatusBadRequest
		}
		c.JSON(status, &ErrorResponse{Error: err.Error()})
		return
	}
	h.metrics.ScoreSubmitted(string(res.Outcome))
	c.JSON(http.StatusOK, res)
}
