package gamehandler

type SubmitScoreBody struct {
	OwnerID       string   `json:"owner_id"       binding:"required,max=64" example:"teacher-1"`
	ParticipantID string   `json:"participant_id" binding:"required,max=64" example:"student-7"`
	Points        *float64 `json:"points"         binding:"required"        example:"120"`
} // @name SubmitScoreRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type LeaderboardQuery struct {
	OwnerID string `form:"owner_id" binding:"required"`
	Limit   int    `form:"limit,default=10" binding:"gte=0,lte=100"`
} // @name LeaderboardQuery
