package handlers

type ErrorResponse struct {
	Error string `json:"error" example:"channel cam-1 not found"`
}

type SuccessResponse struct {
	Message string `json:"message" example:"Channel stopped"`
}
