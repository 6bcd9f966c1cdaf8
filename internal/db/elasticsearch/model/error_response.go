package model

const ResourceAlreadyExists = "resource_already_exists_exception"

type ErrorResponse struct {
	Error  ErrorCause `json:"error"`
	Status int        `json:"status"`
}

type ErrorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
