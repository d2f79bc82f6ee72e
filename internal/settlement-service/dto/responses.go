package dto

type SubmitWagerResponse struct {
	WagerID uint64 `json:"wagerId"`
	Status  string `json:"status"` // PENDING
	Message string `json:"message,omitempty"`
}

type PlayerWagersResponse struct {
	Player   string   `json:"player"`
	WagerIDs []uint64 `json:"wagerIds"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
