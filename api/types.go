package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/interfaces"
)

// CallerHeader carries the hex address of the account performing a call.
const CallerHeader = "X-Registry-Caller"

// RequestIDHeader correlates client requests with server access logs.
const RequestIDHeader = "X-Request-Id"

// RegisterResponse is returned by POST /api/v1/entities.
type RegisterResponse struct {
	Address common.Address `json:"address"`
}

// ChangeStatusRequest is the body of POST /api/v1/entities/{address}/status.
type ChangeStatusRequest struct {
	Status interfaces.Status `json:"status"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Route paths served by httpserver and used by clients.
const (
	EntitiesPath     = "/api/v1/entities"
	UserEntitiesPath = "/api/v1/users/%s/entities"
	LogicPath        = "/api/v1/logic"
)
