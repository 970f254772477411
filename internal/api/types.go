// Package api provides the REST API server for the policy engine.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/campuserp/abac-core/pkg/types"
)

// ErrorResponse is the wire shape of an API error.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DataScopeRequest asks for the list-query filter of a user on a model.
type DataScopeRequest struct {
	UserID    string `json:"userId"`
	ModelName string `json:"modelName"`
	Action    string `json:"action,omitempty"`
}

// PolicyTestRequest dry-runs a draft rule against a request.
type PolicyTestRequest struct {
	Policy  *types.PolicyRule        `json:"policy"`
	Request *types.EvaluationRequest `json:"request"`
}

// PolicyTestResponse reports the dry-run outcome.
type PolicyTestResponse struct {
	Matched bool               `json:"matched"`
	Effect  types.Effect       `json:"effect"`
	Trace   *types.PolicyTrace `json:"trace"`
}

// UpsertAttributeRequest sets one dynamic attribute on a user.
type UpsertAttributeRequest struct {
	AttributeName  string      `json:"attributeName"`
	AttributeValue types.Value `json:"attributeValue"`
	ValidFrom      *time.Time  `json:"validFrom,omitempty"`
	ValidUntil     *time.Time  `json:"validUntil,omitempty"`
	SetBy          string      `json:"setBy,omitempty"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// StatusResponse is the /v1/status payload.
type StatusResponse struct {
	Version     string                 `json:"version"`
	Uptime      string                 `json:"uptime"`
	PolicyCount int                    `json:"policyCount"`
	CacheStats  map[string]interface{} `json:"cacheStats,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Details: details})
}
