package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/campuserp/abac-core/internal/audit"
	"github.com/campuserp/abac-core/internal/cache"
	"github.com/campuserp/abac-core/internal/engine"
	"github.com/campuserp/abac-core/pkg/types"
)

// evaluateHandler computes the access decision for one request.
func (s *Server) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	var req types.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.UserID == "" || req.Resource.ModelName == "" || req.Action == "" {
		WriteError(w, http.StatusBadRequest, "userId, resource.modelName, and action are required", nil)
		return
	}

	if req.IPAddress == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			req.IPAddress = host
		}
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	result := s.engine.Evaluate(r.Context(), &req)
	WriteJSON(w, http.StatusOK, result)
}

// dataScopeHandler returns the list-query filter for a user on a model.
func (s *Server) dataScopeHandler(w http.ResponseWriter, r *http.Request) {
	var req DataScopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.UserID == "" || req.ModelName == "" {
		WriteError(w, http.StatusBadRequest, "userId and modelName are required", nil)
		return
	}
	if req.Action == "" {
		req.Action = engine.DefaultScopeAction
	}

	scope := s.engine.GetDataScope(r.Context(), req.UserID, req.ModelName, req.Action)
	WriteJSON(w, http.StatusOK, scope)
}

// policyTestHandler dry-runs a draft rule against a request without saving it.
func (s *Server) policyTestHandler(w http.ResponseWriter, r *http.Request) {
	var req PolicyTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Policy == nil || req.Request == nil {
		WriteError(w, http.StatusBadRequest, "policy and request are required", nil)
		return
	}
	if err := s.validator.ValidateRule(req.Policy); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid policy", map[string]interface{}{"reason": err.Error()})
		return
	}

	trace, err := s.engine.TestPolicy(r.Context(), req.Policy, req.Request)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "attribute resolution failed", nil)
		return
	}

	WriteJSON(w, http.StatusOK, PolicyTestResponse{
		Matched: trace.Matched,
		Effect:  req.Policy.Effect,
		Trace:   trace,
	})
}

// listPoliciesHandler returns all policy rules.
func (s *Server) listPoliciesHandler(w http.ResponseWriter, r *http.Request) {
	rules, err := s.policies.GetAll(r.Context())
	if err != nil {
		s.logger.Error("list policies failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to list policies", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"policies": rules, "count": len(rules)})
}

// createPolicyHandler creates a new policy rule.
func (s *Server) createPolicyHandler(w http.ResponseWriter, r *http.Request) {
	var rule types.PolicyRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := s.validator.ValidateRule(&rule); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid policy", map[string]interface{}{"reason": err.Error()})
		return
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.policies.Create(r.Context(), &rule); err != nil {
		s.logger.Error("create policy failed", zap.String("policy_id", rule.ID), zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to create policy", nil)
		return
	}
	WriteJSON(w, http.StatusCreated, &rule)
}

// getPolicyHandler retrieves one policy rule.
func (s *Server) getPolicyHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, err := s.policies.Get(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "policy not found", nil)
		return
	}
	WriteJSON(w, http.StatusOK, rule)
}

// updatePolicyHandler replaces an existing policy rule.
func (s *Server) updatePolicyHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var rule types.PolicyRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	rule.ID = id
	if err := s.validator.ValidateRule(&rule); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid policy", map[string]interface{}{"reason": err.Error()})
		return
	}
	rule.UpdatedAt = time.Now()

	if err := s.policies.Update(r.Context(), &rule); err != nil {
		WriteError(w, http.StatusNotFound, "policy not found", nil)
		return
	}
	WriteJSON(w, http.StatusOK, &rule)
}

// deletePolicyHandler soft-deletes a policy rule.
func (s *Server) deletePolicyHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.policies.Deactivate(r.Context(), id); err != nil {
		WriteError(w, http.StatusNotFound, "policy not found", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deactivated"})
}

// listDefinitionsHandler returns the attribute catalog.
func (s *Server) listDefinitionsHandler(w http.ResponseWriter, r *http.Request) {
	if s.defs == nil {
		WriteError(w, http.StatusServiceUnavailable, "attribute catalog not configured", nil)
		return
	}
	defs, err := s.defs.ListDefinitions(r.Context())
	if err != nil {
		s.logger.Error("list attribute definitions failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to list attribute definitions", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"definitions": defs, "count": len(defs)})
}

// saveDefinitionHandler creates or replaces an attribute definition.
func (s *Server) saveDefinitionHandler(w http.ResponseWriter, r *http.Request) {
	if s.defs == nil {
		WriteError(w, http.StatusServiceUnavailable, "attribute catalog not configured", nil)
		return
	}

	var def types.AttributeDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if def.Name == "" || def.DataType == "" {
		WriteError(w, http.StatusBadRequest, "name and dataType are required", nil)
		return
	}
	if !validDataTypes[def.DataType] {
		WriteError(w, http.StatusBadRequest, "invalid dataType", map[string]interface{}{"dataType": string(def.DataType)})
		return
	}
	if def.DataType == types.DataTypeReference && def.ReferenceModel == "" {
		WriteError(w, http.StatusBadRequest, "reference attributes require referenceModel", nil)
		return
	}

	if err := s.defs.SaveDefinition(r.Context(), &def); err != nil {
		s.logger.Error("save attribute definition failed", zap.String("name", def.Name), zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to save attribute definition", nil)
		return
	}
	WriteJSON(w, http.StatusOK, &def)
}

// getDefinitionHandler retrieves one attribute definition.
func (s *Server) getDefinitionHandler(w http.ResponseWriter, r *http.Request) {
	if s.defs == nil {
		WriteError(w, http.StatusServiceUnavailable, "attribute catalog not configured", nil)
		return
	}
	name := mux.Vars(r)["name"]
	def, err := s.defs.GetDefinition(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusNotFound, "attribute definition not found", nil)
		return
	}
	WriteJSON(w, http.StatusOK, def)
}

// deleteDefinitionHandler soft-deletes an attribute definition.
func (s *Server) deleteDefinitionHandler(w http.ResponseWriter, r *http.Request) {
	if s.defs == nil {
		WriteError(w, http.StatusServiceUnavailable, "attribute catalog not configured", nil)
		return
	}
	name := mux.Vars(r)["name"]
	if err := s.defs.DeactivateDefinition(r.Context(), name); err != nil {
		WriteError(w, http.StatusNotFound, "attribute definition not found", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"name": name, "status": "deactivated"})
}

// listUserAttributesHandler returns every attribute row for a user.
func (s *Server) listUserAttributesHandler(w http.ResponseWriter, r *http.Request) {
	if s.attrs == nil {
		WriteError(w, http.StatusServiceUnavailable, "attribute store not configured", nil)
		return
	}
	userID := mux.Vars(r)["id"]
	attrs, err := s.attrs.ListForUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("list user attributes failed", zap.String("user_id", userID), zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to list user attributes", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"attributes": attrs, "count": len(attrs)})
}

// upsertUserAttributeHandler sets one dynamic attribute on a user.
func (s *Server) upsertUserAttributeHandler(w http.ResponseWriter, r *http.Request) {
	if s.attrs == nil {
		WriteError(w, http.StatusServiceUnavailable, "attribute store not configured", nil)
		return
	}
	userID := mux.Vars(r)["id"]

	var req UpsertAttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.AttributeName == "" {
		WriteError(w, http.StatusBadRequest, "attributeName is required", nil)
		return
	}

	validFrom := time.Now()
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	if set, ok := ClaimsFromContext(r.Context()); ok && req.SetBy == "" {
		req.SetBy = set.UserID
	}

	attr := &types.UserAttribute{
		UserID:         userID,
		AttributeName:  req.AttributeName,
		AttributeValue: req.AttributeValue,
		ValidFrom:      validFrom,
		ValidUntil:     req.ValidUntil,
		IsActive:       true,
		SetBy:          req.SetBy,
	}

	if err := s.attrs.Upsert(r.Context(), attr); err != nil {
		s.logger.Error("upsert user attribute failed",
			zap.String("user_id", userID),
			zap.String("attribute", req.AttributeName),
			zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to save user attribute", nil)
		return
	}
	WriteJSON(w, http.StatusOK, attr)
}

// deactivateUserAttributeHandler soft-deletes one user attribute.
func (s *Server) deactivateUserAttributeHandler(w http.ResponseWriter, r *http.Request) {
	if s.attrs == nil {
		WriteError(w, http.StatusServiceUnavailable, "attribute store not configured", nil)
		return
	}
	vars := mux.Vars(r)
	if err := s.attrs.Deactivate(r.Context(), vars["id"], vars["name"]); err != nil {
		WriteError(w, http.StatusNotFound, "user attribute not found", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"userId":        vars["id"],
		"attributeName": vars["name"],
		"status":        "deactivated",
	})
}

// listEvaluationsHandler browses the audit trail.
func (s *Server) listEvaluationsHandler(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil {
		WriteError(w, http.StatusServiceUnavailable, "audit store not configured", nil)
		return
	}

	filter, err := parseEvaluationFilter(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	records, err := s.auditStore.Query(r.Context(), filter)
	if err != nil {
		s.logger.Error("query evaluations failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to query evaluations", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"evaluations": records, "count": len(records)})
}

func parseEvaluationFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		UserID:    q.Get("userId"),
		ModelName: q.Get("modelName"),
		Decision:  types.Decision(q.Get("decision")),
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errInvalidParam("since")
		}
		filter.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errInvalidParam("until")
		}
		filter.Until = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errInvalidParam("limit")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errInvalidParam("offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

var validDataTypes = map[types.DataType]bool{
	types.DataTypeString:    true,
	types.DataTypeNumber:    true,
	types.DataTypeBoolean:   true,
	types.DataTypeDate:      true,
	types.DataTypeReference: true,
	types.DataTypeArray:     true,
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid query parameter: " + string(e) }

// healthHandler reports service health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"engine": "ok"}

	if _, err := s.policies.Count(r.Context()); err != nil {
		checks["policy_store"] = "error"
		WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "unhealthy",
			Timestamp: time.Now(),
			Checks:    checks,
		})
		return
	}
	checks["policy_store"] = "ok"

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    checks,
	})
}

// statusHandler reports service status and cache statistics.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	count, _ := s.policies.Count(r.Context())

	resp := StatusResponse{
		Version:     s.config.Version,
		Uptime:      time.Since(s.startTime).String(),
		PolicyCount: count,
		Timestamp:   time.Now(),
	}

	if cached, ok := s.policies.(interface{ Stats() cache.Stats }); ok {
		stats := cached.Stats()
		resp.CacheStats = map[string]interface{}{
			"size":     stats.Size,
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"hit_rate": stats.HitRate,
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}
