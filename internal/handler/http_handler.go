package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/studioflow-io/be-orders/internal/errors"
	"github.com/studioflow-io/be-orders/internal/logger"
	"github.com/studioflow-io/be-orders/internal/repository"
	"github.com/studioflow-io/be-orders/internal/service"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	workflows *service.WorkflowService
	approvals *service.ApprovalService
	renewals  *service.RenewalService
	contracts *service.ContractService
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	workflows *service.WorkflowService,
	approvals *service.ApprovalService,
	renewals *service.RenewalService,
	contracts *service.ContractService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		workflows: workflows,
		approvals: approvals,
		renewals:  renewals,
		contracts: contracts,
		log:       log,
	}
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, errors.HTTPStatus(err), map[string]string{
		"code":  string(errors.CodeOf(err)),
		"error": err.Error(),
	})
}

// CreateSubmission handles create submission HTTP requests
func (h *HTTPHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		OwnerID      string  `json:"owner_id"`
		BrandName    string  `json:"brand_name"`
		ContactName  *string `json:"contact_name"`
		ContactPhone *string `json:"contact_phone"`
		ContactEmail *string `json:"contact_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.approvals.CreateSubmission(r.Context(), &service.CreateSubmissionRequest{
		OwnerID:      req.OwnerID,
		BrandName:    req.BrandName,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, sub)
}

// GetSubmission handles get submission HTTP requests
func (h *HTTPHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Submission ID is required", http.StatusBadRequest)
		return
	}

	sub, err := h.approvals.GetSubmission(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sub)
}

// ApproveSubmission handles submission approval HTTP requests
func (h *HTTPHandler) ApproveSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID    string                    `json:"id"`
		Actor string                    `json:"actor"`
		Types []repository.WorkflowType `json:"types"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.approvals.ApproveSubmission(r.Context(), req.ID, req.Actor, req.Types)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"submission":     outcome.Submission,
		"workflows":      outcome.Workflows,
		"channel_id":     outcome.ChannelID,
		"provision_note": outcome.ProvisionNote,
		"workflow_count": outcome.WorkflowCount,
	})
}

// RejectSubmission handles submission rejection HTTP requests
func (h *HTTPHandler) RejectSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID     string `json:"id"`
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.approvals.RejectSubmission(r.Context(), req.ID, req.Actor, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sub)
}

// GetWorkflow handles get workflow HTTP requests
func (h *HTTPHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Workflow ID is required", http.StatusBadRequest)
		return
	}

	wf, err := h.workflows.GetWorkflow(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, wf)
}

// ListWorkflows handles list workflows HTTP requests
func (h *HTTPHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, "Owner ID is required", http.StatusBadRequest)
		return
	}

	workflows, err := h.workflows.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"workflows": workflows,
		"total":     len(workflows),
	})
}

// TransitionWorkflow handles workflow transition HTTP requests
func (h *HTTPHandler) TransitionWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID             string  `json:"id"`
		Status         string  `json:"status"`
		Actor          string  `json:"actor"`
		DesignURL      *string `json:"design_url"`
		FinalURL       *string `json:"final_url"`
		Courier        *string `json:"courier"`
		TrackingNumber *string `json:"tracking_number"`
		RevisionNote   *string `json:"revision_note"`
		AdminNote      *string `json:"admin_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	wf, err := h.workflows.Transition(r.Context(), &service.TransitionRequest{
		WorkflowID:   req.ID,
		TargetStatus: repository.WorkflowStatus(req.Status),
		Actor:        req.Actor,
		Fields: service.TransitionFields{
			DesignURL:      req.DesignURL,
			FinalURL:       req.FinalURL,
			Courier:        req.Courier,
			TrackingNumber: req.TrackingNumber,
			RevisionNote:   req.RevisionNote,
			AdminNote:      req.AdminNote,
		},
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, wf)
}

// DeleteWorkflow handles delete workflow HTTP requests
func (h *HTTPHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Workflow ID is required", http.StatusBadRequest)
		return
	}

	if err := h.workflows.DeleteWorkflow(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// WorkflowHistory handles workflow audit trail HTTP requests
func (h *HTTPHandler) WorkflowHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Workflow ID is required", http.StatusBadRequest)
		return
	}

	logs, err := h.workflows.History(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"total": len(logs),
	})
}

// CreateClient handles client registration HTTP requests
func (h *HTTPHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name             string  `json:"name"`
		Email            *string `json:"email"`
		MessengerID      *string `json:"messenger_id"`
		MessengerEnabled bool    `json:"messenger_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	c, err := h.renewals.RegisterClient(r.Context(), &service.RegisterClientRequest{
		Name:             req.Name,
		Email:            req.Email,
		MessengerID:      req.MessengerID,
		MessengerEnabled: req.MessengerEnabled,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, c)
}

// GetClient handles get client HTTP requests
func (h *HTTPHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Client ID is required", http.StatusBadRequest)
		return
	}

	c, err := h.renewals.GetClient(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

// ExtendService handles service extension HTTP requests
func (h *HTTPHandler) ExtendService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ClientID    string     `json:"client_id"`
		Months      int        `json:"months"`
		Amount      *int64     `json:"amount"`
		PaymentType string     `json:"payment_type"`
		PaymentDate *time.Time `json:"payment_date"`
		Memo        *string    `json:"memo"`
		Actor       string     `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	client, payment, err := h.renewals.ExtendService(r.Context(), &service.ExtendServiceRequest{
		ClientID:    req.ClientID,
		Months:      req.Months,
		Amount:      req.Amount,
		PaymentType: req.PaymentType,
		PaymentDate: req.PaymentDate,
		Memo:        req.Memo,
		Actor:       req.Actor,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"client":  client,
		"payment": payment,
	})
}

// ExpiringClients handles renewal report HTTP requests
func (h *HTTPHandler) ExpiringClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	horizon, _ := strconv.Atoi(r.URL.Query().Get("horizon_days"))
	if horizon <= 0 {
		horizon = 30
	}

	report, err := h.renewals.ExpiringClients(r.Context(), horizon)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"clients":      report,
		"total":        len(report),
		"horizon_days": horizon,
	})
}

// ListPayments handles payment history HTTP requests
func (h *HTTPHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		http.Error(w, "Client ID is required", http.StatusBadRequest)
		return
	}

	payments, err := h.renewals.PaymentHistory(r.Context(), clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"payments": payments,
		"total":    len(payments),
	})
}

// CreateContract handles create contract HTTP requests
func (h *HTTPHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ClientID       string `json:"client_id"`
		ContractPeriod int    `json:"contract_period"`
		MonthlyFee     *int64 `json:"monthly_fee"`
		Actor          string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	contract, err := h.contracts.CreateContract(r.Context(), &service.CreateContractRequest{
		ClientID:       req.ClientID,
		ContractPeriod: req.ContractPeriod,
		MonthlyFee:     req.MonthlyFee,
		Actor:          req.Actor,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, contract)
}

// GetContract handles get contract HTTP requests
func (h *HTTPHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Contract ID is required", http.StatusBadRequest)
		return
	}

	contract, err := h.contracts.GetContract(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, contract)
}

// ListContracts handles list contracts HTTP requests
func (h *HTTPHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		http.Error(w, "Client ID is required", http.StatusBadRequest)
		return
	}

	contracts, err := h.contracts.ListContracts(r.Context(), clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"contracts": contracts,
		"total":     len(contracts),
	})
}

// TransitionContract handles contract status change HTTP requests
func (h *HTTPHandler) TransitionContract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID     string  `json:"id"`
		Status string  `json:"status"`
		Actor  string  `json:"actor"`
		Reason *string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	contract, err := h.contracts.Transition(r.Context(), &service.ContractTransitionRequest{
		ContractID: req.ID,
		ToStatus:   repository.ContractStatus(req.Status),
		Actor:      req.Actor,
		Reason:     req.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, contract)
}

// ContractHistory handles contract audit trail HTTP requests
func (h *HTTPHandler) ContractHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Contract ID is required", http.StatusBadRequest)
		return
	}

	logs, err := h.contracts.History(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"total": len(logs),
	})
}

// SendContract handles contract document delivery HTTP requests
func (h *HTTPHandler) SendContract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID    string `json:"id"`
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.contracts.SendContract(r.Context(), req.ID, req.Actor); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
