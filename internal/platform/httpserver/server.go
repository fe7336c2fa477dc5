package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	ekubengine "ekub/contexts/savings-core/ekub-engine"
	ekuberrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
	ekubhttp "ekub/contexts/savings-core/ekub-engine/transport/http"
	"ekub/internal/platform/metrics"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "ekub/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	engine ekubengine.Module
}

func New(engine ekubengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		engine: engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routing mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("GET /metrics", metrics.Handler())

	s.mux.HandleFunc("POST /api/ekub/v1/groups", s.handleCreateGroup)
	s.mux.HandleFunc("GET /api/ekub/v1/groups", s.handleListGroups)
	s.mux.HandleFunc("GET /api/ekub/v1/groups/{group_id}", s.handleGetGroupStatus)
	s.mux.HandleFunc("POST /api/ekub/v1/groups/{group_id}/join", s.handleJoinGroup)
	s.mux.HandleFunc("POST /api/ekub/v1/groups/{group_id}/leave", s.handleLeaveGroup)
	s.mux.HandleFunc("POST /api/ekub/v1/groups/{group_id}/activate", s.handleActivateGroup)
	s.mux.HandleFunc("POST /api/ekub/v1/groups/{group_id}/contributions", s.handleContribute)
	s.mux.HandleFunc("GET /api/ekub/v1/groups/{group_id}/ledger", s.handleGetLedger)
}

// handleCreateGroup godoc
//
//	@Summary	Create an ekub group
//	@Tags		groups
//	@Param		Idempotency-Key	header	string	true	"request idempotency key"
//	@Router		/api/ekub/v1/groups [post]
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ekubhttp.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.engine.Handler.CreateGroupHandler(
		r.Context(),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	memberID := query.Get("member_id")
	if memberID == "" && strings.EqualFold(query.Get("mine"), "true") {
		memberID = r.Header.Get("X-User-Id")
	}

	resp, err := s.engine.Handler.ListGroupsHandler(r.Context(), memberID, query.Get("status"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetGroupStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.GetGroupStatusHandler(r.Context(), r.PathValue("group_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.engine.Handler.JoinGroupHandler(r.Context(), userID, r.PathValue("group_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.engine.Handler.LeaveGroupHandler(r.Context(), userID, r.PathValue("group_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivateGroup(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	req := ekubhttp.ActivateGroupRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}

	resp, err := s.engine.Handler.ActivateGroupHandler(r.Context(), r.PathValue("group_id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.engine.Handler.ContributeHandler(r.Context(), userID, r.PathValue("group_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.ContributionsPosted.Inc()
	if resp.PayoutIssued {
		metrics.PayoutsIssued.Inc()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Handler.GetLedgerHandler(r.Context(), r.PathValue("group_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ekuberrors.ErrGroupNotFound),
		errors.Is(err, ekuberrors.ErrCycleNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ekuberrors.ErrInvalidGroupConfig),
		errors.Is(err, ekuberrors.ErrTooFewMembers),
		errors.Is(err, ekuberrors.ErrInvalidRotationOrder):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ekuberrors.ErrIdempotencyKeyRequired):
		writeError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, ekuberrors.ErrGroupFull):
		writeError(w, http.StatusConflict, "group_full", err.Error())
	case errors.Is(err, ekuberrors.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "already_member", err.Error())
	case errors.Is(err, ekuberrors.ErrGroupNotForming):
		writeError(w, http.StatusConflict, "group_not_forming", err.Error())
	case errors.Is(err, ekuberrors.ErrCannotLeaveActiveGroup):
		writeError(w, http.StatusConflict, "cannot_leave_active_group", err.Error())
	case errors.Is(err, ekuberrors.ErrNotAMember):
		writeError(w, http.StatusForbidden, "not_a_member", err.Error())
	case errors.Is(err, ekuberrors.ErrGroupNotActive),
		errors.Is(err, ekuberrors.ErrCycleNotOpen):
		writeError(w, http.StatusConflict, "cycle_not_open", err.Error())
	case errors.Is(err, ekuberrors.ErrGroupClosed):
		writeError(w, http.StatusGone, "group_closed", err.Error())
	case errors.Is(err, ekuberrors.ErrAlreadyContributedThisCycle):
		writeError(w, http.StatusConflict, "already_contributed", err.Error())
	case errors.Is(err, ekuberrors.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error())
	case errors.Is(err, ekuberrors.ErrWalletUnavailable):
		writeError(w, http.StatusBadGateway, "wallet_unavailable", err.Error())
	case errors.Is(err, ekuberrors.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ekubhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
