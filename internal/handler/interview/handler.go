package interview

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/poise/backend/internal/service/archive"
	interviewService "github.com/zhouzirui/poise/backend/internal/service/interview"
	"github.com/zhouzirui/poise/backend/pkg/utils"
)

// ReportLister 列出已归档的报告。
type ReportLister interface {
	List(ctx context.Context, limit int) ([]archive.Summary, error)
}

// Handler 面试会话的HTTP处理器
type Handler struct {
	svc      *interviewService.Service
	reports  ReportLister
	upgrader websocket.Upgrader
	log      *logrus.Entry

	heartbeat time.Duration
}

// New 创建面试处理器。reports 可以为空。
func New(svc *interviewService.Service, reports ReportLister) *Handler {
	return &Handler{
		svc:     svc,
		reports: reports,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		log:       logrus.WithField("component", "http"),
		heartbeat: 15 * time.Second,
	}
}

// RegisterRoutes 注册面试相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Delete("/{id}", h.handleClose)
		r.Post("/{id}/actions/{action}", h.handleAction)
		r.Get("/{id}/live", h.handleLive)
		r.Get("/{id}/report", h.handleReport)
		r.Get("/{id}/events", h.handleEvents)
		r.Get("/{id}/ws", h.handleWebSocket)
	})
	if h.reports != nil {
		r.Get("/reports", h.handleListReports)
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req interviewService.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Count < 0 {
		utils.RespondError(w, http.StatusBadRequest, "count must not be negative")
		return
	}

	session, err := h.svc.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	view, err := session.View(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := interviewService.Action(chi.URLParam(r, "action"))

	view, err := h.svc.Apply(r.Context(), id, action)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"session": id, "action": action}).Debug("action rejected")
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	live, err := session.Live(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, live)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 1 || val > 200 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = val
	}

	items, err := h.reports.List(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("list reports failed")
		utils.RespondError(w, http.StatusInternalServerError, "list reports failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

// handleEvents 以 SSE 推送会话的状态、作答与报告事件。?live=1 时同时推送实时指标。
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	includeLive := r.URL.Query().Get("live") == "1"

	events, cancel := session.Subscribe()
	defer cancel()

	view, err := session.View(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, string(interviewService.EventState), view); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		case evt, ok := <-events:
			if !ok {
				utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": session.ID()})
				return
			}
			if evt.Type == interviewService.EventLive && !includeLive {
				continue
			}
			if err := utils.SendSSEEvent(w, flusher, string(evt.Type), evt); err != nil {
				return
			}
		}
	}
}

// respondServiceError 把服务层错误映射为HTTP状态码
func respondServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	utils.RespondErrorCode(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, interviewService.ErrSessionNotFound), errors.Is(err, interviewService.ErrSessionClosed):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, interviewService.ErrUnknownAction):
		return http.StatusBadRequest, "unknown_action"
	case errors.Is(err, interviewService.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, interviewService.ErrAnswerPending):
		return http.StatusConflict, "answer_pending"
	case errors.Is(err, interviewService.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, interviewService.ErrDeviceUnavailable):
		return http.StatusPreconditionFailed, "device_unavailable"
	case errors.Is(err, interviewService.ErrDetectorUnavailable):
		return http.StatusPreconditionFailed, "detector_unavailable"
	case errors.Is(err, interviewService.ErrNoQuestions):
		return http.StatusServiceUnavailable, "no_questions"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
