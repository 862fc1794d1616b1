package question

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/poise/backend/internal/model/question"
	"github.com/zhouzirui/poise/backend/pkg/utils"
)

// Handler 题库的HTTP处理器
type Handler struct {
	bank question.Bank
}

// New 创建题库处理器
func New(bank question.Bank) *Handler {
	return &Handler{bank: bank}
}

// RegisterRoutes 注册题库相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/questions", h.handleListQuestions)
	r.Get("/questions/{id}", h.handleGetQuestion)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.bank.List())
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, ok := h.bank.FindByID(chi.URLParam(r, "id"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "question not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, q)
}
