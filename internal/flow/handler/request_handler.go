package handler

import (
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/service"
	"github.com/gin-gonic/gin"
)

// RequestHandler 请求流转处理器
type RequestHandler struct {
	svc *service.RequestService
}

func NewRequestHandler(svc *service.RequestService) *RequestHandler {
	return &RequestHandler{svc: svc}
}

// Create 在流程的起点状态上开一个请求
// POST /api/v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	var req service.CreateRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	request, err := h.svc.CreateRequest(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, request)
}

// List 按流程或发起人列出请求
// GET /api/v1/requests?process_id=xxx 或 ?user_id=xxx
func (h *RequestHandler) List(c *gin.Context) {
	processID := c.Query("process_id")
	userID := c.Query("user_id")
	page, pageSize := GetPagination(c)

	var (
		requests []entity.Request
		err      error
	)
	switch {
	case processID != "":
		requests, err = h.svc.SearchRequests(c.Request.Context(), processID, page, pageSize)
	case userID != "":
		requests, err = h.svc.SearchRequestsByUser(c.Request.Context(), userID, page, pageSize)
	default:
		BadRequest(c, "process_id 或 user_id 至少要传一个")
		return
	}
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": requests})
}

// Archive 归档请求
// POST /api/v1/requests/:id/archive
func (h *RequestHandler) Archive(c *gin.Context) {
	if err := h.svc.ArchiveRequest(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// Get 查看请求，带全部子记录
// GET /api/v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	request, err := h.svc.FindOneRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, request)
}

// AllowedActions 当前状态下全部可达的动作，不做用户过滤
// GET /api/v1/requests/:id/allowed-actions
func (h *RequestHandler) AllowedActions(c *gin.Context) {
	actions, err := h.svc.AllowedActions(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": actions})
}

// AllowedActionsForUser 指定用户视角下的可用动作
// GET /api/v1/requests/:id/allowed-actions/:user_id
func (h *RequestHandler) AllowedActionsForUser(c *gin.Context) {
	actions, err := h.svc.AllowedActionsForUser(c.Request.Context(), c.Param("id"), c.Param("user_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": actions})
}

// CommitAction 当前用户在请求上提交动作
// POST /api/v1/requests/:id/actions/:action_id
func (h *RequestHandler) CommitAction(c *gin.Context) {
	request, err := h.svc.CommitAction(c.Request.Context(), c.Param("id"), GetUserID(c), c.Param("action_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, request)
}

// ListRequestActions 请求的审计日志
// GET /api/v1/requests/:id/request-actions
func (h *RequestHandler) ListRequestActions(c *gin.Context) {
	actions, err := h.svc.ListRequestActions(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": actions})
}
