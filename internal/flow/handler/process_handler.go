package handler

import (
	"github.com/bitfantasy/nimo-flow/internal/flow/service"
	"github.com/gin-gonic/gin"
)

// ProcessHandler 流程图编排处理器：流程、状态、路由及其挂载关系
type ProcessHandler struct {
	svc *service.ProcessService
}

func NewProcessHandler(svc *service.ProcessService) *ProcessHandler {
	return &ProcessHandler{svc: svc}
}

type processReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Create 创建流程
// POST /api/v1/processes
func (h *ProcessHandler) Create(c *gin.Context) {
	var req processReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	process, err := h.svc.CreateProcess(c.Request.Context(), req.Name, req.Description, req.Status)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, process)
}

// List 按名称搜索流程
// GET /api/v1/processes?name=xxx
func (h *ProcessHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	processes, err := h.svc.SearchProcesses(c.Request.Context(), c.Query("name"), page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": processes})
}

// Get 查看流程，带全部状态和路由
// GET /api/v1/processes/:id
func (h *ProcessHandler) Get(c *gin.Context) {
	process, err := h.svc.FindOneProcess(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, process)
}

// GetByName 按名称精确查找流程
// GET /api/v1/processes/by-name/:name
func (h *ProcessHandler) GetByName(c *gin.Context) {
	process, err := h.svc.FindOneProcessByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, process)
}

// Update 更新流程
// PUT /api/v1/processes/:id
func (h *ProcessHandler) Update(c *gin.Context) {
	var req processReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	process, err := h.svc.UpdateProcess(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.Status)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, process)
}

// Delete 删除流程
// DELETE /api/v1/processes/:id
func (h *ProcessHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteProcess(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

type stateReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	StateType   string `json:"state_type"`
}

// AddState 给流程添加状态
// POST /api/v1/processes/:id/states
func (h *ProcessHandler) AddState(c *gin.Context) {
	var req stateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	state, err := h.svc.AddStateToProcess(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.StateType)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, state)
}

// UpdateState 更新流程下的状态
// PUT /api/v1/processes/:id/states/:sid
func (h *ProcessHandler) UpdateState(c *gin.Context) {
	var req stateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	state, err := h.svc.UpdateStateOnProcess(c.Request.Context(), c.Param("id"), c.Param("sid"), req.Name, req.Description, req.StateType)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, state)
}

// RemoveState 删除流程下的状态
// DELETE /api/v1/processes/:id/states/:sid
func (h *ProcessHandler) RemoveState(c *gin.Context) {
	if err := h.svc.RemoveStateFromProcess(c.Request.Context(), c.Param("id"), c.Param("sid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

type routeReq struct {
	CurrentStateID string `json:"current_state_id" binding:"required"`
	NextStateID    string `json:"next_state_id"`
}

// AddRoute 给流程添加路由，next_state_id 为空表示原地路由
// POST /api/v1/processes/:id/routes
func (h *ProcessHandler) AddRoute(c *gin.Context) {
	var req routeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	route, err := h.svc.AddRouteToProcess(c.Request.Context(), c.Param("id"), req.CurrentStateID, req.NextStateID)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, route)
}

// UpdateRoute 更新流程下的路由
// PUT /api/v1/processes/:id/routes/:rid
func (h *ProcessHandler) UpdateRoute(c *gin.Context) {
	var req routeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	route, err := h.svc.UpdateRouteOnProcess(c.Request.Context(), c.Param("id"), c.Param("rid"), req.CurrentStateID, req.NextStateID)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, route)
}

// RemoveRoute 删除流程下的路由
// DELETE /api/v1/processes/:id/routes/:rid
func (h *ProcessHandler) RemoveRoute(c *gin.Context) {
	if err := h.svc.RemoveRouteFromProcess(c.Request.Context(), c.Param("id"), c.Param("rid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// AttachActionToRoute 把动作挂到路由上
// POST /api/v1/processes/:id/routes/:rid/actions/:aid
func (h *ProcessHandler) AttachActionToRoute(c *gin.Context) {
	if err := h.svc.AddActionToRoute(c.Request.Context(), c.Param("id"), c.Param("rid"), c.Param("aid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// DetachActionFromRoute 把动作从路由上摘掉
// DELETE /api/v1/processes/:id/routes/:rid/actions/:aid
func (h *ProcessHandler) DetachActionFromRoute(c *gin.Context) {
	if err := h.svc.RemoveActionFromRoute(c.Request.Context(), c.Param("id"), c.Param("rid"), c.Param("aid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// AttachActivityToRoute 把流转活动挂到路由上
// POST /api/v1/processes/:id/routes/:rid/activities/:aid
func (h *ProcessHandler) AttachActivityToRoute(c *gin.Context) {
	if err := h.svc.AddActivityToRoute(c.Request.Context(), c.Param("id"), c.Param("rid"), c.Param("aid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// DetachActivityFromRoute 把流转活动从路由上摘掉
// DELETE /api/v1/processes/:id/routes/:rid/activities/:aid
func (h *ProcessHandler) DetachActivityFromRoute(c *gin.Context) {
	if err := h.svc.RemoveActivityFromRoute(c.Request.Context(), c.Param("id"), c.Param("rid"), c.Param("aid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// AttachActivityToState 把进入活动挂到状态上
// POST /api/v1/processes/:id/states/:sid/activities/:aid
func (h *ProcessHandler) AttachActivityToState(c *gin.Context) {
	if err := h.svc.AddActivityToState(c.Request.Context(), c.Param("id"), c.Param("sid"), c.Param("aid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// DetachActivityFromState 把进入活动从状态上摘掉
// DELETE /api/v1/processes/:id/states/:sid/activities/:aid
func (h *ProcessHandler) DetachActivityFromState(c *gin.Context) {
	if err := h.svc.RemoveActivityFromState(c.Request.Context(), c.Param("id"), c.Param("sid"), c.Param("aid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}
