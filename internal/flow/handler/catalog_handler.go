package handler

import (
	"github.com/bitfantasy/nimo-flow/internal/flow/service"
	"github.com/gin-gonic/gin"
)

// ============================================================
// Action Handler
// ============================================================

// ActionHandler 动作目录处理器
type ActionHandler struct {
	svc *service.ActionService
}

func NewActionHandler(svc *service.ActionService) *ActionHandler {
	return &ActionHandler{svc: svc}
}

type actionReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ActionType  string `json:"action_type"`
}

// Create 创建动作
// POST /api/v1/actions
func (h *ActionHandler) Create(c *gin.Context) {
	var req actionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	action, err := h.svc.CreateAction(c.Request.Context(), req.Name, req.Description, req.ActionType)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, action)
}

// List 按名称搜索动作
// GET /api/v1/actions?name=xxx
func (h *ActionHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	actions, err := h.svc.SearchActions(c.Request.Context(), c.Query("name"), page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": actions})
}

// Get 查看动作
// GET /api/v1/actions/:id
func (h *ActionHandler) Get(c *gin.Context) {
	action, err := h.svc.FindOneAction(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, action)
}

// Update 更新动作
// PUT /api/v1/actions/:id
func (h *ActionHandler) Update(c *gin.Context) {
	var req actionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	action, err := h.svc.UpdateAction(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.ActionType)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, action)
}

// Delete 删除动作
// DELETE /api/v1/actions/:id
func (h *ActionHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteAction(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// AttachTarget 给动作挂权限目标
// POST /api/v1/actions/:id/targets/:tid
func (h *ActionHandler) AttachTarget(c *gin.Context) {
	if err := h.svc.AddTargetToAction(c.Request.Context(), c.Param("id"), c.Param("tid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// DetachTarget 从动作上摘掉权限目标
// DELETE /api/v1/actions/:id/targets/:tid
func (h *ActionHandler) DetachTarget(c *gin.Context) {
	if err := h.svc.RemoveTargetFromAction(c.Request.Context(), c.Param("id"), c.Param("tid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ============================================================
// Activity Handler
// ============================================================

// ActivityHandler 活动目录处理器
type ActivityHandler struct {
	svc *service.ActivityService
}

func NewActivityHandler(svc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

type activityReq struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	ActivityType string `json:"activity_type"`
}

// Create 创建活动
// POST /api/v1/activities
func (h *ActivityHandler) Create(c *gin.Context) {
	var req activityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	activity, err := h.svc.CreateActivity(c.Request.Context(), req.Name, req.Description, req.ActivityType)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, activity)
}

// List 按名称搜索活动
// GET /api/v1/activities?name=xxx
func (h *ActivityHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	activities, err := h.svc.SearchActivities(c.Request.Context(), c.Query("name"), page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": activities})
}

// Get 查看活动
// GET /api/v1/activities/:id
func (h *ActivityHandler) Get(c *gin.Context) {
	activity, err := h.svc.FindOneActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, activity)
}

// Update 更新活动
// PUT /api/v1/activities/:id
func (h *ActivityHandler) Update(c *gin.Context) {
	var req activityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	activity, err := h.svc.UpdateActivity(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.ActivityType)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, activity)
}

// Delete 删除活动
// DELETE /api/v1/activities/:id
func (h *ActivityHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteActivity(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// AttachTarget 给活动挂收件目标
// POST /api/v1/activities/:id/targets/:tid
func (h *ActivityHandler) AttachTarget(c *gin.Context) {
	if err := h.svc.AddTargetToActivity(c.Request.Context(), c.Param("id"), c.Param("tid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// DetachTarget 从活动上摘掉收件目标
// DELETE /api/v1/activities/:id/targets/:tid
func (h *ActivityHandler) DetachTarget(c *gin.Context) {
	if err := h.svc.RemoveTargetFromActivity(c.Request.Context(), c.Param("id"), c.Param("tid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ============================================================
// Target Handler
// ============================================================

// TargetHandler 目标目录处理器
type TargetHandler struct {
	svc *service.TargetService
}

func NewTargetHandler(svc *service.TargetService) *TargetHandler {
	return &TargetHandler{svc: svc}
}

type targetReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	TargetType  string `json:"target_type"`
	GroupID     string `json:"group_id"`
}

// Create 创建目标
// POST /api/v1/targets
func (h *TargetHandler) Create(c *gin.Context) {
	var req targetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	target, err := h.svc.CreateTarget(c.Request.Context(), req.Name, req.Description, req.TargetType, req.GroupID)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, target)
}

// List 按名称搜索目标
// GET /api/v1/targets?name=xxx
func (h *TargetHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	targets, err := h.svc.SearchTargets(c.Request.Context(), c.Query("name"), page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": targets})
}

// Get 查看目标
// GET /api/v1/targets/:id
func (h *TargetHandler) Get(c *gin.Context) {
	target, err := h.svc.FindOneTarget(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, target)
}

// Update 更新目标
// PUT /api/v1/targets/:id
func (h *TargetHandler) Update(c *gin.Context) {
	var req targetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	target, err := h.svc.UpdateTarget(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.TargetType, req.GroupID)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, target)
}

// Delete 删除目标
// DELETE /api/v1/targets/:id
func (h *TargetHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteTarget(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ============================================================
// Group Handler
// ============================================================

// GroupHandler 用户组处理器
type GroupHandler struct {
	svc *service.GroupService
}

func NewGroupHandler(svc *service.GroupService) *GroupHandler {
	return &GroupHandler{svc: svc}
}

type groupReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create 创建用户组
// POST /api/v1/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req groupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	group, err := h.svc.CreateGroup(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, group)
}

// List 按名称搜索用户组
// GET /api/v1/groups?name=xxx
func (h *GroupHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	groups, err := h.svc.SearchGroups(c.Request.Context(), c.Query("name"), page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": groups})
}

// Get 查看用户组
// GET /api/v1/groups/:id
func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.svc.FindOneGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, group)
}

// Update 更新用户组
// PUT /api/v1/groups/:id
func (h *GroupHandler) Update(c *gin.Context) {
	var req groupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	group, err := h.svc.UpdateGroup(c.Request.Context(), c.Param("id"), req.Name, req.Description)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, group)
}

// Delete 删除用户组
// DELETE /api/v1/groups/:id
func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteGroup(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// ListMembers 列出组成员
// GET /api/v1/groups/:id/members
func (h *GroupHandler) ListMembers(c *gin.Context) {
	members, err := h.svc.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": members})
}

// AddMember 添加组成员
// POST /api/v1/groups/:id/members/:uid
func (h *GroupHandler) AddMember(c *gin.Context) {
	if err := h.svc.AddMember(c.Request.Context(), c.Param("id"), c.Param("uid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// RemoveMember 移除组成员
// DELETE /api/v1/groups/:id/members/:uid
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	if err := h.svc.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("uid")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}
