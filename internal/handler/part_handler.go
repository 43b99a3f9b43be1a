package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/service"
	"github.com/gin-gonic/gin"
)

// PartHandler 零件处理器
type PartHandler struct {
	svc *service.PartService
}

// NewPartHandler 创建零件处理器
func NewPartHandler(svc *service.PartService) *PartHandler {
	return &PartHandler{svc: svc}
}

// List 获取零件列表
func (h *PartHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)

	filters := map[string]interface{}{
		"keyword":     c.Query("keyword"),
		"lock_status": c.Query("lock_status"),
	}
	if pn := c.Query("part_number"); pn != "" {
		if v, err := strconv.ParseInt(pn, 10, 64); err == nil {
			filters["part_number"] = v
		}
	}

	parts, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, err.Error())
		return
	}

	Success(c, ListResponse{
		Items: parts,
		Pagination: &Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

// Mint 铸造零件
func (h *PartHandler) Mint(c *gin.Context) {
	var req service.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	owner := GetAccount(c)
	part, err := h.svc.Mint(c.Request.Context(), owner, &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	Created(c, part)
}

// Get 获取零件目录属性
func (h *PartHandler) Get(c *gin.Context) {
	id, ok := ParsePartID(c, "id")
	if !ok {
		return
	}

	part, err := h.svc.GetAttributes(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, part)
}

// GetRelations 获取零件组合关系
func (h *PartHandler) GetRelations(c *gin.Context) {
	id, ok := ParsePartID(c, "id")
	if !ok {
		return
	}

	relations, err := h.svc.GetRelations(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, relations)
}

// Assemble 组装零件
func (h *PartHandler) Assemble(c *gin.Context) {
	var req service.AssembleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	caller := GetAccount(c)
	composite, err := h.svc.Assemble(c.Request.Context(), caller, &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	Created(c, composite)
}

// Disassemble 拆解组合件
func (h *PartHandler) Disassemble(c *gin.Context) {
	id, ok := ParsePartID(c, "id")
	if !ok {
		return
	}

	caller := GetAccount(c)
	if err := h.svc.Disassemble(c.Request.Context(), caller, id); err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// Attach 附加零件到组合件
func (h *PartHandler) Attach(c *gin.Context) {
	id, ok := ParsePartID(c, "id")
	if !ok {
		return
	}

	var req service.AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	caller := GetAccount(c)
	if err := h.svc.Attach(c.Request.Context(), caller, id, &req); err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// DetachRequest 分离请求
type DetachRequest struct {
	PartID uint64 `json:"part_id" binding:"required"`
}

// Detach 从组合件分离子件
func (h *PartHandler) Detach(c *gin.Context) {
	id, ok := ParsePartID(c, "id")
	if !ok {
		return
	}

	var req DetachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	caller := GetAccount(c)
	if err := h.svc.Detach(c.Request.Context(), caller, id, req.PartID); err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// Export 导出零件清单Excel
func (h *PartHandler) Export(c *gin.Context) {
	f, filename, err := h.svc.Export(c.Request.Context())
	if err != nil {
		InternalError(c, err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
