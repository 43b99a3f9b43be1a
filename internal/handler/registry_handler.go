package handler

import (
	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/service"
	"github.com/gin-gonic/gin"
)

// RegistryHandler 所有权登记处理器
type RegistryHandler struct {
	svc *service.RegistryService
}

// NewRegistryHandler 创建所有权登记处理器
func NewRegistryHandler(svc *service.RegistryService) *RegistryHandler {
	return &RegistryHandler{svc: svc}
}

// GetOwner 查询零件的当前持有账户
func (h *RegistryHandler) GetOwner(c *gin.Context) {
	id, ok := ParsePartID(c, "id")
	if !ok {
		return
	}

	owner, err := h.svc.CurrentOwner(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, gin.H{"part_id": id, "owner": owner})
}

// TransferRequest 转移请求
type TransferRequest struct {
	To string `json:"to" binding:"required"`
}

// Transfer 转移零件所有权（自由件级联到整棵子树）
func (h *RegistryHandler) Transfer(c *gin.Context) {
	id, ok := ParsePartID(c, "id")
	if !ok {
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	caller := GetAccount(c)
	if err := h.svc.Transfer(c.Request.Context(), caller, id, req.To); err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// ApproveRequest 零件级委托请求
type ApproveRequest struct {
	Account string `json:"account"`
}

// Approve 设置或撤销零件级受托账户
func (h *RegistryHandler) Approve(c *gin.Context) {
	id, ok := ParsePartID(c, "id")
	if !ok {
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	caller := GetAccount(c)
	if err := h.svc.Approve(c.Request.Context(), caller, id, req.Account); err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, nil)
}

// OperatorRequest 账户级操作员授权请求
type OperatorRequest struct {
	Operator string `json:"operator" binding:"required"`
	Approved bool   `json:"approved"`
}

// SetOperator 授予或撤销账户级操作员授权
func (h *RegistryHandler) SetOperator(c *gin.Context) {
	var req OperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	owner := GetAccount(c)
	if err := h.svc.SetOperatorApproval(c.Request.Context(), owner, req.Operator, req.Approved); err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, nil)
}
