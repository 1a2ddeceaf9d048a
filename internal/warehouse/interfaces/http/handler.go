// Package http 仓库服务接口
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/basistrading/internal/warehouse/application"
	"github.com/wyfcoding/basistrading/internal/warehouse/domain"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

// Handler 仓库 HTTP 处理器
type Handler struct {
	service *application.Service
}

// NewHandler 创建处理器
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/warehouses")
	{
		g.GET("", h.List)
		g.POST("", h.Create)
		g.GET("/:id", h.Get)
		g.POST("/:id/stock", h.AdjustStock)
		g.PUT("/:id/capacity", h.Resize)
		g.PUT("/:id/status", h.SetStatus)
	}
}

// CreateReq 建仓请求
type CreateReq struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
	Contact  string `json:"contact"`
	Phone    string `json:"phone"`
	Capacity string `json:"capacity" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Remark   string `json:"remark"`
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	typ, ok := domain.ParseType(req.Type)
	if !ok {
		response.ErrorWithStatus(c, http.StatusBadRequest, "unknown warehouse type", "")
		return
	}
	capacity, err := decimal.NewFromString(req.Capacity)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "capacity must be a number", "")
		return
	}

	warehouse, err := h.service.Create(c.Request.Context(), application.CreateCmd{
		Code:     req.Code,
		Name:     req.Name,
		Location: req.Location,
		Contact:  req.Contact,
		Phone:    req.Phone,
		Capacity: capacity,
		Type:     typ,
		Remark:   req.Remark,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toWarehouseView(warehouse))
}

// StockReq 出入库请求，delta 为正入库为负出库
type StockReq struct {
	Delta string `json:"delta" binding:"required"`
}

func (h *Handler) AdjustStock(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	var req StockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "delta must be a number", "")
		return
	}

	warehouse, err := h.service.AdjustStock(c.Request.Context(), id, delta)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toWarehouseView(warehouse))
}

// ResizeReq 调整库容请求
type ResizeReq struct {
	Capacity string `json:"capacity" binding:"required"`
}

func (h *Handler) Resize(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	var req ResizeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	capacity, err := decimal.NewFromString(req.Capacity)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "capacity must be a number", "")
		return
	}

	warehouse, err := h.service.Resize(c.Request.Context(), id, capacity)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toWarehouseView(warehouse))
}

// StatusReq 启停请求
type StatusReq struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *Handler) SetStatus(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	var req StatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	warehouse, err := h.service.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toWarehouseView(warehouse))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	warehouse, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toWarehouseView(warehouse))
}

func (h *Handler) List(c *gin.Context) {
	var req pagination.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	page, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]*WarehouseView, len(page.Items))
	for i, w := range page.Items {
		views[i] = toWarehouseView(w)
	}
	response.Success(c, gin.H{
		"items":      views,
		"total":      page.Total,
		"totalPages": page.TotalPages,
		"pageNum":    page.PageNum,
		"pageSize":   page.PageSize,
	})
}

// WarehouseView 仓库展示对象
type WarehouseView struct {
	ID           uint   `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	Contact      string `json:"contact"`
	Phone        string `json:"phone"`
	Capacity     string `json:"capacity"`
	CurrentStock string `json:"current_stock"`
	Utilization  string `json:"utilization"`
	Status       string `json:"status"`
	StatusLabel  string `json:"status_label"`
	StatusColor  string `json:"status_color"`
	Type         string `json:"type"`
	TypeLabel    string `json:"type_label"`
	Remark       string `json:"remark"`
}

func toWarehouseView(w *domain.Warehouse) *WarehouseView {
	return &WarehouseView{
		ID:           w.ID,
		Code:         w.Code,
		Name:         w.Name,
		Location:     w.Location,
		Contact:      w.Contact,
		Phone:        w.Phone,
		Capacity:     w.Capacity.String(),
		CurrentStock: w.CurrentStock.String(),
		Utilization:  w.Utilization().Round(4).String(),
		Status:       string(w.Status),
		StatusLabel:  w.Status.Label(),
		StatusColor:  w.Status.Color(),
		Type:         string(w.Type),
		TypeLabel:    w.Type.Label(),
		Remark:       w.Remark,
	}
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return uint(id), err
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrWarehouseNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrWarehouseInactive),
		errors.Is(err, domain.ErrStockOutOfBounds):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	case errors.Is(err, domain.ErrInvalidCapacity):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	default:
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
