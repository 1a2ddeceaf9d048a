// Package http 点价订单服务接口
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/response"

	listingdomain "github.com/wyfcoding/basistrading/internal/listing/domain"
	"github.com/wyfcoding/basistrading/internal/order/application"
	"github.com/wyfcoding/basistrading/internal/order/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

// Handler 订单 HTTP 处理器
type Handler struct {
	service *application.Service
}

// NewHandler 创建处理器
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/orders")
	{
		g.GET("", h.List)
		g.POST("", h.PlaceQuote)
		g.POST("/preview", h.Preview)
		g.GET("/:id", h.Get)
		g.POST("/:id/cancel", h.Cancel)
	}
}

// QuoteReq 点价申报请求
type QuoteReq struct {
	ListingID  uint   `json:"listing_id" binding:"required"`
	ClientID   string `json:"client_id" binding:"required"`
	ClientName string `json:"client_name"`
	Quantity   string `json:"quantity" binding:"required"`
	Price      string `json:"price" binding:"required"`
	Remark     string `json:"remark"`
}

func (h *Handler) PlaceQuote(c *gin.Context) {
	var req QuoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	quantity, ok := parseDecimal(c, "quantity", req.Quantity)
	if !ok {
		return
	}
	price, ok := parseDecimal(c, "price", req.Price)
	if !ok {
		return
	}

	result, err := h.service.PlaceQuote(c.Request.Context(), application.PlaceQuoteCmd{
		ListingID:  req.ListingID,
		ClientID:   req.ClientID,
		ClientName: req.ClientName,
		Quantity:   quantity,
		Price:      price,
		Remark:     req.Remark,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order":       toOrderView(result.Order),
		"contract_no": result.Contract.ContractNo,
	})
}

// PreviewReq 点价预览请求
type PreviewReq struct {
	ListingID uint   `json:"listing_id" binding:"required"`
	Quantity  string `json:"quantity" binding:"required"`
	Price     string `json:"price" binding:"required"`
}

func (h *Handler) Preview(c *gin.Context) {
	var req PreviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	quantity, ok := parseDecimal(c, "quantity", req.Quantity)
	if !ok {
		return
	}
	price, ok := parseDecimal(c, "price", req.Price)
	if !ok {
		return
	}

	total, err := h.service.Preview(c.Request.Context(), req.ListingID, quantity, price)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"total_amount": total.String()})
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	order, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toOrderView(order))
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

	views := make([]*OrderView, len(page.Items))
	for i, o := range page.Items {
		views[i] = toOrderView(o)
	}
	response.Success(c, gin.H{
		"items":      views,
		"total":      page.Total,
		"totalPages": page.TotalPages,
		"pageNum":    page.PageNum,
		"pageSize":   page.PageSize,
	})
}

// OrderView 订单展示对象
type OrderView struct {
	ID          uint   `json:"id"`
	OrderNo     string `json:"order_no"`
	ListingID   uint   `json:"listing_id"`
	ListingNo   string `json:"listing_no"`
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	ProductType string `json:"product_type"`
	RefContract string `json:"ref_contract"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	Basis       string `json:"basis"`
	TotalAmount string `json:"total_amount"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	StatusColor string `json:"status_color"`
	QuotedAt    string `json:"quoted_at"`
	Remark      string `json:"remark"`
}

func toOrderView(o *domain.Order) *OrderView {
	return &OrderView{
		ID:          o.ID,
		OrderNo:     o.OrderNo,
		ListingID:   o.ListingID,
		ListingNo:   o.ListingNo,
		ClientID:    o.ClientID,
		ClientName:  o.ClientName,
		ProductType: o.ProductType,
		RefContract: o.RefContract,
		Quantity:    o.Quantity.String(),
		Price:       o.Price.String(),
		Basis:       o.Basis.String(),
		TotalAmount: o.TotalAmount.String(),
		Status:      string(o.Status),
		StatusLabel: o.Status.Label(),
		StatusColor: o.Status.Color(),
		QuotedAt:    o.QuotedAt.Format("2006-01-02 15:04:05"),
		Remark:      o.Remark,
	}
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return uint(id), err
}

// parseDecimal 解析请求里的数值字段，空串按零处理，非法格式回 400。
func parseDecimal(c *gin.Context, name, raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, true
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, name + " must be a number", "")
		return decimal.Decimal{}, false
	}
	return v, true
}

func respondError(c *gin.Context, err error) {
	var verrs rules.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
		return
	}
	switch {
	case errors.Is(err, domain.ErrMarketClosed):
		response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, application.ErrRateLimited):
		response.ErrorWithStatus(c, http.StatusTooManyRequests, err.Error(), "")
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, listingdomain.ErrListingNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrOrderNotCancellable),
		errors.Is(err, listingdomain.ErrListingNotActive),
		errors.Is(err, listingdomain.ErrOversell):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	default:
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
