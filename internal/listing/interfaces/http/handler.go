// Package http 挂牌服务接口
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/basistrading/internal/listing/application"
	"github.com/wyfcoding/basistrading/internal/listing/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

// Handler 挂牌 HTTP 处理器
type Handler struct {
	service *application.Service
}

// NewHandler 创建处理器
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/listings")
	{
		g.GET("", h.List)
		g.POST("", h.Publish)
		g.GET("/:id", h.Get)
		g.PUT("/:id", h.Update)
		g.POST("/:id/delist", h.Delist)
	}
	r.GET("/delisting-records", h.ListDelistingRecords)
}

// PublishReq 发布挂牌请求
type PublishReq struct {
	ProductType    string `json:"product_type" binding:"required"`
	ProductName    string `json:"product_name"`
	Grade          string `json:"grade"`
	Spec           string `json:"spec"`
	RefContract    string `json:"ref_contract" binding:"required"`
	Quantity       string `json:"quantity" binding:"required"`
	MinTradeUnit   string `json:"min_trade_unit"`
	Basis          string `json:"basis" binding:"required"`
	PriceLow       string `json:"price_low" binding:"required"`
	PriceUp        string `json:"price_up" binding:"required"`
	MarginLevel    string `json:"margin_level"`
	DeliveryDate   string `json:"delivery_date" binding:"required"`
	DeliveryMethod string `json:"delivery_method" binding:"required"`
	ClientType     string `json:"client_type" binding:"required"`
	WarehouseCode  string `json:"warehouse_code"`
	WarehouseName  string `json:"warehouse_name"`
	Remark         string `json:"remark"`
}

func (h *Handler) Publish(c *gin.Context) {
	var req PublishReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	deliveryDate, err := time.ParseInLocation("2006-01-02", req.DeliveryDate, time.Local)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid delivery_date, want YYYY-MM-DD", "")
		return
	}

	quantity, ok := parseDecimal(c, "quantity", req.Quantity)
	if !ok {
		return
	}
	unit, ok := parseDecimal(c, "min_trade_unit", req.MinTradeUnit)
	if !ok {
		return
	}
	basis, ok := parseDecimal(c, "basis", req.Basis)
	if !ok {
		return
	}
	priceLow, ok := parseDecimal(c, "price_low", req.PriceLow)
	if !ok {
		return
	}
	priceUp, ok := parseDecimal(c, "price_up", req.PriceUp)
	if !ok {
		return
	}
	marginLevel, ok := parseDecimal(c, "margin_level", req.MarginLevel)
	if !ok {
		return
	}

	listing, err := h.service.Publish(c.Request.Context(), application.PublishCmd{
		ProductType:    req.ProductType,
		ProductName:    req.ProductName,
		Grade:          req.Grade,
		Spec:           req.Spec,
		RefContract:    req.RefContract,
		Quantity:       quantity,
		MinTradeUnit:   unit,
		Basis:          basis,
		PriceLow:       priceLow,
		PriceUp:        priceUp,
		MarginLevel:    marginLevel,
		DeliveryDate:   deliveryDate,
		DeliveryMethod: domain.DeliveryMethod(req.DeliveryMethod),
		ClientType:     domain.ClientType(req.ClientType),
		WarehouseCode:  req.WarehouseCode,
		WarehouseName:  req.WarehouseName,
		Remark:         req.Remark,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toListingView(listing))
}

type UpdateReq struct {
	Basis    string `json:"basis" binding:"required"`
	PriceLow string `json:"price_low" binding:"required"`
	PriceUp  string `json:"price_up" binding:"required"`
	Remark   string `json:"remark"`
}

func (h *Handler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	var req UpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	basis, ok := parseDecimal(c, "basis", req.Basis)
	if !ok {
		return
	}
	priceLow, ok := parseDecimal(c, "price_low", req.PriceLow)
	if !ok {
		return
	}
	priceUp, ok := parseDecimal(c, "price_up", req.PriceUp)
	if !ok {
		return
	}

	listing, err := h.service.Update(c.Request.Context(), id, application.UpdateCmd{
		Basis:    basis,
		PriceLow: priceLow,
		PriceUp:  priceUp,
		Remark:   req.Remark,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toListingView(listing))
}

type DelistReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) Delist(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	var req DelistReq
	_ = c.ShouldBindJSON(&req)

	if err := h.service.Delist(c.Request.Context(), id, application.DelistCmd{Reason: req.Reason}); err != nil {
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
	listing, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toListingView(listing))
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

	views := make([]*ListingView, len(page.Items))
	for i, l := range page.Items {
		views[i] = toListingView(l)
	}
	response.Success(c, gin.H{
		"items":      views,
		"total":      page.Total,
		"totalPages": page.TotalPages,
		"pageNum":    page.PageNum,
		"pageSize":   page.PageSize,
	})
}

func (h *Handler) ListDelistingRecords(c *gin.Context) {
	var req pagination.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	page, err := h.service.ListDelistingRecords(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, page)
}

// ListingView 挂牌展示对象，状态附带中文标签与标签颜色
type ListingView struct {
	ID                 uint   `json:"id"`
	ListingNo          string `json:"listing_no"`
	ProductType        string `json:"product_type"`
	ProductName        string `json:"product_name"`
	Grade              string `json:"grade"`
	Spec               string `json:"spec"`
	RefContract        string `json:"ref_contract"`
	TotalQuantity      string `json:"total_quantity"`
	AvailableQuantity  string `json:"available_quantity"`
	MinTradeUnit       string `json:"min_trade_unit"`
	Basis              string `json:"basis"`
	PriceLow           string `json:"price_low"`
	PriceUp            string `json:"price_up"`
	DeliveryDate       string `json:"delivery_date"`
	DeliveryMethod     string `json:"delivery_method"`
	DeliveryLabel      string `json:"delivery_method_label"`
	ClientType         string `json:"client_type"`
	ClientTypeLabel    string `json:"client_type_label"`
	WarehouseCode      string `json:"warehouse_code"`
	WarehouseName      string `json:"warehouse_name"`
	Remark             string `json:"remark"`
	Hits               int64  `json:"hits"`
	Status             string `json:"status"`
	StatusLabel        string `json:"status_label"`
	StatusColor        string `json:"status_color"`
	PricingStatus      string `json:"pricing_status"`
	PricingStatusLabel string `json:"pricing_status_label"`
	PricingStatusColor string `json:"pricing_status_color"`
}

func toListingView(l *domain.Listing) *ListingView {
	return &ListingView{
		ID:                 l.ID,
		ListingNo:          l.ListingNo,
		ProductType:        l.ProductType,
		ProductName:        l.ProductName,
		Grade:              l.Grade,
		Spec:               l.Spec,
		RefContract:        l.RefContract,
		TotalQuantity:      l.TotalQuantity.String(),
		AvailableQuantity:  l.AvailableQuantity.String(),
		MinTradeUnit:       l.MinTradeUnit.String(),
		Basis:              l.Basis.String(),
		PriceLow:           l.PriceLow.String(),
		PriceUp:            l.PriceUp.String(),
		DeliveryDate:       l.DeliveryDate.Format("2006-01-02"),
		DeliveryMethod:     string(l.DeliveryMethod),
		DeliveryLabel:      l.DeliveryMethod.Label(),
		ClientType:         string(l.ClientType),
		ClientTypeLabel:    l.ClientType.Label(),
		WarehouseCode:      l.WarehouseCode,
		WarehouseName:      l.WarehouseName,
		Remark:             l.Remark,
		Hits:               l.Hits,
		Status:             string(l.Status),
		StatusLabel:        l.Status.Label(),
		StatusColor:        l.Status.Color(),
		PricingStatus:      string(l.PricingStatus),
		PricingStatusLabel: l.PricingStatus.Label(),
		PricingStatusColor: l.PricingStatus.Color(),
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
	case errors.Is(err, domain.ErrListingNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrAlreadyDelisted),
		errors.Is(err, domain.ErrListingImmutable),
		errors.Is(err, domain.ErrListingNotActive):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	default:
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
