// Package http 合同服务接口
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/basistrading/internal/contract/application"
	"github.com/wyfcoding/basistrading/internal/contract/domain"
	"github.com/wyfcoding/basistrading/internal/rules"
	"github.com/wyfcoding/basistrading/pkg/pagination"
)

// Handler 合同 HTTP 处理器
type Handler struct {
	service *application.Service
}

// NewHandler 创建处理器
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/contracts")
	{
		g.GET("", h.List)
		g.GET("/:id", h.Get)
		g.GET("/:id/margin-call", h.MarginCall)
		g.GET("/:id/payments", h.ListPayments)
		g.POST("/:id/margin", h.PayMargin)
		g.POST("/:id/balance", h.PayBalance)
		g.POST("/:id/delivery/confirm", h.ConfirmDelivery)
		g.POST("/:id/delivery/early", h.RequestEarlyDelivery)
		g.POST("/:id/delivery/delay", h.RequestDelayedDelivery)
		g.POST("/:id/terminate", h.Terminate)
	}
}

func (h *Handler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	contract, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toContractView(contract))
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

	views := make([]*ContractView, len(page.Items))
	for i, ct := range page.Items {
		views[i] = toContractView(ct)
	}
	response.Success(c, gin.H{
		"items":      views,
		"total":      page.Total,
		"totalPages": page.TotalPages,
		"pageNum":    page.PageNum,
		"pageSize":   page.PageSize,
	})
}

// MarginCall 盯市检查。现价从 query 参数 price 传入。
func (h *Handler) MarginCall(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	price, err := decimal.NewFromString(c.Query("price"))
	if err != nil || !price.IsPositive() {
		response.ErrorWithStatus(c, http.StatusBadRequest, "price must be a positive number", "")
		return
	}

	result, err := h.service.CheckMarginCall(c.Request.Context(), id, price)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"required":        result.Required,
		"amount":          result.Amount.String(),
		"required_margin": result.RequiredMargin.String(),
		"current_price":   result.CurrentPrice.String(),
	})
}

// PayReq 缴款请求
type PayReq struct {
	Amount string `json:"amount" binding:"required"`
	Remark string `json:"remark"`
}

func (h *Handler) PayMargin(c *gin.Context) {
	h.pay(c, true)
}

func (h *Handler) PayBalance(c *gin.Context) {
	h.pay(c, false)
}

func (h *Handler) pay(c *gin.Context, margin bool) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	var req PayReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "amount must be a number", "")
		return
	}

	cmd := application.PayCmd{Amount: amount, Remark: req.Remark}
	var contract *domain.Contract
	if margin {
		contract, err = h.service.PayMargin(c.Request.Context(), id, cmd)
	} else {
		contract, err = h.service.PayBalance(c.Request.Context(), id, cmd)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toContractView(contract))
}

func (h *Handler) ConfirmDelivery(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	contract, err := h.service.ConfirmDelivery(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toContractView(contract))
}

// AdjustDeliveryReq 交收日期调整请求
type AdjustDeliveryReq struct {
	Days int `json:"days" binding:"required"`
}

func (h *Handler) RequestEarlyDelivery(c *gin.Context) {
	h.adjustDelivery(c, true)
}

func (h *Handler) RequestDelayedDelivery(c *gin.Context) {
	h.adjustDelivery(c, false)
}

func (h *Handler) adjustDelivery(c *gin.Context, early bool) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	var req AdjustDeliveryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	var contract *domain.Contract
	if early {
		contract, err = h.service.RequestEarlyDelivery(c.Request.Context(), id, req.Days)
	} else {
		contract, err = h.service.RequestDelayedDelivery(c.Request.Context(), id, req.Days)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toContractView(contract))
}

func (h *Handler) Terminate(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	contract, err := h.service.Terminate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, toContractView(contract))
}

func (h *Handler) ListPayments(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return
	}
	contract, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	payments, err := h.service.ListPayments(c.Request.Context(), contract.ContractNo)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]gin.H, len(payments))
	for i, p := range payments {
		views[i] = gin.H{
			"payment_no": p.PaymentNo,
			"type":       string(p.Type),
			"amount":     p.Amount.String(),
			"paid_at":    p.PaidAt.Format("2006-01-02 15:04:05"),
			"remark":     p.Remark,
		}
	}
	response.Success(c, gin.H{"items": views})
}

// ContractView 合同展示对象，附带派生金额与阶段标签
type ContractView struct {
	ID             uint   `json:"id"`
	ContractNo     string `json:"contract_no"`
	OrderNo        string `json:"order_no"`
	ListingNo      string `json:"listing_no"`
	ClientID       string `json:"client_id"`
	ClientName     string `json:"client_name"`
	ProductType    string `json:"product_type"`
	RefContract    string `json:"ref_contract"`
	Quantity       string `json:"quantity"`
	Price          string `json:"price"`
	MarginRate     string `json:"margin_rate"`
	TotalAmount    string `json:"total_amount"`
	MarginPaid     string `json:"margin_paid"`
	PaidAmount     string `json:"paid_amount"`
	RemainderDue   string `json:"remainder_due"`
	DeliveryDate   string `json:"delivery_date"`
	DeliveryMethod string `json:"delivery_method"`
	WarehouseCode  string `json:"warehouse_code"`
	State          string `json:"state"`
	StateLabel     string `json:"state_label"`
	StateColor     string `json:"state_color"`
	DeliveryStatus string `json:"delivery_status"`
	DeliveryLabel  string `json:"delivery_status_label"`
	DeliveryColor  string `json:"delivery_status_color"`
	SignedAt       string `json:"signed_at"`
	Remark         string `json:"remark"`
}

func toContractView(ct *domain.Contract) *ContractView {
	return &ContractView{
		ID:             ct.ID,
		ContractNo:     ct.ContractNo,
		OrderNo:        ct.OrderNo,
		ListingNo:      ct.ListingNo,
		ClientID:       ct.ClientID,
		ClientName:     ct.ClientName,
		ProductType:    ct.ProductType,
		RefContract:    ct.RefContract,
		Quantity:       ct.Quantity.String(),
		Price:          ct.Price.String(),
		MarginRate:     ct.MarginRate.String(),
		TotalAmount:    ct.TotalAmount().String(),
		MarginPaid:     ct.MarginPaid.String(),
		PaidAmount:     ct.PaidAmount.String(),
		RemainderDue:   ct.RemainderDue().String(),
		DeliveryDate:   ct.DeliveryDate.Format("2006-01-02"),
		DeliveryMethod: ct.DeliveryMethod,
		WarehouseCode:  ct.WarehouseCode,
		State:          string(ct.State),
		StateLabel:     ct.State.Label(),
		StateColor:     ct.State.Color(),
		DeliveryStatus: string(ct.DeliveryStatus),
		DeliveryLabel:  ct.DeliveryStatus.Label(),
		DeliveryColor:  ct.DeliveryStatus.Color(),
		SignedAt:       ct.SignedAt.Format("2006-01-02 15:04:05"),
		Remark:         ct.Remark,
	}
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return uint(id), err
}

func respondError(c *gin.Context, err error) {
	var oor *rules.OutOfRangeError
	if errors.As(err, &oor) {
		response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "")
		return
	}
	switch {
	case errors.Is(err, domain.ErrContractNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrContractNotEffective),
		errors.Is(err, domain.ErrContractCompleted),
		errors.Is(err, domain.ErrBalanceNotSettled):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	case errors.Is(err, domain.ErrInvalidPayment):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	default:
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
