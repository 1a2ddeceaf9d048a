// Package pagination 定义管理台统一的分页请求/响应结构
package pagination

import (
	"strings"

	"gorm.io/gorm"
)

// Request 分页查询参数
type Request struct {
	PageNum   int    `form:"pageNum" json:"pageNum"`
	PageSize  int    `form:"pageSize" json:"pageSize"`
	SortField string `form:"sortField" json:"sortField,omitempty"`
	SortOrder string `form:"sortOrder" json:"sortOrder,omitempty"`
	// 可选过滤：交易类型
	Type string `form:"type" json:"type,omitempty"`
	// 可选过滤：点价状态
	PriceState string `form:"priceState" json:"priceState,omitempty"`
}

// Normalize 填充默认页码与页大小，页大小限制在 [1,200]
func (r *Request) Normalize() {
	if r.PageNum < 1 {
		r.PageNum = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 20
	}
	if r.PageSize > 200 {
		r.PageSize = 200
	}
}

// Offset 返回当前页的记录偏移
func (r Request) Offset() int {
	return (r.PageNum - 1) * r.PageSize
}

// OrderClause 按白名单将排序参数映射为 SQL 排序子句。
// sortable 的键是对外的排序字段名，值是对应的数据库列，
// 未登记的字段不参与排序，排序参数不会直接拼进 SQL。
func (r Request) OrderClause(sortable map[string]string) string {
	col, ok := sortable[r.SortField]
	if !ok || col == "" {
		return ""
	}
	dir := "ASC"
	if strings.EqualFold(r.SortOrder, "desc") || strings.EqualFold(r.SortOrder, "descend") {
		dir = "DESC"
	}
	return col + " " + dir
}

// Page 分页响应
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	PageNum    int   `json:"pageNum"`
	PageSize   int   `json:"pageSize"`
}

// NewPage 构造分页响应
func NewPage[T any](items []T, total int64, req Request) *Page[T] {
	pages := int(total) / req.PageSize
	if int(total)%req.PageSize != 0 {
		pages++
	}
	return &Page[T]{
		Items:      items,
		Total:      total,
		TotalPages: pages,
		PageNum:    req.PageNum,
		PageSize:   req.PageSize,
	}
}

// Scope 返回应用分页与排序的 gorm scope，排序字段经 sortable 白名单过滤
func Scope(req Request, sortable map[string]string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if clause := req.OrderClause(sortable); clause != "" {
			db = db.Order(clause)
		}
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}
