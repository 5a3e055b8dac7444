package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/timeline-cache/internal/service"
	"github.com/d60-Lab/timeline-cache/pkg/response"
)

// Timeline 读取某个 feed 的一窗时间线
// @Summary 读取时间线窗口
// @Tags 时间线
// @Param paging_key path string true "feed 标识"
// @Param account_key query string true "账号标识"
// @Param offset query int false "偏移" default(0)
// @Param limit query int false "窗口大小" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/timeline/{paging_key} [get]
func (h *Handler) Timeline(c *gin.Context) {
	pagingKey := c.Param("paging_key")
	accountKey := c.Query("account_key")
	if accountKey == "" {
		response.BadRequest(c, "account_key is required")
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, err := h.timeline.Window(c.Request.Context(), pagingKey, accountKey, offset, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"paging_key": pagingKey, "offset": offset, "limit": limit, "items": items})
}

type loadRequest struct {
	Trigger    string `json:"trigger" binding:"required,oneof=refresh prepend append"`
	AccountKey string `json:"account_key" binding:"required"`
	PageSize   int    `json:"page_size"`
}

// Load 对已注册的 feed 触发一次加载
// @Summary 触发 refresh/prepend/append
// @Tags 时间线
// @Accept json
// @Produce json
// @Param paging_key path string true "feed 标识"
// @Param request body loadRequest true "加载参数"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/timeline/{paging_key}/load [post]
func (h *Handler) Load(c *gin.Context) {
	pagingKey := c.Param("paging_key")
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	trigger := service.TriggerRefresh
	switch req.Trigger {
	case "prepend":
		trigger = service.TriggerPrepend
	case "append":
		trigger = service.TriggerAppend
	}
	res, err := h.feeds.Load(c.Request.Context(), pagingKey, trigger, req.PageSize)
	if err != nil {
		if errors.Is(err, service.ErrFeedNotRegistered) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"end_of_pagination": res.EndOfPagination})
}

// Status 点查单条 status
// @Summary 点查 status
// @Tags 时间线
// @Param key path string true "status key (id@host)"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/status/{key} [get]
func (h *Handler) Status(c *gin.Context) {
	key := c.Param("key")
	row, err := h.statuses.GetStatus(c.Request.Context(), key)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if row == nil {
		response.NotFound(c, "status not found")
		return
	}
	response.Success(c, row)
}

// Cursor 查看 feed 的游标台账
// @Summary 查看游标
// @Tags 时间线
// @Param paging_key path string true "feed 标识"
// @Success 200 {object} response.Response
// @Router /api/v1/timeline/{paging_key}/cursor [get]
func (h *Handler) Cursor(c *gin.Context) {
	pagingKey := c.Param("paging_key")
	cur, err := h.cursors.Get(c.Request.Context(), pagingKey)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, cur)
}

// Health 健康检查
// @Summary 健康检查
// @Success 200 {object} response.Response
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"feeds": h.feeds.PagingKeys()})
}
