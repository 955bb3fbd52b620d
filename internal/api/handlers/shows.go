package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soundhaven/feedsync/internal/services/refresh"
	"github.com/soundhaven/feedsync/internal/services/shows"
)

// Refresher triggers feed refreshes on demand.
type Refresher interface {
	RefreshByID(ctx context.Context, id uint, full bool) (int, error)
}

type ShowHandler struct {
	service   shows.ShowService
	refresher Refresher
}

func NewShowHandler(service shows.ShowService, refresher Refresher) *ShowHandler {
	return &ShowHandler{
		service:   service,
		refresher: refresher,
	}
}

type subscribeRequest struct {
	FeedURL string `json:"feed_url" binding:"required"`
}

func (h *ShowHandler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "feed_url is required",
		})
		return
	}

	show, err := h.service.Subscribe(c.Request.Context(), req.FeedURL)
	if err != nil {
		switch {
		case errors.Is(err, shows.ErrInvalidFeedURL):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed URL"})
		case errors.Is(err, shows.ErrDuplicateFeed):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Feed already subscribed",
				"show":  show,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"show": show})
}

func (h *ShowHandler) GetShow(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	show, err := h.service.GetShowByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, shows.ErrShowNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Show not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch show"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"show": show})
}

func (h *ShowHandler) ListShows(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	showList, total, err := h.service.ListShows(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list shows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shows": showList,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (h *ShowHandler) Unsubscribe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Unsubscribe(c.Request.Context(), id); err != nil {
		if errors.Is(err, shows.ErrShowNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Show not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unsubscribe"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *ShowHandler) Refresh(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	full := c.Query("full") == "true"

	added, err := h.refresher.RefreshByID(c.Request.Context(), id, full)
	if err != nil {
		switch {
		case errors.Is(err, shows.ErrShowNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Show not found"})
		case errors.Is(err, refresh.ErrRefreshInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "Refresh already in progress"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Refresh failed: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"added": added})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid show ID",
		})
		return 0, false
	}
	return uint(id), true
}
