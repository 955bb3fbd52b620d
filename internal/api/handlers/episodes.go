package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soundhaven/feedsync/internal/services/episodes"
)

type EpisodeHandler struct {
	service *episodes.Service
}

func NewEpisodeHandler(service *episodes.Service) *EpisodeHandler {
	return &EpisodeHandler{service: service}
}

func (h *EpisodeHandler) GetEpisodesByShowID(c *gin.Context) {
	showID, ok := parseID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	episodeList, total, err := h.service.GetEpisodesByShowID(c.Request.Context(), showID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch episodes",
		})
		return
	}

	if limit < 1 || limit > 200 {
		limit = 50
	}
	totalPages := (int(total) + limit - 1) / limit

	c.JSON(http.StatusOK, gin.H{
		"episodes": episodeList,
		"pagination": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
		},
	})
}

func (h *EpisodeHandler) GetEpisodeByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	episode, err := h.service.GetEpisodeByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, episodes.ErrEpisodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Episode not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch episode"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"episode": episode})
}

func (h *EpisodeHandler) GetRecentEpisodes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	episodeList, err := h.service.GetRecentEpisodes(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recent episodes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"episodes": episodeList})
}

type playbackRequest struct {
	PositionMs *int  `json:"position_ms" binding:"required"`
	Played     *bool `json:"played" binding:"required"`
}

func (h *EpisodeHandler) UpdatePlaybackState(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req playbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "position_ms and played are required",
		})
		return
	}
	if *req.PositionMs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position_ms must not be negative"})
		return
	}

	if err := h.service.UpdatePlaybackState(c.Request.Context(), id, *req.PositionMs, *req.Played); err != nil {
		if errors.Is(err, episodes.ErrEpisodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Episode not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update playback state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
