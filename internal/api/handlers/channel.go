package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"kitchen-worker-go/internal/models"
	"kitchen-worker-go/internal/worker"
)

type ChannelHandler struct {
	manager *worker.Manager
}

func NewChannelHandler(manager *worker.Manager) *ChannelHandler {
	return &ChannelHandler{manager: manager}
}

// StartChannel starts monitoring a channel
// @Summary Start monitoring a channel
// @Description Start the compliance monitor for a kitchen camera channel
// @Tags channels
// @Accept json
// @Produce json
// @Param request body models.ChannelRequest true "Channel configuration"
// @Success 200 {object} models.ChannelStatus
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /channels [post]
func (h *ChannelHandler) StartChannel(c *gin.Context) {
	var req models.ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.manager.StartChannel(req)
	if err != nil {
		log.Error().Err(err).Str("channel_id", req.ChannelID).Msg("Failed to start channel")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Info().
		Str("channel_id", req.ChannelID).
		Str("url", req.StreamURL).
		Msg("Channel started")

	c.JSON(http.StatusOK, status)
}

// StopChannel stops monitoring a channel
// @Summary Stop monitoring a channel
// @Description Stop the compliance monitor and release the channel's resources
// @Tags channels
// @Param id path string true "Channel ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /channels/{id}/stop [post]
func (h *ChannelHandler) StopChannel(c *gin.Context) {
	channelID := c.Param("id")

	if err := h.manager.StopChannel(channelID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Channel stopped"})
}

// GetChannelStatus returns one channel's status
// @Summary Get channel status
// @Description Get the monitor state and frame statistics of a channel
// @Tags channels
// @Param id path string true "Channel ID"
// @Success 200 {object} models.ChannelStatus
// @Failure 404 {object} ErrorResponse
// @Router /channels/{id}/status [get]
func (h *ChannelHandler) GetChannelStatus(c *gin.Context) {
	channelID := c.Param("id")

	status, err := h.manager.Status(channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListChannels lists all channels
// @Summary List all channels
// @Description Get the status of every monitored channel
// @Tags channels
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /channels [get]
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	channels := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"count":    len(channels),
	})
}

// GetLatestFrame returns the latest annotated frame
// @Summary Get the latest frame
// @Description Get the most recent annotated JPEG frame for a channel
// @Tags channels
// @Produce jpeg
// @Param id path string true "Channel ID"
// @Success 200 {string} binary "JPEG image"
// @Failure 404 {object} ErrorResponse
// @Router /channels/{id}/frame [get]
func (h *ChannelHandler) GetLatestFrame(c *gin.Context) {
	channelID := c.Param("id")

	frame, err := h.manager.Frame(channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "image/jpeg", frame)
}

// StreamChannel streams annotated frames as MJPEG
// @Summary Stream a channel as MJPEG
// @Description Stream the channel's annotated frames as multipart MJPEG until the client disconnects
// @Tags channels
// @Param id path string true "Channel ID"
// @Success 200 {string} binary "MJPEG stream"
// @Failure 404 {object} ErrorResponse
// @Router /channels/{id}/stream [get]
func (h *ChannelHandler) StreamChannel(c *gin.Context) {
	channelID := c.Param("id")

	if _, err := h.manager.Status(channelID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	const boundary = "frame"
	w := c.Writer
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := h.manager.Frame(channelID)
		if err != nil {
			// Channel was stopped mid-stream.
			return
		}
		if len(frame) == 0 {
			continue
		}

		if _, err := io.WriteString(w, "--"+boundary+"\r\n"); err != nil {
			return
		}
		if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
			return
		}
		if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(frame))); err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return
		}
		w.Flush()
	}
}
