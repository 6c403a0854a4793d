package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"moodtrack/internal/domain"
	"moodtrack/internal/repository"
)

const maxListLimit = 500

type entryRequest struct {
	MoodScore *int    `json:"mood_score" binding:"required"`
	Comment   *string `json:"comment"`
}

func (r entryRequest) input() domain.EntryInput {
	return domain.EntryInput{MoodScore: *r.MoodScore, Comment: r.Comment}
}

func (h *Handler) createEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entry, err := h.entries.Create(c.Request.Context(), mustUser(c).ID, req.input())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entryToResponse(*entry))
}

func (h *Handler) listEntries(c *gin.Context) {
	opts, ok := parseListOptions(c)
	if !ok {
		return
	}

	entries, err := h.entries.List(c.Request.Context(), mustUser(c).ID, opts)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]EntryResponse, len(entries))
	for i := range entries {
		resp[i] = entryToResponse(entries[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getEntry(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}

	entry, err := h.entries.Get(c.Request.Context(), mustUser(c).ID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entryToResponse(*entry))
}

func (h *Handler) updateEntry(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entry, err := h.entries.Update(c.Request.Context(), mustUser(c).ID, id, req.input())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entryToResponse(*entry))
}

func (h *Handler) deleteEntry(c *gin.Context) {
	id, ok := parseEntryID(c)
	if !ok {
		return
	}

	if err := h.entries.Delete(c.Request.Context(), mustUser(c).ID, id); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseEntryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid entry id"})
		return 0, false
	}
	return id, true
}

func parseListOptions(c *gin.Context) (repository.ListOptions, bool) {
	var opts repository.ListOptions
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 || limit > maxListLimit {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return opts, false
		}
		opts.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid offset"})
			return opts, false
		}
		opts.Offset = offset
	}
	return opts, true
}
