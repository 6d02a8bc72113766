package api

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crawlai/crawl-engine/app/apperr"
	"github.com/crawlai/crawl-engine/app/cfg"
	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/digest"
	"github.com/crawlai/crawl-engine/app/keyword"
	"github.com/crawlai/crawl-engine/app/stats"
	"github.com/crawlai/crawl-engine/app/tasks"
)

func NewHandler(sources database.SourceRepository, contents database.ContentRepository,
	keywords *keyword.Registry, keywordsFile string, statsComputer StatsComputer,
	syncer tasks.SourceSyncer, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		sources:      sources,
		contents:     contents,
		keywords:     keywords,
		keywordsFile: keywordsFile,
		stats:        statsComputer,
		generator:    digest.NewGenerator(),
		syncer:       syncer,
		scheduler:    scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"scheduler": h.scheduler.Stats(),
	}

	if sources, err := h.sources.ListSources(c.Request.Context()); err == nil {
		health["sources"] = len(sources)
	}
	if count, err := h.contents.GetContentCount(c.Request.Context()); err == nil {
		health["contents"] = count
	}

	idx := h.keywords.Index()
	health["keywords"] = map[string]int{
		"groups":   idx.GroupCount(),
		"patterns": idx.PatternCount(),
	}

	c.JSON(http.StatusOK, health)
}

// GetFeed serves recent content as RSS, by default only notify-worthy items.
func (h *Handler) GetFeed(c *gin.Context) {
	query := database.ContentQuery{SourceID: c.Query("source_id"), Limit: 50}

	query.MinScore = 0.5
	if raw := c.Query("min_score"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil || score < 0 || score > 1 {
			c.Status(http.StatusBadRequest)
			return
		}
		query.MinScore = score
	}

	contents, err := h.contents.ListContents(c.Request.Context(), query)
	if err != nil {
		slog.Error("Database error", "operation", "list_contents", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}

	title := "Crawl Engine digest"
	if query.SourceID != "" {
		title = fmt.Sprintf("Crawl Engine digest: %s", query.SourceID)
	}

	rss, err := h.generator.Run(digest.Channel{
		Title:     title,
		Link:      fmt.Sprintf("%s://%s/", scheme, c.Request.Host),
		SelfLink:  fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, c.Request.URL.RequestURI()),
		Generator: fmt.Sprintf("Crawl-Engine/%s", cfg.GetVersion()),
	}, contents)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(contents)))
	c.String(http.StatusOK, rss)
}

func (h *Handler) GetStats(c *gin.Context) {
	days := stats.DefaultDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > stats.MaxDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
			return
		}
		days = n
	}

	report, err := h.stats.Compute(c.Request.Context(), days)
	if err != nil {
		slog.Error("Database error", "operation", "compute_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources, err := h.sources.ListSources(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	views := make([]SourceView, 0, len(sources))
	for _, s := range sources {
		views = append(views, newSourceView(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": views,
		"total":   len(views),
	})
}

func (h *Handler) APIGetSource(c *gin.Context) {
	id := c.Param("id")

	source, err := h.sources.GetSource(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if source == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	c.JSON(http.StatusOK, newSourceView(*source))
}

func (h *Handler) APIReloadSources(c *gin.Context) {
	task := tasks.NewSyncSourcesTask(h.syncer, h.sources)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing sync task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}

func (h *Handler) APITriggerSource(c *gin.Context) {
	id := c.Param("id")

	if err := h.scheduler.Trigger(c.Request.Context(), id); err != nil {
		respondError(c, id, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Crawl enqueued",
		"source":  id,
	})
}

func (h *Handler) APICancelSource(c *gin.Context) {
	id := c.Param("id")

	if !h.scheduler.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No crawl in flight for source"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Crawl cancellation requested",
		"source":  id,
	})
}

func (h *Handler) APISetSourceStatus(c *gin.Context) {
	id := c.Param("id")

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of active, inactive, error"})
		return
	}

	if err := h.sources.SetSourceStatus(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, id, err)
		return
	}

	if req.Status == database.StatusInactive {
		h.scheduler.Cancel(id)
	}

	source, err := h.sources.GetSource(c.Request.Context(), id)
	if err != nil || source == nil {
		respondError(c, id, cmp.Or(err, apperr.ErrNotFound))
		return
	}

	c.JSON(http.StatusOK, newSourceView(*source))
}

func (h *Handler) APITick(c *gin.Context) {
	report, err := h.scheduler.Tick(c.Request.Context())
	if err != nil {
		slog.Error("Tick failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Tick failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) APIGetKeywords(c *gin.Context) {
	idx := h.keywords.Index()

	c.JSON(http.StatusOK, gin.H{
		"groups":        h.keywords.Groups(),
		"normalization": idx.Normalization(),
		"patterns":      idx.PatternCount(),
	})
}

// APIRebuildKeywords swaps in a new keyword index and persists the groups to
// the keyword file. Invalid groups leave the current index in place.
func (h *Handler) APIRebuildKeywords(c *gin.Context) {
	var req keywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.keywords.Rebuild(req.Groups); err != nil {
		respondError(c, "", err)
		return
	}

	if h.keywordsFile != "" {
		data, err := keyword.Marshal(req.Groups)
		if err == nil {
			err = os.WriteFile(h.keywordsFile, data, 0644)
		}
		if err != nil {
			slog.Error("Failed to persist keyword groups", "path", h.keywordsFile, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Index rebuilt but keyword file not written",
				"details": err.Error(),
			})
			return
		}
	}

	idx := h.keywords.Index()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"groups":   idx.GroupCount(),
		"patterns": idx.PatternCount(),
	})
}

func (h *Handler) APIReloadKeywords(c *gin.Context) {
	if err := keyword.Reload(h.keywords, h.keywordsFile); err != nil {
		respondError(c, "", err)
		return
	}

	idx := h.keywords.Index()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"groups":   idx.GroupCount(),
		"patterns": idx.PatternCount(),
	})
}

func (h *Handler) APIListContents(c *gin.Context) {
	query := database.ContentQuery{SourceID: c.Query("source_id")}

	if raw := c.Query("min_score"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil || score < 0 || score > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be between 0 and 1"})
			return
		}
		query.MinScore = score
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		query.Since = since
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		query.Limit = limit
	}

	contents, err := h.contents.ListContents(c.Request.Context(), query)
	if err != nil {
		slog.Error("Database error", "operation", "list_contents", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	views := make([]ContentView, 0, len(contents))
	for _, content := range contents {
		views = append(views, newContentView(content))
	}

	c.JSON(http.StatusOK, gin.H{
		"contents": views,
		"total":    len(views),
	})
}

func respondError(c *gin.Context, sourceID string, err error) {
	var cfgErr *apperr.ConfigError

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
	case errors.Is(err, apperr.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Crawl already in flight", "source": sourceID})
	case errors.Is(err, apperr.ErrSourceInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "Source is inactive", "source": sourceID})
	case errors.Is(err, tasks.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Task queue is full"})
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid configuration", "details": cfgErr.Error()})
	default:
		slog.Error("Request failed", "path", c.FullPath(), "source", sourceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
