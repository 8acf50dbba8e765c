package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradepost/internal/app/dto"
	domainjobs "tradepost/internal/domain/jobs"
)

// JobHandler serves the job board.
type JobHandler struct {
	Jobs   domainjobs.Repository
	Logger *slog.Logger
}

// List returns one job board page matching the query filters.
func (h JobHandler) List(c *gin.Context) {
	filter := domainjobs.Filter{
		City:   strings.TrimSpace(c.Query("city")),
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  parsePositiveIntStrict(c.Query("limit"), 20),
		Cursor: c.Query("cursor"),
	}
	if raw := strings.TrimSpace(c.Query("remote")); raw != "" {
		remote := raw == "true" || raw == "1"
		filter.Remote = &remote
	}
	items, next, err := h.Jobs.List(c.Request.Context(), filter)
	if err != nil {
		h.respondJobError(c, err, "list jobs")
		return
	}
	page := dto.JobList{Items: make([]dto.Job, 0, len(items)), NextCursor: next}
	for _, item := range items {
		page.Items = append(page.Items, mapJob(item))
	}
	c.JSON(http.StatusOK, page)
}

// Get returns a single job post by id.
func (h JobHandler) Get(c *gin.Context) {
	job, err := h.Jobs.ByID(c.Request.Context(), domainjobs.JobID(c.Param("id")))
	if err != nil {
		h.respondJobError(c, err, "get job", "job_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, mapJob(job))
}

// Create posts a new open job owned by the caller.
func (h JobHandler) Create(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req struct {
		Company        string `json:"company"`
		Title          string `json:"title"`
		Description    string `json:"description"`
		City           string `json:"city"`
		Remote         bool   `json:"remote"`
		SalaryMinCents int64  `json:"salary_min_cents"`
		SalaryMaxCents int64  `json:"salary_max_cents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	job, err := domainjobs.NewJob(domainjobs.CreateParams{
		ID:             domainjobs.JobID(uuid.NewString()),
		PosterID:       p.ID,
		Company:        req.Company,
		Title:          req.Title,
		Description:    req.Description,
		City:           req.City,
		Remote:         req.Remote,
		SalaryMinCents: req.SalaryMinCents,
		SalaryMaxCents: req.SalaryMaxCents,
		Now:            time.Now(),
	})
	if err != nil {
		h.respondJobError(c, err, "create job", "user_id", p.ID)
		return
	}
	if err := h.Jobs.Save(c.Request.Context(), job); err != nil {
		h.respondJobError(c, err, "save job", "job_id", string(job.ID))
		return
	}
	c.JSON(http.StatusCreated, mapJob(job))
}

// Close marks a job the caller posted as no longer hiring.
func (h JobHandler) Close(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	job, err := h.Jobs.ByID(c.Request.Context(), domainjobs.JobID(c.Param("id")))
	if err != nil {
		h.respondJobError(c, err, "get job", "job_id", c.Param("id"))
		return
	}
	if job.PosterID != p.ID && !p.HasRole("admin") {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the job poster"})
		return
	}
	job.Close(time.Now())
	if err := h.Jobs.Save(c.Request.Context(), job); err != nil {
		h.respondJobError(c, err, "save job", "job_id", string(job.ID))
		return
	}
	c.JSON(http.StatusOK, mapJob(job))
}

func (h JobHandler) respondJobError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Warn("job call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	switch {
	case errors.Is(err, domainjobs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domainjobs.ErrNotPoster):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the job poster"})
	case errors.Is(err, domainjobs.ErrTitleRequired),
		errors.Is(err, domainjobs.ErrCompanyRequired),
		errors.Is(err, domainjobs.ErrInvalidSalary):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func mapJob(j *domainjobs.Job) dto.Job {
	return dto.Job{
		ID:             string(j.ID),
		PosterID:       j.PosterID,
		Company:        j.Company,
		Title:          j.Title,
		Description:    j.Description,
		City:           j.City,
		Remote:         j.Remote,
		SalaryMinCents: j.SalaryMinCents,
		SalaryMaxCents: j.SalaryMaxCents,
		Open:           j.Open,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}
