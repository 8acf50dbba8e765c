package jobs

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired      = errors.New("jobs: id is required")
	ErrPosterRequired  = errors.New("jobs: poster is required")
	ErrTitleRequired   = errors.New("jobs: title is required")
	ErrCompanyRequired = errors.New("jobs: company is required")
	ErrInvalidSalary   = errors.New("jobs: salary range is invalid")
	ErrNotFound        = errors.New("jobs: not found")
	ErrNotPoster       = errors.New("jobs: caller did not post this job")
)

type JobID string

// Job is a classifieds job posting.
type Job struct {
	ID             JobID
	PosterID       string
	Company        string
	Title          string
	Description    string
	City           string
	Remote         bool
	SalaryMinCents int64
	SalaryMaxCents int64
	Open           bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Filter struct {
	City   string
	Query  string
	Remote *bool
	Limit  int
	Cursor string
}

type Repository interface {
	ByID(ctx context.Context, id JobID) (*Job, error)
	Save(ctx context.Context, job *Job) error
	Delete(ctx context.Context, id JobID) error
	List(ctx context.Context, filter Filter) ([]*Job, string, error)
}

type CreateParams struct {
	ID             JobID
	PosterID       string
	Company        string
	Title          string
	Description    string
	City           string
	Remote         bool
	SalaryMinCents int64
	SalaryMaxCents int64
	Now            time.Time
}

func NewJob(params CreateParams) (*Job, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(params.PosterID) == "" {
		return nil, ErrPosterRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	company := strings.TrimSpace(params.Company)
	if company == "" {
		return nil, ErrCompanyRequired
	}
	if params.SalaryMinCents < 0 || params.SalaryMaxCents < 0 ||
		(params.SalaryMaxCents > 0 && params.SalaryMaxCents < params.SalaryMinCents) {
		return nil, ErrInvalidSalary
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Job{
		ID:             params.ID,
		PosterID:       params.PosterID,
		Company:        company,
		Title:          title,
		Description:    strings.TrimSpace(params.Description),
		City:           strings.TrimSpace(params.City),
		Remote:         params.Remote,
		SalaryMinCents: params.SalaryMinCents,
		SalaryMaxCents: params.SalaryMaxCents,
		Open:           true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (j *Job) Close(now time.Time) {
	j.Open = false
	j.touch(now)
}

func (j *Job) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	j.UpdatedAt = now.UTC()
}
