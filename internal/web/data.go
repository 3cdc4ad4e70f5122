package web

import (
	"html/template"

	"github.com/perbu/presensi/internal/verify"
)

// PageData is the common data structure for all pages
type PageData struct {
	Title   string
	Content any
	Error   string
	User    *AuthUser
}

// TaskSummary is a lightweight view model for task listings
type TaskSummary struct {
	ID         string
	Class      string
	Status     string
	ErrorKind  string
	Preview    string // question or error detail, truncated
	AdmittedAt string
	Elapsed    string
}

// TaskDetail is a full view model for a single task
type TaskDetail struct {
	TaskSummary
	Payload    string
	Position   int
	Detail     string
	StartedAt  string
	FinishedAt string
	BodyHTML   template.HTML // rendered report or answer
}

// DashboardData is the view model for the index page
type DashboardData struct {
	Status     StatusResponse
	Tasks      []TaskSummary
	LatestDate string
	LatestHTML template.HTML
	LatestID   string
}

// TaskViewData is the view model for the task page
type TaskViewData struct {
	Task TaskDetail
}

// JSON bodies of the API

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type checkResponse struct {
	ID        string           `json:"id"`
	Results   []verify.Student `json:"results"`
	Summary   string           `json:"summary"`
	ElapsedMS int64            `json:"elapsed_ms"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	ID        string `json:"id"`
	Position  int    `json:"position"`
	Answer    string `json:"answer"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Verifying     bool           `json:"verifying"`
	VerifyingID   string         `json:"verifying_id,omitempty"`
	QueueLength   int            `json:"queue_length"`
	QueueCapacity int            `json:"queue_capacity"`
	Draining      bool           `json:"draining"`
	ActiveRequest string         `json:"active_request,omitempty"`
	Closed        bool           `json:"closed"`
	Last24h       map[string]int `json:"last_24h,omitempty"`
}
