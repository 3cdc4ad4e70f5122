package web

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/db"
	"github.com/perbu/presensi/internal/digest"
)

// handleIndex serves the dashboard with recent tasks and the latest report
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.history.List("", 50)
	if err != nil {
		s.renderError(w, r, http.StatusInternalServerError, "Failed to load tasks", err)
		return
	}

	summaries := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		summaries = append(summaries, toTaskSummary(t))
	}

	content := DashboardData{
		Status: s.status(),
		Tasks:  summaries,
	}
	task, report, err := s.history.LatestReport()
	switch {
	case err == nil:
		content.LatestID = task.ID
		content.LatestDate = report.Date()
		content.LatestHTML, _ = digest.MarkdownToHTML(digest.Markdown(report))
	case !errors.Is(err, db.ErrNotFound):
		s.logger.Warn("Failed to load latest report", "error", err)
	}

	s.render(w, s.templates.index, PageData{
		Title:   "Dashboard",
		Content: content,
		User:    GetUser(r),
	})
}

// handleTaskView serves a single task detail page
func (s *Server) handleTaskView(w http.ResponseWriter, r *http.Request) {
	task, err := s.history.Get(r.PathValue("id"))
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, db.ErrNotFound) {
			code = http.StatusNotFound
		}
		s.renderError(w, r, code, "Task not found", err)
		return
	}

	detail := TaskDetail{
		TaskSummary: toTaskSummary(task),
		Payload:     task.Payload,
		Position:    task.Position,
		Detail:      task.Detail,
		StartedAt:   formatTime(task.StartedAt),
		FinishedAt:  formatTime(task.FinishedAt),
	}
	if task.Status == db.StatusSuccess {
		detail.BodyHTML = s.taskBody(task)
	}

	s.render(w, s.templates.task, PageData{
		Title:   "Task " + shortID(task.ID),
		Content: TaskViewData{Task: detail},
		User:    GetUser(r),
	})
}

func (s *Server) taskBody(task *db.Task) template.HTML {
	markdown := task.Result
	if task.Class == string(coordinator.ClassExclusive) {
		report, err := s.history.Report(task)
		if err != nil {
			s.logger.Warn("Failed to decode stored report", "task_id", task.ID, "error", err)
			return ""
		}
		markdown = digest.Markdown(report)
	}
	body, err := digest.MarkdownToHTML(markdown)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(task.Result))
	}
	return body
}

// render executes a template and writes to the response
func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
	}
}

// renderError renders an error page
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, code int, message string, err error) {
	errMsg := message
	if err != nil {
		errMsg = message + ": " + err.Error()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	data := PageData{Title: "Error", Error: errMsg, User: GetUser(r)}
	if err := s.templates.errorPage.Execute(w, data); err != nil {
		s.logger.Error("Failed to render error page", "error", err)
	}
}

// toTaskSummary converts a db.Task to a TaskSummary view model
func toTaskSummary(t *db.Task) TaskSummary {
	preview := t.Payload
	if t.Status == db.StatusError && t.Detail != "" {
		preview = t.Detail
	}
	if r := []rune(preview); len(r) > 60 {
		preview = string(r[:57]) + "..."
	}

	summary := TaskSummary{
		ID:         t.ID,
		Class:      t.Class,
		Status:     t.Status,
		ErrorKind:  t.ErrorKind,
		Preview:    preview,
		AdmittedAt: formatTime(t.AdmittedAt),
	}
	if t.Finished() {
		summary.Elapsed = t.Elapsed().String()
	}
	return summary
}
