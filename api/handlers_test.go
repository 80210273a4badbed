package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"agenda-view/domain"
	"agenda-view/view"
)

type mockAuth struct{}

func (mockAuth) UserIDFromAuthHeader(string) (string, error) { return "user", nil }

type mockRepo struct {
	tasks     []domain.Task
	listErr   error
	updateErr error
	deleteErr error

	gets    int
	creates int
	deletes []domain.TaskID
}

func (m *mockRepo) ListTasks(context.Context) ([]domain.Task, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.Task(nil), m.tasks...), nil
}

func (m *mockRepo) GetTask(_ context.Context, id domain.TaskID) (domain.Task, error) {
	m.gets++
	for _, t := range m.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, fmt.Errorf("get_task %s: %w", id, domain.ErrNotFound)
}

func (m *mockRepo) CreateTask(_ context.Context, draft domain.Draft) (domain.Task, error) {
	m.creates++
	task := draft.Task(domain.TaskID(fmt.Sprintf("%d", 100+m.creates)))
	m.tasks = append(m.tasks, task)
	return task, nil
}

func (m *mockRepo) UpdateTask(_ context.Context, id domain.TaskID, record domain.Task) (domain.Task, error) {
	if m.updateErr != nil {
		return domain.Task{}, m.updateErr
	}
	for i, t := range m.tasks {
		if t.ID == id {
			m.tasks[i] = record
			return record, nil
		}
	}
	return domain.Task{}, fmt.Errorf("update_task %s: %w", id, domain.ErrNotFound)
}

func (m *mockRepo) DeleteTask(_ context.Context, id domain.TaskID) error {
	m.deletes = append(m.deletes, id)
	return m.deleteErr
}

type taskJSON struct {
	ID          domain.TaskID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	DueDateText string        `json:"due_date_text"`
	Completed   bool          `json:"completed"`
	IsFavorite  bool          `json:"is_favorite"`
	Color       string        `json:"color"`
	Status      string        `json:"status"`
	Urgency     string        `json:"urgency"`
	Background  string        `json:"background"`
}

type listJSON struct {
	Tasks []taskJSON `json:"tasks"`
}

type errorJSON struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
	Draft  *struct {
		Title string `json:"title"`
		Color string `json:"color"`
	} `json:"draft"`
	Task *taskJSON `json:"task"`
}

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.Local)

func fixedClock(t *testing.T) {
	t.Helper()
	prev := clock
	clock = func() time.Time { return testNow }
	t.Cleanup(func() { clock = prev })
}

func newTestServer(t *testing.T, repo *mockRepo) *echo.Echo {
	t.Helper()
	fixedClock(t)
	logger, _ := test.NewNullLogger()
	e := echo.New()
	e.JSONSerializer = SonicSerializer{}
	e.Use(GzipRequestMiddleware(0))
	sessions := NewSessions(func(string) view.Repository { return repo }, time.Hour, logger)
	Register(e, sessions, mockAuth{}, logger)
	return e
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := sonic.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func sampleTasks() []domain.Task {
	return []domain.Task{
		{ID: "1", Title: "Pay rent", DueDate: domain.NewTimestamp(testNow.Add(2 * time.Hour))},
		{ID: "2", Title: "Buy milk", DueDate: domain.NewTimestamp(testNow.Add(-time.Hour)), Completed: true},
		{ID: "3", Title: "Plan trip", DueDate: domain.NewTimestamp(testNow.Add(-time.Minute))},
	}
}

func TestListTasksRendersUrgency(t *testing.T) {
	e := newTestServer(t, &mockRepo{tasks: sampleTasks()})

	rec := serve(e, http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp listJSON
	decode(t, rec, &resp)
	if len(resp.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(resp.Tasks))
	}
	want := []string{"due_soon", "completed", "overdue"}
	for i, task := range resp.Tasks {
		if task.Urgency != want[i] {
			t.Fatalf("task %s: expected %s got %s", task.ID, want[i], task.Urgency)
		}
	}
	if resp.Tasks[2].Background != "#ffebee" {
		t.Fatalf("expected overdue background, got %s", resp.Tasks[2].Background)
	}
	if resp.Tasks[1].Status != "Completed" {
		t.Fatalf("expected completed status, got %q", resp.Tasks[1].Status)
	}
}

func TestListTasksFilter(t *testing.T) {
	e := newTestServer(t, &mockRepo{tasks: sampleTasks()})

	rec := serve(e, http.MethodGet, "/api/tasks?urgency=overdue,due_soon", "")
	var resp listJSON
	decode(t, rec, &resp)
	if len(resp.Tasks) != 2 || resp.Tasks[0].ID != "1" || resp.Tasks[1].ID != "3" {
		t.Fatalf("unexpected filtered tasks %#v", resp.Tasks)
	}

	rec = serve(e, http.MethodGet, "/api/tasks?urgency=someday", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown urgency, got %d", rec.Code)
	}
}

func TestListTasksLoadFailureRendersNothing(t *testing.T) {
	repo := &mockRepo{tasks: sampleTasks()}
	e := newTestServer(t, repo)
	if rec := serve(e, http.MethodGet, "/api/tasks", ""); rec.Code != http.StatusOK {
		t.Fatalf("initial load: %d", rec.Code)
	}

	repo.listErr = &domain.TransportError{Op: "list_tasks", StatusCode: 503, Err: errors.New("unavailable")}
	rec := serve(e, http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"tasks"`) {
		t.Fatalf("expected no tasks alongside a load failure, got %s", rec.Body.String())
	}
	var resp errorJSON
	decode(t, rec, &resp)
	if resp.Error == "" {
		t.Fatalf("expected error message")
	}

	if rec := serve(e, http.MethodGet, "/api/tasks/1", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected prior tasks to stay in the session, got %d", rec.Code)
	}

	repo.listErr = nil
	rec = serve(e, http.MethodGet, "/api/tasks", "")
	var list listJSON
	decode(t, rec, &list)
	if rec.Code != http.StatusOK || len(list.Tasks) != 3 {
		t.Fatalf("expected recovery after a successful load, got %d with %d tasks", rec.Code, len(list.Tasks))
	}
}

func TestGetTask(t *testing.T) {
	e := newTestServer(t, &mockRepo{tasks: sampleTasks()})

	rec := serve(e, http.MethodGet, "/api/tasks/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var task taskJSON
	decode(t, rec, &task)
	if task.Title != "Pay rent" || task.DueDateText != "10/01/2026 14:00" {
		t.Fatalf("unexpected task %#v", task)
	}

	if rec := serve(e, http.MethodGet, "/api/tasks/404", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateTaskValidationEchoesDraft(t *testing.T) {
	repo := &mockRepo{}
	e := newTestServer(t, repo)

	rec := serve(e, http.MethodPost, "/api/tasks", `{"title":"  ","due_date":"2026-01-11T09:00","color":"#fff9c4"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp errorJSON
	decode(t, rec, &resp)
	if _, ok := resp.Fields["title"]; !ok {
		t.Fatalf("expected title field error, got %#v", resp.Fields)
	}
	if resp.Draft == nil || resp.Draft.Color != "#fff9c4" {
		t.Fatalf("expected draft to be echoed, got %#v", resp.Draft)
	}
	if repo.creates != 0 {
		t.Fatalf("expected no create request, got %d", repo.creates)
	}
}

func TestCreateTask(t *testing.T) {
	repo := &mockRepo{}
	e := newTestServer(t, repo)

	rec := serve(e, http.MethodPost, "/api/tasks", `{"title":"Dentist","due_date":"2026-01-10T15:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var task taskJSON
	decode(t, rec, &task)
	if task.ID != "101" || task.Urgency != "due_soon" {
		t.Fatalf("unexpected created task %#v", task)
	}
	if task.Color != domain.DefaultColor {
		t.Fatalf("expected default color, got %q", task.Color)
	}

	rec = serve(e, http.MethodGet, "/api/tasks/101", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected created task in the session, got %d", rec.Code)
	}
}

func TestCreateTaskRejectsUnknownFields(t *testing.T) {
	e := newTestServer(t, &mockRepo{})
	rec := serve(e, http.MethodPost, "/api/tasks", `{"title":"x","due_date":"2026-01-10T15:00","owner":"me"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateTaskKeepsUntouchedFields(t *testing.T) {
	tasks := sampleTasks()
	tasks[0].Description = "before the 5th"
	tasks[0].IsFavorite = true
	repo := &mockRepo{tasks: tasks}
	e := newTestServer(t, repo)

	rec := serve(e, http.MethodPut, "/api/tasks/1", `{"title":"Pay rent today"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := repo.tasks[0]
	if got.Title != "Pay rent today" || got.Description != "before the 5th" || !got.IsFavorite || got.ID != "1" {
		t.Fatalf("expected full record update, got %#v", got)
	}

	if rec := serve(e, http.MethodPut, "/api/tasks/77", `{"title":"x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing task, got %d", rec.Code)
	}
}

func TestUpdateTaskRejectsBadBodyBeforeFetching(t *testing.T) {
	repo := &mockRepo{tasks: sampleTasks()}
	e := newTestServer(t, repo)

	for _, body := range []string{`{"title":`, `{"title":"x","owner":"me"}`, `{"due_date":"someday"}`} {
		if rec := serve(e, http.MethodPut, "/api/tasks/1", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
	if repo.gets != 0 {
		t.Fatalf("expected no task fetch for invalid bodies, got %d", repo.gets)
	}
}

func TestDeleteTaskWarnsOnRemoteFailure(t *testing.T) {
	repo := &mockRepo{tasks: sampleTasks(), deleteErr: &domain.TransportError{Op: "delete_task", StatusCode: 500, Err: errors.New("boom")}}
	e := newTestServer(t, repo)

	rec := serve(e, http.MethodDelete, "/api/tasks/2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Removed bool   `json:"removed"`
		Warning string `json:"warning"`
	}
	decode(t, rec, &resp)
	if !resp.Removed || resp.Warning == "" {
		t.Fatalf("expected removal with warning, got %#v", resp)
	}

	rec = serve(e, http.MethodGet, "/api/tasks/2", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected task to stay removed, got %d", rec.Code)
	}
}

func TestDeleteMissingTaskSendsNothing(t *testing.T) {
	repo := &mockRepo{tasks: sampleTasks()}
	e := newTestServer(t, repo)

	rec := serve(e, http.MethodDelete, "/api/tasks/9", "")
	var resp struct {
		Removed bool `json:"removed"`
	}
	decode(t, rec, &resp)
	if resp.Removed || len(repo.deletes) != 0 {
		t.Fatalf("expected no-op, removed=%v deletes=%v", resp.Removed, repo.deletes)
	}
}

func TestToggleFavorite(t *testing.T) {
	repo := &mockRepo{tasks: sampleTasks()}
	e := newTestServer(t, repo)

	rec := serve(e, http.MethodPost, "/api/tasks/1/favorite", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var task taskJSON
	decode(t, rec, &task)
	if !task.IsFavorite {
		t.Fatalf("expected favorite task, got %#v", task)
	}
}

func TestToggleFailureReturnsCurrentTask(t *testing.T) {
	repo := &mockRepo{tasks: sampleTasks(), updateErr: &domain.TransportError{Op: "update_task", StatusCode: 503, Err: errors.New("down")}}
	e := newTestServer(t, repo)

	rec := serve(e, http.MethodPost, "/api/tasks/3/complete", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var resp errorJSON
	decode(t, rec, &resp)
	if resp.Task == nil || resp.Task.Completed || resp.Task.Urgency != "overdue" {
		t.Fatalf("expected unchanged task in response, got %#v", resp.Task)
	}

	if rec := serve(e, http.MethodPost, "/api/tasks/missing/complete", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGzipSubmit(t *testing.T) {
	repo := &mockRepo{}
	e := newTestServer(t, repo)

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write([]byte(`{"title":"zipped","due_date":"2026-01-12T08:00"}`))
	_ = gw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated || repo.creates != 1 {
		t.Fatalf("expected gzip body to be accepted, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid gzip, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t, &mockRepo{})
	if rec := serve(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSubmitFailureIsLogged(t *testing.T) {
	fixedClock(t)
	logger, hook := test.NewNullLogger()
	repo := &mockRepo{tasks: sampleTasks(), updateErr: &domain.TransportError{Op: "update_task", StatusCode: 500, Err: errors.New("boom")}}
	e := echo.New()
	Register(e, NewSessions(func(string) view.Repository { return repo }, 0, logger), mockAuth{}, logger)

	rec := serve(e, http.MethodPut, "/api/tasks/1", `{"title":"x"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel || entry.Data["user"] != "user" {
		t.Fatalf("expected warning for failed submit, got %#v", entry)
	}
}
