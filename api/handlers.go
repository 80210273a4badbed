package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"agenda-view/domain"
	"agenda-view/storage"
	"agenda-view/view"
)

const maxDraftSize = 64 << 10

var clock = time.Now

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, sessions *Sessions, auth Authenticator, logger *log.Logger) {
	e.GET("/api/tasks", listTasks(sessions, auth))
	e.GET("/api/tasks/:id", getTask(sessions, auth))
	e.POST("/api/tasks", createTask(sessions, auth, logger))
	e.PUT("/api/tasks/:id", updateTask(sessions, auth, logger))
	e.DELETE("/api/tasks/:id", deleteTask(sessions, auth))
	e.POST("/api/tasks/:id/favorite", toggleTask(sessions, auth, logger, "favorite", (*view.Store).ToggleFavorite))
	e.POST("/api/tasks/:id/complete", toggleTask(sessions, auth, logger, "complete", (*view.Store).ToggleCompleted))
	e.GET("/healthz", healthz)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// authenticate resolves the caller and forwards their bearer token to the
// task service through the request context.
func authenticate(c echo.Context, auth Authenticator) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	userID, err := auth.UserIDFromAuthHeader(header)
	if err != nil {
		return "", err
	}
	if token, err := bearerToken(header); err == nil {
		req := c.Request()
		c.SetRequest(req.WithContext(storage.WithBearer(req.Context(), token)))
	}
	return userID, nil
}

func listTasks(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		urgencies, err := parseUrgencies(c.QueryParam("urgency"))
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		ctx := c.Request().Context()

		return sessions.With(userID, func(sess *Session) error {
			if err := sess.Store.Load(ctx); err != nil {
				return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
			}
			now := clock()
			return c.JSON(http.StatusOK, tasksResponse{Tasks: view.RenderAll(sess.Store.Filter(now, urgencies...), now)})
		})
	}
}

func getTask(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := domain.TaskID(c.Param("id"))
		ctx := c.Request().Context()

		return sessions.With(userID, func(sess *Session) error {
			if err := ensureLoaded(ctx, sess.Store); err != nil {
				return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
			}
			task, ok := sess.Store.Get(id)
			if !ok {
				return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrNotFound.Error()})
			}
			return c.JSON(http.StatusOK, view.Render(task, clock()))
		})
	}
}

func createTask(sessions *Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		body, err := readDraft(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		draft := domain.NewDraft()
		if err := decodeDraft(body, &draft); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		ctx := c.Request().Context()

		return sessions.With(userID, func(sess *Session) error {
			form := view.NewCreateForm(sess.Repo)
			form.SetDraft(draft)
			task, err := form.Submit(ctx)
			if err != nil {
				return submitFailed(c, logger, userID, err, form.Draft())
			}
			sess.Store.Upsert(task)
			return c.JSON(http.StatusCreated, view.Render(task, clock()))
		})
	}
}

func updateTask(sessions *Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := domain.TaskID(c.Param("id"))
		body, err := readDraft(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		ctx := c.Request().Context()

		return sessions.With(userID, func(sess *Session) error {
			form, err := view.OpenEditForm(ctx, sess.Repo, id)
			if err != nil {
				return c.JSON(errorStatus(err), errorResponse{Error: err.Error()})
			}
			draft := form.Draft()
			if err := decodeDraft(body, &draft); err != nil {
				return c.String(http.StatusBadRequest, "invalid body")
			}
			form.SetDraft(draft)
			task, err := form.Submit(ctx)
			if err != nil {
				return submitFailed(c, logger, userID, err, form.Draft())
			}
			sess.Store.Upsert(task)
			return c.JSON(http.StatusOK, view.Render(task, clock()))
		})
	}
}

func deleteTask(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := domain.TaskID(c.Param("id"))
		ctx := c.Request().Context()

		return sessions.With(userID, func(sess *Session) error {
			if err := ensureLoaded(ctx, sess.Store); err != nil {
				return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
			}
			removed, err := sess.Store.Remove(ctx, id)
			resp := deleteResponse{ID: id, Removed: removed}
			if err != nil {
				resp.Warning = "removed from the view but the service did not confirm: " + err.Error()
			}
			return c.JSON(http.StatusOK, resp)
		})
	}
}

type toggleFunc func(*view.Store, context.Context, domain.TaskID) (domain.Task, error)

func toggleTask(sessions *Sessions, auth Authenticator, logger *log.Logger, name string, toggle toggleFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authenticate(c, auth)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := domain.TaskID(c.Param("id"))
		ctx := c.Request().Context()

		return sessions.With(userID, func(sess *Session) error {
			if err := ensureLoaded(ctx, sess.Store); err != nil {
				return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
			}
			task, err := toggle(sess.Store, ctx, id)
			if err != nil {
				status := errorStatus(err)
				resp := errorResponse{Error: err.Error()}
				if current, ok := sess.Store.Get(id); ok {
					v := view.Render(current, clock())
					resp.Task = &v
				}
				if status == http.StatusBadGateway {
					logger.WithFields(log.Fields{"user": userID, "task": id, "toggle": name}).WithError(err).Warn("toggle failed")
				}
				return c.JSON(status, resp)
			}
			return c.JSON(http.StatusOK, view.Render(task, clock()))
		})
	}
}

func ensureLoaded(ctx context.Context, store *view.Store) error {
	if store.Loaded() {
		return nil
	}
	return store.Load(ctx)
}

// readDraft reads a draft body and checks it decodes before any remote call
// is made for it.
func readDraft(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxDraftSize))
	if err != nil {
		return nil, err
	}
	var scratch domain.Draft
	if err := decodeDraft(body, &scratch); err != nil {
		return nil, err
	}
	return body, nil
}

// decodeDraft merges body over into; fields absent from body keep their value.
func decodeDraft(body []byte, into *domain.Draft) error {
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

func submitFailed(c echo.Context, logger *log.Logger, userID string, err error, draft domain.Draft) error {
	status := errorStatus(err)
	resp := errorResponse{Error: err.Error(), Draft: &draft}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if status == http.StatusBadGateway {
		logger.WithFields(log.Fields{"user": userID}).WithError(err).Warn("form submit failed; draft kept")
	}
	return c.JSON(status, resp)
}

func errorStatus(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, view.ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func parseUrgencies(raw string) ([]domain.Urgency, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []domain.Urgency
	for _, name := range strings.Split(raw, ",") {
		u, ok := domain.ParseUrgency(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown urgency %q", name)
		}
		out = append(out, u)
	}
	return out, nil
}
