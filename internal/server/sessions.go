package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/harvestlab/knowledge-harvest/internal/pipeline"
	"github.com/harvestlab/knowledge-harvest/internal/store"
	"github.com/harvestlab/knowledge-harvest/models"
)

// SessionsHandler manages the interview lifecycle: create, autosave,
// end (which fires the extraction pipeline) and audio blobs.
type SessionsHandler struct {
	Store    *store.Store
	Pipeline *pipeline.Runner
	DataDir  string
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.POST("/:id/autosave", h.autosave)
	g.POST("/:id/end", h.end)
	g.POST("/:id/audio", h.uploadAudio)
}

func (h *SessionsHandler) create(c echo.Context) error {
	var req struct {
		CompanyID   string `json:"companyId"`
		TopicTreeID string `json:"topicTreeId"`
		SpeakerName string `json:"speakerName"`
	}
	if err := c.Bind(&req); err != nil || req.CompanyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "companyId required")
	}
	ctx := c.Request().Context()
	if _, ok, err := h.Store.GetCompany(ctx, req.CompanyID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "company not found")
	}
	sess, err := h.Store.CreateSession(ctx, req.CompanyID, req.TopicTreeID, req.SpeakerName)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *SessionsHandler) get(c echo.Context) error {
	sess, ok, err := h.Store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, sess)
}

// autosave replaces the transcript snapshot of an active session.
func (h *SessionsHandler) autosave(c echo.Context) error {
	var req struct {
		Transcript json.RawMessage `json:"transcript"`
	}
	if err := c.Bind(&req); err != nil || len(req.Transcript) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "transcript required")
	}
	if _, err := models.ParseTranscript(req.Transcript); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.Store.SaveTranscriptSnapshot(c.Request().Context(), c.Param("id"), req.Transcript); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "saved"})
}

// end performs the single end-of-session mutation and fires the
// extraction pipeline in the background.
func (h *SessionsHandler) end(c echo.Context) error {
	sessionID := c.Param("id")
	var req struct {
		Transcript json.RawMessage `json:"transcript"`
		AudioURL   string          `json:"audioUrl"`
		Failed     bool            `json:"failed"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Transcript) > 0 {
		if _, err := models.ParseTranscript(req.Transcript); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	status := store.SessionStatusCompleted
	if req.Failed {
		status = store.SessionStatusFailed
	}
	if err := h.Store.EndSession(c.Request().Context(), sessionID, req.Transcript, req.AudioURL, status); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if status == store.SessionStatusCompleted {
		pipelineKickoffs.Inc()
		h.Pipeline.Kickoff(sessionID)
	}
	sess, _, err := h.Store.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

// uploadAudio stores the interview recording and records its URL on the
// session. Blobs live under <data_dir>/audio/<sessionID>.webm.
func (h *SessionsHandler) uploadAudio(c echo.Context) error {
	sessionID := c.Param("id")
	ctx := c.Request().Context()
	if _, ok, err := h.Store.GetSession(ctx, sessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file part required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	dir := filepath.Join(h.DataDir, "audio")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	dst, err := os.Create(h.audioPath(sessionID))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	audioURL := "/api/audio/" + sessionID
	if err := h.Store.SetSessionAudioURL(ctx, sessionID, audioURL); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"audioUrl": audioURL})
}

func (h *SessionsHandler) streamAudio(c echo.Context) error {
	sessionID := c.Param("session")
	// session ids are uuids; reject anything that could escape the dir
	if strings.ContainsAny(sessionID, "/\\.") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	path := h.audioPath(sessionID)
	if _, err := os.Stat(path); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no audio for session")
	}
	c.Response().Header().Set(echo.HeaderContentType, "audio/webm")
	return c.File(path)
}

func (h *SessionsHandler) audioPath(sessionID string) string {
	return filepath.Join(h.DataDir, "audio", sessionID+".webm")
}
