package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/soaringjerry/Vox/internal/middleware"
	"github.com/soaringjerry/Vox/internal/services"
)

// POST /api/recordings (multipart: user_id, question_id, audio)
func (rt *Router) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUpload)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "Recording too large"})
			return
		}
		rt.writeError(w, services.NewInvalidError("Invalid multipart body"))
		return
	}
	questionID, err := strconv.Atoi(strings.TrimSpace(r.FormValue("question_id")))
	if err != nil {
		rt.writeError(w, services.NewInvalidError("question_id must be a number"))
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		rt.writeError(w, services.NewInvalidError("audio file is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		rt.writeError(w, services.NewInvalidError("Could not read audio file"))
		return
	}
	rec, err := rt.recordings.Upload(r.Context(), services.UploadRequest{
		UserID:      strings.TrimSpace(r.FormValue("user_id")),
		QuestionID:  questionID,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        rec.ID,
		"objectKey": rec.ObjectKey,
		"audioUrl":  rec.AudioURL,
	})
}

// GET /api/questions?lang=xx
func (rt *Router) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"locale":    locale,
		"questions": services.Questions(locale),
	})
}
