package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/coursemarket/internal/service"
)

// CourseHandler serves the catalog: courses and their nested contents.
// Every route runs behind RequireActor; role and ownership checks happen
// in the service.
type CourseHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewCourseHandler(catalog Catalog, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{catalog: catalog, logger: logger}
}

// HandleList returns the courses visible to the caller.
//
// HTTP: GET /api/courses?q=go
func (h *CourseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.ListCourses(r.Context(), actorFrom(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "", courses)
}

// HandleListOwned is the teacher dashboard.
//
// HTTP: GET /api/teacher/courses
func (h *CourseHandler) HandleListOwned(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.ListOwnedCourses(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "", courses)
}

// HandleCreate creates a course owned by the calling teacher.
//
// HTTP: POST /api/courses
// BODY: {"title","description","duration","price":"50.00"}
func (h *CourseHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	course, err := h.catalog.CreateCourse(r.Context(), actorFrom(r), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, "new course created successfully", course)
}

// HTTP: GET /api/courses/{courseID}
func (h *CourseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	course, err := h.catalog.GetCourse(r.Context(), actorFrom(r), chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "", course)
}

// HTTP: PUT /api/courses/{courseID}
func (h *CourseHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	course, err := h.catalog.UpdateCourse(r.Context(), actorFrom(r), chi.URLParam(r, "courseID"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Course updated successfully", course)
}

// HTTP: DELETE /api/courses/{courseID}
func (h *CourseHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCourse(r.Context(), actorFrom(r), chi.URLParam(r, "courseID")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, Response{Message: "Course deleted successfully"})
}

// =========================================================================
// CONTENTS
// =========================================================================

// HTTP: GET /api/courses/{courseID}/contents
func (h *CourseHandler) HandleListContents(w http.ResponseWriter, r *http.Request) {
	contents, err := h.catalog.ListContents(r.Context(), actorFrom(r), chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Contents that are created for this particular course", contents)
}

// HandleCreateContent adds a topic to a course.
//
// HTTP: POST /api/courses/{courseID}/contents
// BODY: {"name","body","url"}
func (h *CourseHandler) HandleCreateContent(w http.ResponseWriter, r *http.Request) {
	var in service.ContentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	content, err := h.catalog.CreateContent(r.Context(), actorFrom(r), chi.URLParam(r, "courseID"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, "New course content created successfully", content)
}

// HTTP: GET /api/courses/{courseID}/contents/{contentID}
func (h *CourseHandler) HandleGetContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.catalog.GetContent(r.Context(), actorFrom(r),
		chi.URLParam(r, "courseID"), chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "", content)
}

// HTTP: PUT /api/courses/{courseID}/contents/{contentID}
func (h *CourseHandler) HandleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var in service.ContentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	content, err := h.catalog.UpdateContent(r.Context(), actorFrom(r),
		chi.URLParam(r, "courseID"), chi.URLParam(r, "contentID"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, "Course content updated successfully", content)
}

// HTTP: DELETE /api/courses/{courseID}/contents/{contentID}
func (h *CourseHandler) HandleDeleteContent(w http.ResponseWriter, r *http.Request) {
	err := h.catalog.DeleteContent(r.Context(), actorFrom(r),
		chi.URLParam(r, "courseID"), chi.URLParam(r, "contentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, Response{Message: "Course content deleted successfully"})
}
