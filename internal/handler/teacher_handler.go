package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/yogastudio/internal/model"
)

// TeacherServiceInterface は講師ハンドラーが必要とするサービスインターフェース。
type TeacherServiceInterface interface {
	FindByID(ctx context.Context, id int64) (*model.Teacher, error)
	FindAll(ctx context.Context) ([]*model.Teacher, error)
}

// TeacherHandler は講師参照のHTTPハンドラー。
type TeacherHandler struct {
	service TeacherServiceInterface
}

// NewTeacherHandler はTeacherHandlerを生成する。
func NewTeacherHandler(service TeacherServiceInterface) *TeacherHandler {
	return &TeacherHandler{service: service}
}

type teacherResponse struct {
	ID        int64     `json:"id"`
	LastName  string    `json:"lastName"`
	FirstName string    `json:"firstName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toTeacherResponse(t *model.Teacher) teacherResponse {
	return teacherResponse{
		ID:        t.ID,
		LastName:  t.LastName,
		FirstName: t.FirstName,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// List は講師一覧を返す。
// GET /api/teacher
func (h *TeacherHandler) List(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.service.FindAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]teacherResponse, len(teachers))
	for i, t := range teachers {
		resp[i] = toTeacherResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は講師詳細を返す。
// GET /api/teacher/{id}
func (h *TeacherHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseIDParam(r, "id")
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	teacher, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTeacherResponse(teacher))
}
