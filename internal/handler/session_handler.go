package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/yogastudio/internal/model"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	Create(ctx context.Context, in model.SessionInput) (*model.Session, error)
	Update(ctx context.Context, id int64, in model.SessionInput) (*model.Session, error)
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	FindAll(ctx context.Context) ([]*model.Session, error)
	Delete(ctx context.Context, id int64) error
	AddParticipant(ctx context.Context, sessionID, userID int64) error
	RemoveParticipant(ctx context.Context, sessionID, userID int64) error
}

// SessionHandler はセッション管理と参加登録のHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{
		service: service,
	}
}

// sessionRequest はセッション作成・更新のリクエストボディ。
type sessionRequest struct {
	Name        string  `json:"name" validate:"required,max=50"`
	Date        string  `json:"date" validate:"required,sessiondate"`
	Description string  `json:"description" validate:"required,max=2500"`
	TeacherID   *int64  `json:"teacher_id" validate:"omitempty,gt=0"`
	Users       []int64 `json:"users" validate:"omitempty,dive,gt=0"`
}

// sessionResponse はセッションのレスポンス。
type sessionResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	TeacherID   *int64    `json:"teacher_id"`
	Users       []int64   `json:"users"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// toInput はリクエストボディをドメインの入力値に変換する。日付は検証済みであること。
func (req sessionRequest) toInput() model.SessionInput {
	date, _ := parseSessionDate(req.Date)
	users := req.Users
	if users == nil {
		users = []int64{}
	}
	return model.SessionInput{
		Name:        req.Name,
		Date:        date,
		Description: req.Description,
		TeacherID:   req.TeacherID,
		Users:       users,
	}
}

func toSessionResponse(s *model.Session) sessionResponse {
	users := s.Users
	if users == nil {
		users = []int64{}
	}
	return sessionResponse{
		ID:          s.ID,
		Name:        s.Name,
		Date:        s.Date.UTC().Format(time.DateOnly),
		Description: s.Description,
		TeacherID:   s.TeacherID,
		Users:       users,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// List はセッション一覧を返す。
// GET /api/session
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.FindAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = toSessionResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get はセッション詳細を返す。
// GET /api/session/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseIDParam(r, "id")
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	session, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Create はセッションを作成する。
// POST /api/session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if apiErr := decodeAndValidate(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	session, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Update はセッションを全置換で更新する。
// PUT /api/session/{id}
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseIDParam(r, "id")
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	var req sessionRequest
	if apiErr := decodeAndValidate(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	session, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Delete はセッションを削除する。
// DELETE /api/session/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseIDParam(r, "id")
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Participate はユーザーをセッションの参加者に追加する。
// POST /api/session/{id}/participate/{userId}
func (h *SessionHandler) Participate(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, apiErr := parseParticipationParams(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	if err := h.service.AddParticipant(r.Context(), sessionID, userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Unparticipate はユーザーをセッションの参加者から外す。参加していなくても成功する。
// DELETE /api/session/{id}/participate/{userId}
func (h *SessionHandler) Unparticipate(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, apiErr := parseParticipationParams(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	if err := h.service.RemoveParticipant(r.Context(), sessionID, userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func parseParticipationParams(r *http.Request) (int64, int64, *model.APIError) {
	sessionID, apiErr := parseIDParam(r, "id")
	if apiErr != nil {
		return 0, 0, apiErr
	}
	userID, apiErr := parseIDParam(r, "userId")
	if apiErr != nil {
		return 0, 0, apiErr
	}
	return sessionID, userID, nil
}
