package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/yogastudio/internal/model"
)

// --- モック定義 ---

// mockSessionService はSessionServiceInterfaceのモック実装。
type mockSessionService struct {
	createFn            func(ctx context.Context, in model.SessionInput) (*model.Session, error)
	updateFn            func(ctx context.Context, id int64, in model.SessionInput) (*model.Session, error)
	getByIDFn           func(ctx context.Context, id int64) (*model.Session, error)
	findAllFn           func(ctx context.Context) ([]*model.Session, error)
	deleteFn            func(ctx context.Context, id int64) error
	addParticipantFn    func(ctx context.Context, sessionID, userID int64) error
	removeParticipantFn func(ctx context.Context, sessionID, userID int64) error
}

func (m *mockSessionService) Create(ctx context.Context, in model.SessionInput) (*model.Session, error) {
	return m.createFn(ctx, in)
}

func (m *mockSessionService) Update(ctx context.Context, id int64, in model.SessionInput) (*model.Session, error) {
	return m.updateFn(ctx, id, in)
}

func (m *mockSessionService) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockSessionService) FindAll(ctx context.Context) ([]*model.Session, error) {
	return m.findAllFn(ctx)
}

func (m *mockSessionService) Delete(ctx context.Context, id int64) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSessionService) AddParticipant(ctx context.Context, sessionID, userID int64) error {
	return m.addParticipantFn(ctx, sessionID, userID)
}

func (m *mockSessionService) RemoveParticipant(ctx context.Context, sessionID, userID int64) error {
	return m.removeParticipantFn(ctx, sessionID, userID)
}

func sampleSession() *model.Session {
	tid := int64(1)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.Session{
		ID:          7,
		Name:        "Morning flow",
		Date:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Description: "Gentle vinyasa",
		TeacherID:   &tid,
		Users:       []int64{2, 3},
		Version:     1,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

// --- GET /api/session/{id} ---

func TestSessionHandler_Get_Success(t *testing.T) {
	svc := &mockSessionService{
		getByIDFn: func(_ context.Context, id int64) (*model.Session, error) {
			if id != 7 {
				t.Errorf("id = %d, want 7", id)
			}
			return sampleSession(), nil
		},
	}
	h := NewSessionHandler(svc)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/session/7", nil), map[string]string{"id": "7"})
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["date"] != "2024-12-31" {
		t.Errorf("date = %v, want 2024-12-31", resp["date"])
	}
	if resp["teacher_id"] != float64(1) {
		t.Errorf("teacher_id = %v, want 1", resp["teacher_id"])
	}
	if users, _ := resp["users"].([]any); len(users) != 2 {
		t.Errorf("users = %v", resp["users"])
	}
	if _, ok := resp["version"]; ok {
		t.Error("version must not be exposed")
	}
}

func TestSessionHandler_Get_InvalidID(t *testing.T) {
	h := NewSessionHandler(&mockSessionService{})

	for _, raw := range []string{"abc", "0", "-3", "1.5"} {
		t.Run(raw, func(t *testing.T) {
			req := withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": raw})
			w := httptest.NewRecorder()

			h.Get(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if code := decodeErrorCode(t, w); code != model.ErrCodeInvalidID {
				t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidID)
			}
		})
	}
}

func TestSessionHandler_Get_NotFound(t *testing.T) {
	svc := &mockSessionService{
		getByIDFn: func(_ context.Context, id int64) (*model.Session, error) {
			return nil, model.NewSessionNotFoundError(id)
		},
	}
	h := NewSessionHandler(svc)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "99"})
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSessionHandler_List_InternalError(t *testing.T) {
	svc := &mockSessionService{
		findAllFn: func(context.Context) ([]*model.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	h := NewSessionHandler(svc)
	w := httptest.NewRecorder()

	h.List(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Error("internal error detail must not leak to the client")
	}
}

func TestSessionHandler_List_Empty(t *testing.T) {
	svc := &mockSessionService{
		findAllFn: func(context.Context) ([]*model.Session, error) { return nil, nil },
	}
	h := NewSessionHandler(svc)
	w := httptest.NewRecorder()

	h.List(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

// --- POST /api/session ---

func TestSessionHandler_Create_Success(t *testing.T) {
	var captured model.SessionInput
	svc := &mockSessionService{
		createFn: func(_ context.Context, in model.SessionInput) (*model.Session, error) {
			captured = in
			return sampleSession(), nil
		},
	}
	h := NewSessionHandler(svc)

	body := `{"name":"Morning flow","date":"2024-12-31","description":"Gentle vinyasa","teacher_id":1}`
	w := httptest.NewRecorder()

	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
	if !captured.Date.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", captured.Date)
	}
	if captured.TeacherID == nil || *captured.TeacherID != 1 {
		t.Errorf("teacherID = %v, want 1", captured.TeacherID)
	}
	if captured.Users == nil || len(captured.Users) != 0 {
		t.Errorf("users = %v, want empty non-nil slice", captured.Users)
	}
}

func TestSessionHandler_Create_ValidationErrors(t *testing.T) {
	long := strings.Repeat("a", 51)
	tests := []struct {
		name string
		body string
	}{
		{name: "壊れたJSON", body: `{"name":`},
		{name: "名前なし", body: `{"date":"2024-12-31","description":"d"}`},
		{name: "名前が長すぎる", body: `{"name":"` + long + `","date":"2024-12-31","description":"d"}`},
		{name: "日付なし", body: `{"name":"n","description":"d"}`},
		{name: "日付の書式不正", body: `{"name":"n","date":"31/12/2024","description":"d"}`},
		{name: "説明なし", body: `{"name":"n","date":"2024-12-31"}`},
		{name: "講師IDが0", body: `{"name":"n","date":"2024-12-31","description":"d","teacher_id":0}`},
		{name: "参加者IDが負", body: `{"name":"n","date":"2024-12-31","description":"d","users":[-1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{
				createFn: func(context.Context, model.SessionInput) (*model.Session, error) {
					t.Error("service must not be called")
					return nil, nil
				},
			}
			h := NewSessionHandler(svc)
			w := httptest.NewRecorder()

			h.Create(w, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(tt.body)))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestSessionHandler_Create_UnknownTeacher(t *testing.T) {
	svc := &mockSessionService{
		createFn: func(_ context.Context, in model.SessionInput) (*model.Session, error) {
			return nil, model.NewUnknownTeacherError(*in.TeacherID)
		},
	}
	h := NewSessionHandler(svc)

	body := `{"name":"n","date":"2024-12-31T10:00:00","description":"d","teacher_id":42}`
	w := httptest.NewRecorder()

	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(body)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, w); code != model.ErrCodeUnknownTeacher {
		t.Errorf("code = %q", code)
	}
}

// --- PUT /api/session/{id} ---

func TestSessionHandler_Update_PassesIDAndRoster(t *testing.T) {
	svc := &mockSessionService{
		updateFn: func(_ context.Context, id int64, in model.SessionInput) (*model.Session, error) {
			if id != 7 {
				t.Errorf("id = %d, want 7", id)
			}
			if len(in.Users) != 2 || in.Users[0] != 2 || in.Users[1] != 3 {
				t.Errorf("users = %v", in.Users)
			}
			return sampleSession(), nil
		},
	}
	h := NewSessionHandler(svc)

	body := `{"name":"n","date":"2024-12-31T00:00:00Z","description":"d","users":[2,3]}`
	req := withURLParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), map[string]string{"id": "7"})
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// オフセット付き日時でも書かれた暦日がサービスに渡る
func TestSessionHandler_Update_KeepsWrittenCalendarDate(t *testing.T) {
	svc := &mockSessionService{
		updateFn: func(_ context.Context, _ int64, in model.SessionInput) (*model.Session, error) {
			want := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
			if !in.Date.Equal(want) {
				t.Errorf("date = %v, want %v", in.Date, want)
			}
			return sampleSession(), nil
		},
	}
	h := NewSessionHandler(svc)

	body := `{"name":"n","date":"2024-12-31T23:00:00-05:00","description":"d"}`
	req := withURLParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), map[string]string{"id": "7"})
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSessionHandler_Update_InvalidIDBeforeBody(t *testing.T) {
	h := NewSessionHandler(&mockSessionService{})

	req := withURLParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{`)), map[string]string{"id": "x"})
	w := httptest.NewRecorder()

	h.Update(w, req)

	if code := decodeErrorCode(t, w); code != model.ErrCodeInvalidID {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidID)
	}
}

// --- DELETE /api/session/{id} ---

func TestSessionHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "成功", err: nil, wantStatus: http.StatusOK},
		{name: "存在しない", err: model.NewSessionNotFoundError(7), wantStatus: http.StatusNotFound},
		{name: "ストア障害", err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{
				deleteFn: func(context.Context, int64) error { return tt.err },
			}
			h := NewSessionHandler(svc)

			req := withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": "7"})
			w := httptest.NewRecorder()

			h.Delete(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// --- POST/DELETE /api/session/{id}/participate/{userId} ---

func TestSessionHandler_Participate(t *testing.T) {
	tests := []struct {
		name       string
		params     map[string]string
		err        error
		wantStatus int
	}{
		{name: "成功", params: map[string]string{"id": "1", "userId": "2"}, wantStatus: http.StatusOK},
		{name: "不正なセッションID", params: map[string]string{"id": "a", "userId": "2"}, wantStatus: http.StatusBadRequest},
		{name: "不正なユーザーID", params: map[string]string{"id": "1", "userId": "b"}, wantStatus: http.StatusBadRequest},
		{name: "参加済み", params: map[string]string{"id": "1", "userId": "2"}, err: model.NewAlreadyParticipatingError(), wantStatus: http.StatusBadRequest},
		{name: "ユーザーなし", params: map[string]string{"id": "1", "userId": "2"}, err: model.NewUserNotFoundError(2), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{
				addParticipantFn: func(_ context.Context, sessionID, userID int64) error {
					if sessionID != 1 || userID != 2 {
						t.Errorf("ids = (%d, %d), want (1, 2)", sessionID, userID)
					}
					return tt.err
				},
			}
			h := NewSessionHandler(svc)

			req := withURLParams(httptest.NewRequest(http.MethodPost, "/", nil), tt.params)
			w := httptest.NewRecorder()

			h.Participate(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSessionHandler_Unparticipate(t *testing.T) {
	called := false
	svc := &mockSessionService{
		removeParticipantFn: func(_ context.Context, sessionID, userID int64) error {
			called = true
			return nil
		},
	}
	h := NewSessionHandler(svc)

	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": "1", "userId": "3"})
	w := httptest.NewRecorder()

	h.Unparticipate(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !called {
		t.Error("expected RemoveParticipant to be called")
	}
}

func TestParseSessionDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{raw: "2024-12-31", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-12-31T08:30:00", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-12-31T08:30:00+09:00", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-12-31T23:00:00-05:00", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-12-31T23:59:59Z", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{raw: "tomorrow", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseSessionDate(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
