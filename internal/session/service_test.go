package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/yogastudio/internal/model"
	"github.com/hitoshi/yogastudio/internal/repository"
	"github.com/hitoshi/yogastudio/internal/security"
)

// --- モック ---

type mockCollector struct {
	participations []string
	conflicts      int
}

func (m *mockCollector) RecordHTTPStatus(int) {}
func (m *mockCollector) RecordRequestLatency(time.Duration) {}
func (m *mockCollector) RecordLogin(string) {}
func (m *mockCollector) RecordSessionsPurged(int64) {}
func (m *mockCollector) RecordVersionConflict() { m.conflicts++ }
func (m *mockCollector) RecordParticipation(action string) {
	m.participations = append(m.participations, action)
}

// --- ヘルパー ---

type fixture struct {
	store     *repository.MemoryStore
	svc       *Service
	collector *mockCollector
	teacherID int64
	userIDs   []int64
}

// newFixture は講師1名とユーザー3名を登録したストアとサービスを返す。
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	teacher := &model.Teacher{FirstName: "Margot", LastName: "DELAHAYE"}
	if err := store.Teachers().Create(ctx, teacher); err != nil {
		t.Fatalf("seed teacher failed: %v", err)
	}

	var userIDs []int64
	for _, email := range []string{"alice@test.com", "bob@test.com", "carol@test.com"} {
		u := &model.User{Email: email, FirstName: "First", LastName: "Last"}
		if err := store.Users().Create(ctx, u); err != nil {
			t.Fatalf("seed user failed: %v", err)
		}
		userIDs = append(userIDs, u.ID)
	}

	collector := &mockCollector{}
	svc := NewService(store.Sessions(), store.Teachers(), store.Users(),
		security.NewTextSanitizer(), collector, Config{})

	return &fixture{store: store, svc: svc, collector: collector, teacherID: teacher.ID, userIDs: userIDs}
}

func (f *fixture) input(name string) model.SessionInput {
	tid := f.teacherID
	return model.SessionInput{
		Name:        name,
		Date:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Description: "A relaxing class",
		TeacherID:   &tid,
	}
}

// steppingClock は呼ばれるたびに1秒進む時計を返す。
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func int64Ptr(v int64) *int64 { return &v }

var fixtureDate = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

// --- Create ---

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)

	s, err := f.svc.Create(context.Background(), f.input("Morning Yoga"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if !s.CreatedAt.Equal(s.UpdatedAt) {
		t.Errorf("createdAt %v != updatedAt %v", s.CreatedAt, s.UpdatedAt)
	}
	if s.Users == nil || len(s.Users) != 0 {
		t.Errorf("Users = %v, want empty non-nil", s.Users)
	}
	if s.TeacherID == nil || *s.TeacherID != f.teacherID {
		t.Errorf("TeacherID = %v, want %d", s.TeacherID, f.teacherID)
	}
}

func TestCreate_UnknownTeacherPersistsNothing(t *testing.T) {
	f := newFixture(t)
	in := f.input("Morning Yoga")
	in.TeacherID = int64Ptr(999)

	_, err := f.svc.Create(context.Background(), in)
	if !model.IsKind(err, model.KindBadRequest) {
		t.Fatalf("err = %v, want BadRequest", err)
	}

	all, _ := f.store.Sessions().FindAll(context.Background())
	if len(all) != 0 {
		t.Errorf("sessions persisted = %d, want 0", len(all))
	}
}

func TestCreate_WithoutTeacher(t *testing.T) {
	f := newFixture(t)
	in := f.input("Open mat")
	in.TeacherID = nil

	s, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.TeacherID != nil {
		t.Errorf("TeacherID = %v, want nil", *s.TeacherID)
	}
}

func TestCreate_InitialRoster(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		users    []int64
		wantKind model.ErrorKind
		wantCode string
	}{
		{name: "登録済みユーザーのみ", users: []int64{f.userIDs[0], f.userIDs[1]}},
		{name: "重複あり", users: []int64{f.userIDs[0], f.userIDs[0]}, wantKind: model.KindBadRequest, wantCode: model.ErrCodeDuplicateParticipant},
		{name: "未登録ユーザー", users: []int64{f.userIDs[0], 404}, wantKind: model.KindBadRequest, wantCode: model.ErrCodeUnknownParticipant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input("Roster")
			in.Users = tt.users

			s, err := f.svc.Create(context.Background(), in)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("Create failed: %v", err)
				}
				if len(s.Users) != len(tt.users) {
					t.Errorf("Users = %v, want %v", s.Users, tt.users)
				}
				return
			}

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Kind != tt.wantKind || apiErr.Code != tt.wantCode {
				t.Errorf("err = %v, want %s/%s", err, tt.wantKind, tt.wantCode)
			}
		})
	}
}

func TestCreate_SanitizesText(t *testing.T) {
	f := newFixture(t)
	in := f.input("<b>Hatha</b>")
	in.Description = `Stretch<script>alert(1)</script>`

	s, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.Name != "Hatha" || s.Description != "Stretch" {
		t.Errorf("Name = %q, Description = %q", s.Name, s.Description)
	}
}

// マークアップのみの名前はサニタイズ後に空になり、入力エラーになる。
func TestCreate_EmptyAfterSanitize(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.input("<script>x</script>"))
	if !model.IsKind(err, model.KindBadRequest) {
		t.Errorf("err = %v, want BadRequest", err)
	}
}

// --- Update ---

func TestUpdate_PreservesCreatedAtAndAdvancesUpdatedAt(t *testing.T) {
	f := newFixture(t)
	f.svc.now = steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	created, err := f.svc.Create(context.Background(), f.input("Morning Yoga"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	in := f.input("Evening Yoga")
	in.Description = "Slower"
	updated, err := f.svc.Update(context.Background(), created.ID, in)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updatedAt did not advance: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}
	if updated.Name != "Evening Yoga" || updated.Description != "Slower" {
		t.Errorf("fields not replaced: %+v", updated)
	}
}

// 時計が進まなくてもupdatedAtは前回より後になる。
func TestUpdate_AdvancesUpdatedAtWithFrozenClock(t *testing.T) {
	f := newFixture(t)
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return frozen }

	created, _ := f.svc.Create(context.Background(), f.input("Morning Yoga"))
	updated, err := f.svc.Update(context.Background(), created.ID, f.input("Morning Yoga"))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updatedAt did not advance: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}
}

// 更新は全置換で、入力にない講師と名簿はクリアされる。
func TestUpdate_TotalReplace(t *testing.T) {
	f := newFixture(t)
	in := f.input("Morning Yoga")
	in.Users = []int64{f.userIDs[0]}
	created, _ := f.svc.Create(context.Background(), in)

	replacement := f.input("Morning Yoga")
	replacement.TeacherID = nil
	replacement.Users = nil
	updated, err := f.svc.Update(context.Background(), created.ID, replacement)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.TeacherID != nil {
		t.Errorf("TeacherID = %v, want nil", *updated.TeacherID)
	}
	if len(updated.Users) != 0 {
		t.Errorf("Users = %v, want empty", updated.Users)
	}
}

func TestUpdate_Errors(t *testing.T) {
	f := newFixture(t)
	created, _ := f.svc.Create(context.Background(), f.input("Morning Yoga"))

	unknownTeacher := f.input("x")
	unknownTeacher.TeacherID = int64Ptr(77)

	tests := []struct {
		name     string
		id       int64
		in       model.SessionInput
		wantKind model.ErrorKind
	}{
		{name: "存在しないセッション", id: 999, in: f.input("x"), wantKind: model.KindNotFound},
		{name: "存在しない講師", id: created.ID, in: unknownTeacher, wantKind: model.KindBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(context.Background(), tt.id, tt.in)
			if !model.IsKind(err, tt.wantKind) {
				t.Errorf("err = %v, want %s", err, tt.wantKind)
			}
		})
	}

	// 失敗した更新は保存済みの内容を変えない
	got, _ := f.svc.GetByID(context.Background(), created.ID)
	if got.Name != "Morning Yoga" {
		t.Errorf("Name = %q after failed update", got.Name)
	}
}

// --- GetByID / FindAll / Delete ---

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture(t)

	for _, id := range []int64{1, 42, 1 << 40} {
		if _, err := f.svc.GetByID(context.Background(), id); !model.IsKind(err, model.KindNotFound) {
			t.Errorf("GetByID(%d) err = %v, want NotFound", id, err)
		}
	}
}

func TestFindAll(t *testing.T) {
	f := newFixture(t)
	_, _ = f.svc.Create(context.Background(), f.input("A"))
	_, _ = f.svc.Create(context.Background(), f.input("B"))

	all, err := f.svc.FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}
}

func TestDelete_KeepsTeacherAndUsers(t *testing.T) {
	f := newFixture(t)
	in := f.input("Morning Yoga")
	in.Users = []int64{f.userIDs[0]}
	created, _ := f.svc.Create(context.Background(), in)

	if err := f.svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.svc.GetByID(context.Background(), created.ID); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("deleted session still found: %v", err)
	}
	if ok, _ := f.store.Teachers().ExistsByID(context.Background(), f.teacherID); !ok {
		t.Error("teacher must survive session deletion")
	}
	if u, _ := f.store.Users().FindByID(context.Background(), f.userIDs[0]); u == nil {
		t.Error("participant must survive session deletion")
	}

	if err := f.svc.Delete(context.Background(), created.ID); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("second Delete err = %v, want NotFound", err)
	}
}
