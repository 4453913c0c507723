package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/yogastudio/internal/model"
)

// MemoryStore はプロセス内メモリにユーザー・講師・セッションを保持するストア。
// 開発用（STORE_DRIVER=memory）およびサービス層のテストで使用する。
// PostgreSQL実装と同じく、読み出しはコピーを返し、Saveはバージョンの比較交換を行う。
type MemoryStore struct {
	mu       sync.Mutex
	users    map[int64]*model.User
	teachers map[int64]*model.Teacher
	sessions map[int64]*model.Session

	userIDCounter    int64
	teacherIDCounter int64
	sessionIDCounter int64
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*model.User),
		teachers: make(map[int64]*model.Teacher),
		sessions: make(map[int64]*model.Session),
	}
}

// Users はUserRepositoryとしてのビューを返す。
func (m *MemoryStore) Users() *MemoryUserRepo { return &MemoryUserRepo{m: m} }

// Teachers はTeacherRepositoryとしてのビューを返す。
func (m *MemoryStore) Teachers() *MemoryTeacherRepo { return &MemoryTeacherRepo{m: m} }

// Sessions はSessionRepositoryとしてのビューを返す。
func (m *MemoryStore) Sessions() *MemorySessionRepo { return &MemorySessionRepo{m: m} }

// Ping はヘルスチェック用。常に成功する。
func (m *MemoryStore) Ping() error { return nil }

// --- UserRepository ---

// MemoryUserRepo はMemoryStore上のユーザーリポジトリ。
type MemoryUserRepo struct{ m *MemoryStore }

// FindByID は指定IDのユーザーを返す。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

// FindByEmail はメールアドレスでユーザーを返す。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if u := r.m.findUserByEmailLocked(email); u != nil {
		c := *u
		return &c, nil
	}
	return nil, nil
}

// ExistsByEmail はメールアドレスが登録済みかを返す。
func (r *MemoryUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	return r.m.findUserByEmailLocked(email) != nil, nil
}

// Create はユーザーを作成する。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.findUserByEmailLocked(user.Email) != nil {
		return ErrDuplicateEmail
	}
	r.m.userIDCounter++
	user.ID = r.m.userIDCounter
	c := *user
	r.m.users[user.ID] = &c
	return nil
}

// DeleteByID はユーザーを削除し、全セッションの名簿からも取り除く。
// 名簿が変わったセッションはバージョンを進め、読み込み済みのコピーによる保存を競合させる。
func (r *MemoryUserRepo) DeleteByID(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.users, id)
	// participateのCASCADE削除に相当
	for _, s := range r.m.sessions {
		if !s.HasParticipant(id) {
			continue
		}
		s.RemoveParticipant(id)
		s.Version++
	}
	return nil
}

func (m *MemoryStore) findUserByEmailLocked(email string) *model.User {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

// --- TeacherRepository ---

// MemoryTeacherRepo はMemoryStore上の講師リポジトリ。
type MemoryTeacherRepo struct{ m *MemoryStore }

// FindByID は指定IDの講師を返す。見つからない場合はnilを返す。
func (r *MemoryTeacherRepo) FindByID(ctx context.Context, id int64) (*model.Teacher, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	t, ok := r.m.teachers[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

// FindAll は全講師をID順に返す。
func (r *MemoryTeacherRepo) FindAll(ctx context.Context) ([]*model.Teacher, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	teachers := make([]*model.Teacher, 0, len(r.m.teachers))
	for _, t := range r.m.teachers {
		c := *t
		teachers = append(teachers, &c)
	}
	slices.SortFunc(teachers, func(a, b *model.Teacher) int { return int(a.ID - b.ID) })
	return teachers, nil
}

// ExistsByID は指定IDの講師が存在するかを返す。
func (r *MemoryTeacherRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	_, ok := r.m.teachers[id]
	return ok, nil
}

// Create は講師を作成する。
func (r *MemoryTeacherRepo) Create(ctx context.Context, t *model.Teacher) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	r.m.teacherIDCounter++
	t.ID = r.m.teacherIDCounter
	c := *t
	r.m.teachers[t.ID] = &c
	return nil
}

// --- SessionRepository ---

// MemorySessionRepo はMemoryStore上のセッションリポジトリ。
type MemorySessionRepo struct{ m *MemoryStore }

// FindByID は指定IDのセッションのコピーを返す。見つからない場合はnilを返す。
func (r *MemorySessionRepo) FindByID(ctx context.Context, id int64) (*model.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	s, ok := r.m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// FindAll は全セッションのコピーをID順に返す。
func (r *MemorySessionRepo) FindAll(ctx context.Context) ([]*model.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	sessions := make([]*model.Session, 0, len(r.m.sessions))
	for _, s := range r.m.sessions {
		sessions = append(sessions, s.Clone())
	}
	slices.SortFunc(sessions, func(a, b *model.Session) int { return int(a.ID - b.ID) })
	return sessions, nil
}

// ExistsByID は指定IDのセッションが存在するかを返す。
func (r *MemorySessionRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	_, ok := r.m.sessions[id]
	return ok, nil
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(ctx context.Context, s *model.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	r.m.sessionIDCounter++
	s.ID = r.m.sessionIDCounter
	s.Version = 1
	if s.Users == nil {
		s.Users = []int64{}
	}
	r.m.sessions[s.ID] = s.Clone()
	return nil
}

// Save はバージョンが一致する場合のみセッションを置き換える。
func (r *MemorySessionRepo) Save(ctx context.Context, s *model.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	stored, ok := r.m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != s.Version {
		return ErrVersionConflict
	}
	s.Version++
	r.m.sessions[s.ID] = s.Clone()
	return nil
}

// DeleteByID はセッションを削除する。存在しなくてもエラーにしない。
func (r *MemorySessionRepo) DeleteByID(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	delete(r.m.sessions, id)
	return nil
}

// DeleteDatedBefore はクラス日付がcutoffより前のセッションを削除する。
func (r *MemorySessionRepo) DeleteDatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var n int64
	for id, s := range r.m.sessions {
		if s.Date.Before(cutoff) {
			delete(r.m.sessions, id)
			n++
		}
	}
	return n, nil
}

// compile-time interface checks
var (
	_ UserRepository    = (*MemoryUserRepo)(nil)
	_ TeacherRepository = (*MemoryTeacherRepo)(nil)
	_ SessionRepository = (*MemorySessionRepo)(nil)
)
