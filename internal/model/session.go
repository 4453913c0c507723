package model

import (
	"slices"
	"time"
)

// Session はヨガクラスのセッションを表す。
// 参加者名簿（Users）はセッションが所有し、ユーザーIDの集合として扱う。
// Versionは楽観的排他制御に使用し、保存のたびにストアが加算する。
type Session struct {
	ID          int64
	Name        string
	Date        time.Time
	Description string
	TeacherID   *int64
	Users       []int64
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionInput はセッション作成・更新の入力値を表す。
// 更新は全置換であり、未指定の項目は空になる。
type SessionInput struct {
	Name        string
	Date        time.Time
	Description string
	TeacherID   *int64
	Users       []int64
}

// HasParticipant は指定ユーザーが名簿に含まれるかを返す。
func (s *Session) HasParticipant(userID int64) bool {
	return slices.Contains(s.Users, userID)
}

// AddParticipant は名簿の末尾にユーザーを追加する。
// 重複チェックは呼び出し側で行う。
func (s *Session) AddParticipant(userID int64) {
	s.Users = append(s.Users, userID)
}

// RemoveParticipant は名簿から指定ユーザーを取り除く。
// 含まれていない場合は何もしない。
func (s *Session) RemoveParticipant(userID int64) {
	s.Users = slices.DeleteFunc(s.Users, func(id int64) bool { return id == userID })
	if s.Users == nil {
		s.Users = []int64{}
	}
}

// Clone はセッションのディープコピーを返す。
func (s *Session) Clone() *Session {
	c := *s
	c.Users = slices.Clone(s.Users)
	if c.Users == nil {
		c.Users = []int64{}
	}
	if s.TeacherID != nil {
		id := *s.TeacherID
		c.TeacherID = &id
	}
	return &c
}
