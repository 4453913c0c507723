// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 同一性はIDのみで判定する。Passwordにはハッシュのみを保持し、レスポンスには含めない。
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Password  string
	Admin     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Teacher はヨガ講師を表す。
type Teacher struct {
	ID        int64
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Principal はトークン検証済みのリクエスト主体を表す。
type Principal struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Admin     bool
}

// PrincipalFromUser はUserからPrincipalを生成する。
func PrincipalFromUser(u *User) Principal {
	return Principal{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Admin:     u.Admin,
	}
}
