// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/yogastudio/internal/model"
)

var (
	// ErrVersionConflict は楽観的排他制御で保存対象のバージョンが一致しなかったことを示す。
	// 呼び出し側は再読み込みしてリトライする。
	ErrVersionConflict = errors.New("version conflict")

	// ErrNotFound は更新・削除対象の行が存在しなかったことを示す。
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail はメールアドレスの一意制約違反を示す。
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByEmail はメールアドレスが登録済みかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create はユーザーを作成し、採番したIDをuser.IDに設定する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 参加者名簿（participate）の行はCASCADE削除される。存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id int64) error
}

// TeacherRepository は講師データの永続化インターフェース。
type TeacherRepository interface {
	// FindByID は指定IDの講師を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Teacher, error)

	// FindAll は全講師を返す。
	FindAll(ctx context.Context) ([]*model.Teacher, error)

	// ExistsByID は指定IDの講師が存在するかを返す。
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// Create は講師を作成し、採番したIDをteacher.IDに設定する。
	Create(ctx context.Context, teacher *model.Teacher) error
}

// SessionRepository はセッションと参加者名簿の永続化インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを名簿付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Session, error)

	// FindAll は全セッションを名簿付きで返す。順序は保証しない。
	FindAll(ctx context.Context) ([]*model.Session, error)

	// ExistsByID は指定IDのセッションが存在するかを返す。
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// Create はセッションと名簿を作成し、採番したIDとVersionを設定する。
	Create(ctx context.Context, session *model.Session) error

	// Save はセッションと名簿を全置換で保存する。
	// 保存済みのVersionがsession.Versionと一致する場合のみ書き込み、Versionを加算する。
	// 一致しない場合はErrVersionConflict、行が存在しない場合はErrNotFoundを返す。
	Save(ctx context.Context, session *model.Session) error

	// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
	// 講師と参加ユーザーは削除しない。
	DeleteByID(ctx context.Context, id int64) error

	// DeleteDatedBefore はクラス日付がcutoffより前のセッションを削除し、削除件数を返す。
	DeleteDatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
