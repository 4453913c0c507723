// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はAPIErrorの失敗種別を表す。
// 境界層（handler）はこの種別だけを見てHTTPステータスを決める。
type ErrorKind string

const (
	// KindBadRequest は入力不正または前提条件違反を表す。
	KindBadRequest ErrorKind = "bad_request"
	// KindNotFound は参照先エンティティが存在しないことを表す。
	KindNotFound ErrorKind = "not_found"
	// KindUnauthorized は未認証・認証失敗・他アカウントへの操作を表す。
	KindUnauthorized ErrorKind = "unauthorized"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。内部の詳細（SQLエラー等）は含めない。
type APIError struct {
	Kind     ErrorKind // 失敗種別
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, session, system
	Action   string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidID            = "INVALID_ID"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeSessionNotFound      = "SESSION_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeTeacherNotFound      = "TEACHER_NOT_FOUND"
	ErrCodeUnknownTeacher       = "UNKNOWN_TEACHER"
	ErrCodeUnknownParticipant   = "UNKNOWN_PARTICIPANT"
	ErrCodeDuplicateParticipant = "DUPLICATE_PARTICIPANT"
	ErrCodeAlreadyParticipating = "ALREADY_PARTICIPATING"
	ErrCodeEmailTaken           = "EMAIL_ALREADY_TAKEN"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbiddenAccount     = "NOT_OWN_ACCOUNT"
)

// KindOf はerrに含まれるAPIErrorの種別を返す。
// APIErrorを含まない場合（ストア障害など）は空文字列を返す。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsKind はerrが指定種別のAPIErrorかどうかを返す。
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// NewInvalidIDError は識別子が正の整数として解釈できない場合のエラーを生成する。
func NewInvalidIDError(raw string) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("無効なIDです: %s", raw),
		Category: "validation",
		Action:   "IDには正の整数を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewValidationError は入力項目のバリデーションに失敗した場合のエラーを生成する。
func NewValidationError(field string) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が不正です: %s", field),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewSessionNotFoundError はセッションが見つからない場合のエラーを生成する。
func NewSessionNotFoundError(id int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %d", id),
		Category: "session",
		Action:   "セッションIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(id int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %d", id),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewTeacherNotFoundError は講師が見つからない場合のエラーを生成する。
func NewTeacherNotFoundError(id int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeTeacherNotFound,
		Message:  fmt.Sprintf("指定された講師が見つかりません: %d", id),
		Category: "session",
		Action:   "講師IDを確認してください。",
	}
}

// NewUnknownTeacherError はセッション入力の講師参照が解決できない場合のエラーを生成する。
// 参照先の不在だが、入力の前提条件違反としてBadRequestで扱う。
func NewUnknownTeacherError(id int64) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeUnknownTeacher,
		Message:  fmt.Sprintf("存在しない講師が指定されました: %d", id),
		Category: "validation",
		Action:   "登録済みの講師を選択してください。",
	}
}

// NewUnknownParticipantError はセッション入力の参加者一覧に存在しないユーザーが含まれる場合のエラーを生成する。
func NewUnknownParticipantError(id int64) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeUnknownParticipant,
		Message:  fmt.Sprintf("存在しないユーザーが参加者に含まれています: %d", id),
		Category: "validation",
		Action:   "参加者一覧を確認してください。",
	}
}

// NewDuplicateParticipantError はセッション入力の参加者一覧に同じユーザーが重複している場合のエラーを生成する。
func NewDuplicateParticipantError(id int64) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeDuplicateParticipant,
		Message:  fmt.Sprintf("参加者一覧にユーザーが重複しています: %d", id),
		Category: "validation",
		Action:   "参加者一覧から重複を取り除いてください。",
	}
}

// NewAlreadyParticipatingError は既に参加済みのセッションに再度参加しようとした場合のエラーを生成する。
func NewAlreadyParticipatingError() *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeAlreadyParticipating,
		Message:  "このセッションには既に参加しています。",
		Category: "session",
		Action:   "セッション詳細から参加状況を確認してください。",
	}
}

// NewEmailTakenError は登録済みのメールアドレスで登録しようとした場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewAuthenticationFailedError はログイン資格情報が一致しない場合のエラーを生成する。
// メールアドレスの存在有無は区別しない。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Kind:     KindUnauthorized,
		Code:     ErrCodeAuthenticationFailed,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUnauthorizedError はトークンが無い・無効・期限切れの場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Kind:     KindUnauthorized,
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewNotOwnAccountError は他人のアカウントを操作しようとした場合のエラーを生成する。
func NewNotOwnAccountError() *APIError {
	return &APIError{
		Kind:     KindUnauthorized,
		Code:     ErrCodeForbiddenAccount,
		Message:  "自分以外のアカウントは操作できません。",
		Category: "auth",
		Action:   "ログイン中のアカウントを確認してください。",
	}
}
