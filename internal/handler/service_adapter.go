package handler

import (
	"context"

	"github.com/hitoshi/yogastudio/internal/auth"
	"github.com/hitoshi/yogastudio/internal/session"
	"github.com/hitoshi/yogastudio/internal/teacher"
	"github.com/hitoshi/yogastudio/internal/user"
)

// HealthCheckerFunc は関数をHealthCheckerに適合させるアダプタ。
type HealthCheckerFunc func(ctx context.Context) error

// Check はf(ctx)を呼ぶ。
func (f HealthCheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// PingerAdapter はコンテキストを取らないPing（MemoryStore等）をHealthCheckerに適合させる。
type PingerAdapter struct {
	Ping func() error
}

// Check はPingを呼ぶ。
func (a PingerAdapter) Check(context.Context) error {
	return a.Ping()
}

// --- compile-time interface checks ---

var _ AuthServiceInterface = (*auth.Service)(nil)
var _ SessionServiceInterface = (*session.Service)(nil)
var _ TeacherServiceInterface = (*teacher.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
var _ HealthChecker = HealthCheckerFunc(nil)
var _ HealthChecker = PingerAdapter{}
