package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/yogastudio/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// 参加者名簿はparticipateテーブルに(session_id, user_id)の主キーで保持し、
// 同一ユーザーの重複をスキーマでも禁止する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

const sessionColumns = `id, name, date, description, teacher_id, version, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	s := &model.Session{Users: []int64{}}
	var teacherID sql.NullInt64
	if err := row.Scan(&s.ID, &s.Name, &s.Date, &s.Description, &teacherID,
		&s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if teacherID.Valid {
		id := teacherID.Int64
		s.TeacherID = &id
	}
	return s, nil
}

// FindByID は指定IDのセッションを名簿付きで取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id int64) (*model.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session by ID: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM participate WHERE session_id = $1 ORDER BY user_id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		s.Users = append(s.Users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return s, nil
}

// FindAll は全セッションを名簿付きで返す。
func (r *PostgresSessionRepo) FindAll(ctx context.Context) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.Session{}
	byID := make(map[int64]*model.Session)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	prow, err := r.db.QueryContext(ctx,
		`SELECT session_id, user_id FROM participate ORDER BY session_id ASC, user_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer prow.Close()

	for prow.Next() {
		var sessionID, userID int64
		if err := prow.Scan(&sessionID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		// 一覧取得後に作成されたセッションの行は無視する
		if s, ok := byID[sessionID]; ok {
			s.Users = append(s.Users, userID)
		}
	}
	if err := prow.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return sessions, nil
}

// ExistsByID は指定IDのセッションが存在するかを返す。
func (r *PostgresSessionRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return exists, nil
}

// Create はセッションと名簿を同一トランザクションで作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, s *model.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO sessions (name, date, description, teacher_id, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 1, $5, $6)
		 RETURNING id, version`,
		s.Name, s.Date, s.Description, nullableID(s.TeacherID), s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID, &s.Version)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := insertParticipants(ctx, tx, s.ID, s.Users); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Save はセッションと名簿を全置換で保存する。
// UPDATE ... WHERE version = $n による比較交換で、読み込み後に他のリクエストが
// 書き込んでいた場合はErrVersionConflictを返す。
func (r *PostgresSessionRepo) Save(ctx context.Context, s *model.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET name = $3, date = $4, description = $5, teacher_id = $6,
		     created_at = $7, updated_at = $8, version = version + 1
		 WHERE id = $1 AND version = $2`,
		s.ID, s.Version, s.Name, s.Date, s.Description, nullableID(s.TeacherID), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`, s.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM participate WHERE session_id = $1`, s.ID,
	); err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, s.ID, s.Users); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.Version++
	return nil
}

// DeleteByID は指定IDのセッションを削除する。participateの行はCASCADE削除される。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteDatedBefore はクラス日付がcutoffより前のセッションを削除する。
func (r *PostgresSessionRepo) DeleteDatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE date < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete past sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, sessionID int64, users []int64) error {
	if len(users) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO participate (session_id, user_id)
		 SELECT $1, unnest($2::bigint[])`,
		sessionID, pq.Array(users),
	)
	if err != nil {
		return fmt.Errorf("failed to insert participants: %w", err)
	}
	return nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
