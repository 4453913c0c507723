package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/yogastudio/internal/model"
)

// PostgresTeacherRepo はPostgreSQLを使用した講師リポジトリ。
type PostgresTeacherRepo struct {
	db *sql.DB
}

// NewPostgresTeacherRepo はPostgresTeacherRepoを生成する。
func NewPostgresTeacherRepo(db *sql.DB) *PostgresTeacherRepo {
	return &PostgresTeacherRepo{db: db}
}

// FindByID は指定IDの講師を取得する。見つからない場合はnilを返す。
func (r *PostgresTeacherRepo) FindByID(ctx context.Context, id int64) (*model.Teacher, error) {
	t := &model.Teacher{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, created_at, updated_at FROM teachers WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.FirstName, &t.LastName, &t.CreatedAt, &t.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("講師の取得に失敗しました: %w", err)
	}
	return t, nil
}

// FindAll は全講師をID順に返す。
func (r *PostgresTeacherRepo) FindAll(ctx context.Context) ([]*model.Teacher, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, created_at, updated_at FROM teachers ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("講師一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	teachers := []*model.Teacher{}
	for rows.Next() {
		t := &model.Teacher{}
		if err := rows.Scan(&t.ID, &t.FirstName, &t.LastName, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("講師行の読み取りに失敗しました: %w", err)
		}
		teachers = append(teachers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("講師一覧の走査に失敗しました: %w", err)
	}
	return teachers, nil
}

// ExistsByID は指定IDの講師が存在するかを返す。
func (r *PostgresTeacherRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM teachers WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("講師の存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create は講師を作成し、採番したIDを設定する。
func (r *PostgresTeacherRepo) Create(ctx context.Context, t *model.Teacher) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO teachers (first_name, last_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		t.FirstName, t.LastName, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("講師の作成に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TeacherRepository = (*PostgresTeacherRepo)(nil)
