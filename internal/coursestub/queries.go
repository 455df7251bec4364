package coursestub

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/cursory/internal/course"
)

// errNotFound は対象の行が存在しないことを表す。
var errNotFound = errors.New("見つかりません")

// errSlugConflict はスラッグが既に使われていることを表す。
var errSlugConflict = errors.New("スラッグが既に使われています")

// dbtx は *sql.DB と *sql.Tx の共通インターフェース。
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries はスタブのテーブルに対するクエリをまとめる。
type queries struct {
	db dbtx
}

// newQueries は新しいqueriesを生成する。
func newQueries(db dbtx) *queries {
	return &queries{db: db}
}

// withTx はトランザクションに束縛したqueriesを返す。
func (q *queries) withTx(tx *sql.Tx) *queries {
	return &queries{db: tx}
}

// userRow はusersテーブルの1行。
type userRow struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
}

// createUser はユーザーを登録する。
func (q *queries) createUser(ctx context.Context, u userRow) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash)
	return err
}

// getUserByEmail はメールアドレスでユーザーを取得する。
func (q *queries) getUserByEmail(ctx context.Context, email string) (userRow, error) {
	return q.scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash FROM users WHERE email = ?`, email))
}

// getUserByID はIDでユーザーを取得する。
func (q *queries) getUserByID(ctx context.Context, id string) (userRow, error) {
	return q.scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash FROM users WHERE id = ?`, id))
}

func (q *queries) scanUser(row *sql.Row) (userRow, error) {
	var u userRow
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return userRow{}, errNotFound
		}
		return userRow{}, err
	}
	return u, nil
}

// sessionRow はsessionsテーブルの1行。時刻はUNIX秒。
type sessionRow struct {
	ID           string
	UserID       string
	TokenHash    string
	ExpiresAt    int64
	LastActivity int64
}

// createSession はセッションを登録する。
func (q *queries) createSession(ctx context.Context, s sessionRow) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token_hash, expires_at, last_activity) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash, s.ExpiresAt, s.LastActivity)
	return err
}

// getSessionByTokenHash はリフレッシュトークンのハッシュでセッションを取得する。
func (q *queries) getSessionByTokenHash(ctx context.Context, hash string) (sessionRow, error) {
	var s sessionRow
	err := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, last_activity FROM sessions WHERE token_hash = ?`, hash).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.LastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sessionRow{}, errNotFound
		}
		return sessionRow{}, err
	}
	return s, nil
}

// deleteSession はセッションを削除する。
func (q *queries) deleteSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// deleteSessionByTokenHash はリフレッシュトークンのハッシュに一致するセッションを削除する。
func (q *queries) deleteSessionByTokenHash(ctx context.Context, hash string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, hash)
	return err
}

// lastActivity はユーザーの全セッションの中で最新の最終アクティビティを返す。セッションがなければ0。
func (q *queries) lastActivity(ctx context.Context, userID string) (int64, error) {
	var v sql.NullInt64
	if err := q.db.QueryRowContext(ctx,
		`SELECT MAX(last_activity) FROM sessions WHERE user_id = ?`, userID).Scan(&v); err != nil {
		return 0, err
	}
	return v.Int64, nil
}

// slugExists はスラッグが他のコースで使われているかを返す。excludeIDのコースは除く。
func (q *queries) slugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM courses WHERE slug = ? AND id <> ?`, slug, excludeID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// createCourse はコースを登録する。
func (q *queries) createCourse(ctx context.Context, c course.Course) error {
	tags, err := encodeList(c.Tags)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO courses (id, user_id, title, description, slug, tags, visibility) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.Description, c.Slug, tags, string(c.Visibility))
	return mapConstraintError(err)
}

// updateCourse はコースの編集可能な列を上書きする。
func (q *queries) updateCourse(ctx context.Context, c course.Course) error {
	tags, err := encodeList(c.Tags)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`UPDATE courses SET title = ?, description = ?, slug = ?, tags = ?, visibility = ?, updated_at = datetime('now') WHERE id = ?`,
		c.Title, c.Description, c.Slug, tags, string(c.Visibility), c.ID)
	return mapConstraintError(err)
}

// deleteCourse はコースと配下のモジュール・リソースを削除する。
func (q *queries) deleteCourse(ctx context.Context, id string) error {
	for _, stmt := range []string{
		`DELETE FROM modules WHERE course_id = ?`,
		`DELETE FROM resources WHERE course_id = ?`,
		`DELETE FROM courses WHERE id = ?`,
	} {
		if _, err := q.db.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return nil
}

const courseColumns = `id, user_id, title, description, slug, tags, visibility`

// getCourse はIDでコースを取得する。モジュールとリソースは含まない。
func (q *queries) getCourse(ctx context.Context, id string) (course.Course, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	c, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return course.Course{}, errNotFound
	}
	return c, err
}

// listCoursesByUser はユーザーが所有するコースを作成順に返す。
func (q *queries) listCoursesByUser(ctx context.Context, userID string) ([]course.Course, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := []course.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// scanner は *sql.Row と *sql.Rows の共通インターフェース。
type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(s scanner) (course.Course, error) {
	var (
		c          course.Course
		tags       string
		visibility string
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.Slug, &tags, &visibility); err != nil {
		return course.Course{}, err
	}
	c.Visibility = course.Visibility(visibility)
	list, err := decodeList(tags)
	if err != nil {
		return course.Course{}, fmt.Errorf("タグのデコードに失敗: %w", err)
	}
	c.Tags = list
	return c, nil
}

const moduleColumns = `id, course_id, title, description, position, objectives`

// createModule はモジュールを登録する。
func (q *queries) createModule(ctx context.Context, m course.Module) error {
	objectives, err := encodeList(m.Objectives)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO modules (`+moduleColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.CourseID, m.Title, m.Description, m.Order, objectives)
	return err
}

// updateModule はモジュールの編集可能な列を上書きする。
func (q *queries) updateModule(ctx context.Context, m course.Module) error {
	objectives, err := encodeList(m.Objectives)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`UPDATE modules SET title = ?, description = ?, position = ?, objectives = ?, updated_at = datetime('now') WHERE id = ?`,
		m.Title, m.Description, m.Order, objectives, m.ID)
	return err
}

// deleteModule はモジュールを削除する。
func (q *queries) deleteModule(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM modules WHERE id = ?`, id)
	return err
}

// getModule はコース内のモジュールを取得する。
func (q *queries) getModule(ctx context.Context, courseID, id string) (course.Module, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE course_id = ? AND id = ?`, courseID, id)
	m, err := scanModule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return course.Module{}, errNotFound
	}
	return m, err
}

// listModules はコースのモジュールを順序通りに返す。
func (q *queries) listModules(ctx context.Context, courseID string) ([]course.Module, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE course_id = ? ORDER BY position, rowid`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	modules := []course.Module{}
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

func scanModule(s scanner) (course.Module, error) {
	var (
		m          course.Module
		objectives string
	)
	if err := s.Scan(&m.ID, &m.CourseID, &m.Title, &m.Description, &m.Order, &objectives); err != nil {
		return course.Module{}, err
	}
	list, err := decodeList(objectives)
	if err != nil {
		return course.Module{}, fmt.Errorf("学習目標のデコードに失敗: %w", err)
	}
	m.Objectives = list
	return m, nil
}

const resourceColumns = `id, course_id, title, description, type, url`

// createResource はリソースを登録する。
func (q *queries) createResource(ctx context.Context, r course.Resource) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO resources (`+resourceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.CourseID, r.Title, r.Description, string(r.Type), r.URL)
	return err
}

// updateResource はリソースの編集可能な列を上書きする。
func (q *queries) updateResource(ctx context.Context, r course.Resource) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE resources SET title = ?, description = ?, type = ?, url = ?, updated_at = datetime('now') WHERE id = ?`,
		r.Title, r.Description, string(r.Type), r.URL, r.ID)
	return err
}

// deleteResource はリソースを削除する。
func (q *queries) deleteResource(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	return err
}

// getResource はコース内のリソースを取得する。
func (q *queries) getResource(ctx context.Context, courseID, id string) (course.Resource, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE course_id = ? AND id = ?`, courseID, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return course.Resource{}, errNotFound
	}
	return r, err
}

// listResources はコースのリソースを作成順に返す。
func (q *queries) listResources(ctx context.Context, courseID string) ([]course.Resource, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE course_id = ? ORDER BY created_at, rowid`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := []course.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

func scanResource(s scanner) (course.Resource, error) {
	var (
		r   course.Resource
		typ string
	)
	if err := s.Scan(&r.ID, &r.CourseID, &r.Title, &r.Description, &typ, &r.URL); err != nil {
		return course.Resource{}, err
	}
	r.Type = course.ResourceType(typ)
	return r, nil
}

// encodeList は文字列スライスをJSON配列の文字列にする。nilは空配列として保存する。
func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("リストのエンコードに失敗: %w", err)
	}
	return string(b), nil
}

// decodeList はJSON配列の文字列を文字列スライスに戻す。
func decodeList(s string) ([]string, error) {
	list := []string{}
	if s == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// mapConstraintError はスラッグのUNIQUE制約違反をerrSlugConflictに変換する。
func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed: courses.slug") {
		return errSlugConflict
	}
	return err
}
