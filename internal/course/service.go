package course

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nao1215/cursory/pkg/httpclient"
)

// DefaultGenerateTimeout はAI生成リクエストのタイムアウト。
const DefaultGenerateTimeout = 120 * time.Second

// Requester はサービスが使うHTTPクライアント。*httpclient.Client が満たす。
type Requester interface {
	GetJSON(ctx context.Context, path string, result any, opts ...httpclient.RequestOption) error
	PostJSON(ctx context.Context, path string, body, result any, opts ...httpclient.RequestOption) error
	PutJSON(ctx context.Context, path string, body, result any, opts ...httpclient.RequestOption) error
	DeleteJSON(ctx context.Context, path string, result any, opts ...httpclient.RequestOption) error
}

// coursesResponse は GET /courses のレスポンス。
type coursesResponse struct {
	Courses []Course `json:"courses"`
}

// modulesResponse はモジュールの配列を返すレスポンス。
type modulesResponse struct {
	Modules []Module `json:"modules"`
}

// generatedModulesResponse はモジュール生成のレスポンス。
type generatedModulesResponse struct {
	Modules []GeneratedModule `json:"modules"`
}

func coursePath(courseID string) string {
	return "/courses/" + url.PathEscape(courseID)
}

func modulePath(courseID, moduleID string) string {
	return coursePath(courseID) + "/modules/" + url.PathEscape(moduleID)
}

func resourcePath(courseID, resourceID string) string {
	return coursePath(courseID) + "/resources/" + url.PathEscape(resourceID)
}

// CourseService はコースAPIを呼び出すサービス。
type CourseService struct {
	// client はHTTPクライアント。
	client Requester
	// generateTimeout はAI生成のタイムアウト。
	generateTimeout time.Duration
}

// NewCourseService は新しいCourseServiceを生成する。generateTimeoutが0以下の場合は既定値を使う。
func NewCourseService(client Requester, generateTimeout time.Duration) *CourseService {
	if generateTimeout <= 0 {
		generateTimeout = DefaultGenerateTimeout
	}
	return &CourseService{client: client, generateTimeout: generateTimeout}
}

// List は認証ユーザーのコース一覧を取得する。
func (s *CourseService) List(ctx context.Context) ([]Course, error) {
	var resp coursesResponse
	if err := s.client.GetJSON(ctx, "/courses", &resp); err != nil {
		return nil, fmt.Errorf("コース一覧の取得に失敗: %w", err)
	}
	if resp.Courses == nil {
		resp.Courses = []Course{}
	}
	return resp.Courses, nil
}

// Get はモジュールとリソースを含むコースを取得する。
func (s *CourseService) Get(ctx context.Context, id string) (*Course, error) {
	var c Course
	if err := s.client.GetJSON(ctx, coursePath(id), &c); err != nil {
		return nil, fmt.Errorf("コースの取得に失敗: %w", err)
	}
	return &c, nil
}

// Create はコースを作成する。入力は送信前に正規化・検証する。
func (s *CourseService) Create(ctx context.Context, data CreateCourseData) (*Course, error) {
	data.Normalize()
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var c Course
	if err := s.client.PostJSON(ctx, "/courses", data, &c); err != nil {
		return nil, fmt.Errorf("コースの作成に失敗: %w", err)
	}
	return &c, nil
}

// Update はコースを部分更新する。
func (s *CourseService) Update(ctx context.Context, id string, data UpdateCourseData) (*Course, error) {
	data.Normalize()
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var c Course
	if err := s.client.PutJSON(ctx, coursePath(id), data, &c); err != nil {
		return nil, fmt.Errorf("コースの更新に失敗: %w", err)
	}
	return &c, nil
}

// Delete はコースとそのモジュール・リソースを削除する。
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.client.DeleteJSON(ctx, coursePath(id), nil); err != nil {
		return fmt.Errorf("コースの削除に失敗: %w", err)
	}
	return nil
}

// Generate はAIでコースの下書きを生成する。戻り値は作成フォームの初期値として使う。
func (s *CourseService) Generate(ctx context.Context, data GenerateCourseData) (*CreateCourseData, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var draft CreateCourseData
	if err := s.client.PostJSON(ctx, "/courses/generate", data, &draft,
		httpclient.WithRequestTimeout(s.generateTimeout)); err != nil {
		return nil, fmt.Errorf("コースの生成に失敗: %w", err)
	}
	draft.Normalize()
	return &draft, nil
}

// ModuleService はモジュールAPIを呼び出すサービス。
type ModuleService struct {
	// client はHTTPクライアント。
	client Requester
	// generateTimeout はAI生成のタイムアウト。
	generateTimeout time.Duration
}

// NewModuleService は新しいModuleServiceを生成する。generateTimeoutが0以下の場合は既定値を使う。
func NewModuleService(client Requester, generateTimeout time.Duration) *ModuleService {
	if generateTimeout <= 0 {
		generateTimeout = DefaultGenerateTimeout
	}
	return &ModuleService{client: client, generateTimeout: generateTimeout}
}

// Create はコースにモジュールを作成する。
func (s *ModuleService) Create(ctx context.Context, courseID string, data CreateModuleData) (*Module, error) {
	data.Normalize()
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var m Module
	if err := s.client.PostJSON(ctx, coursePath(courseID)+"/modules", data, &m); err != nil {
		return nil, fmt.Errorf("モジュールの作成に失敗: %w", err)
	}
	return &m, nil
}

// Get はモジュールを取得する。
func (s *ModuleService) Get(ctx context.Context, courseID, moduleID string) (*Module, error) {
	var m Module
	if err := s.client.GetJSON(ctx, modulePath(courseID, moduleID), &m); err != nil {
		return nil, fmt.Errorf("モジュールの取得に失敗: %w", err)
	}
	return &m, nil
}

// Update はモジュールを部分更新する。
func (s *ModuleService) Update(ctx context.Context, courseID, moduleID string, data UpdateModuleData) (*Module, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var m Module
	if err := s.client.PutJSON(ctx, modulePath(courseID, moduleID), data, &m); err != nil {
		return nil, fmt.Errorf("モジュールの更新に失敗: %w", err)
	}
	return &m, nil
}

// Delete はモジュールを削除する。
func (s *ModuleService) Delete(ctx context.Context, courseID, moduleID string) error {
	if err := s.client.DeleteJSON(ctx, modulePath(courseID, moduleID), nil); err != nil {
		return fmt.Errorf("モジュールの削除に失敗: %w", err)
	}
	return nil
}

// Generate はAIでモジュール案を生成する。生成結果は保存されない。
func (s *ModuleService) Generate(ctx context.Context, courseID string, data GenerateModulesData) ([]GeneratedModule, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var resp generatedModulesResponse
	if err := s.client.PostJSON(ctx, coursePath(courseID)+"/modules/generate", data, &resp,
		httpclient.WithRequestTimeout(s.generateTimeout)); err != nil {
		return nil, fmt.Errorf("モジュールの生成に失敗: %w", err)
	}
	return resp.Modules, nil
}

// CreateBulk は複数のモジュールを1回のリクエストで作成する。
func (s *ModuleService) CreateBulk(ctx context.Context, courseID string, modules []CreateModuleData) ([]Module, error) {
	data := BulkCreateModulesData{Modules: modules}
	data.Normalize()
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var resp modulesResponse
	if err := s.client.PostJSON(ctx, coursePath(courseID)+"/modules/bulk", data, &resp); err != nil {
		return nil, fmt.Errorf("モジュールの一括作成に失敗: %w", err)
	}
	return resp.Modules, nil
}

// ResourceService はリソースAPIを呼び出すサービス。
type ResourceService struct {
	// client はHTTPクライアント。
	client Requester
}

// NewResourceService は新しいResourceServiceを生成する。
func NewResourceService(client Requester) *ResourceService {
	return &ResourceService{client: client}
}

// Create はコースにリソースを作成する。
func (s *ResourceService) Create(ctx context.Context, courseID string, data CreateResourceData) (*Resource, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var r Resource
	if err := s.client.PostJSON(ctx, coursePath(courseID)+"/resources", data, &r); err != nil {
		return nil, fmt.Errorf("リソースの作成に失敗: %w", err)
	}
	return &r, nil
}

// Update はリソースを部分更新する。
func (s *ResourceService) Update(ctx context.Context, courseID, resourceID string, data UpdateResourceData) (*Resource, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var r Resource
	if err := s.client.PutJSON(ctx, resourcePath(courseID, resourceID), data, &r); err != nil {
		return nil, fmt.Errorf("リソースの更新に失敗: %w", err)
	}
	return &r, nil
}

// Delete はリソースを削除する。
func (s *ResourceService) Delete(ctx context.Context, courseID, resourceID string) error {
	if err := s.client.DeleteJSON(ctx, resourcePath(courseID, resourceID), nil); err != nil {
		return fmt.Errorf("リソースの削除に失敗: %w", err)
	}
	return nil
}
