package course

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/cursory/pkg/httpclient"
	"github.com/nao1215/cursory/pkg/validation"
)

// recordedRequest はテストサーバーが受け取ったリクエスト。
type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// recorder はリクエストを記録し、固定のレスポンスを返すテストサーバー。
type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	response any
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		json.Unmarshal(raw, &body)
	}
	rec.mu.Lock()
	rec.requests = append(rec.requests, recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Body: body})
	rec.mu.Unlock()

	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if rec.response != nil {
		json.NewEncoder(w).Encode(rec.response)
	}
}

func (rec *recorder) last(t *testing.T) recordedRequest {
	t.Helper()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.requests) == 0 {
		t.Fatal("リクエストが送信されていない")
	}
	return rec.requests[len(rec.requests)-1]
}

func (rec *recorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.requests)
}

// newTestClient はrecorderに接続するHTTPクライアントを生成する。
func newTestClient(t *testing.T, rec *recorder) *httpclient.Client {
	t.Helper()

	ts := httptest.NewServer(rec)
	t.Cleanup(ts.Close)
	client, err := httpclient.New(ts.URL)
	if err != nil {
		t.Fatalf("httpclient.New()でエラーが発生: %v", err)
	}
	t.Cleanup(client.CloseIdleConnections)
	return client
}

// TestCourseService はコースAPIの呼び出しを検証する。
func TestCourseService(t *testing.T) {
	t.Parallel()

	t.Run("Listはcoursesを返すこと", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{response: map[string]any{
			"courses": []Course{{ID: "c1", Title: "Go入門", Slug: "go-basics", Visibility: VisibilityPublic}},
		}}
		svc := NewCourseService(newTestClient(t, rec), 0)

		courses, err := svc.List(context.Background())
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if len(courses) != 1 || courses[0].ID != "c1" {
			t.Errorf("courses = %+v", courses)
		}
		if got := rec.last(t); got.Method != http.MethodGet || got.Path != "/courses" {
			t.Errorf("request = %s %s", got.Method, got.Path)
		}
	})

	t.Run("Listでcoursesがない場合は空配列を返すこと", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{response: map[string]any{}}
		svc := NewCourseService(newTestClient(t, rec), 0)

		courses, err := svc.List(context.Background())
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if courses == nil || len(courses) != 0 {
			t.Errorf("courses = %#v", courses)
		}
	})

	t.Run("GetはIDをエスケープしてモジュールとリソースを含むコースを返すこと", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{response: Course{
			ID:        "c/1",
			Modules:   []Module{{ID: "m1", Order: 1}},
			Resources: []Resource{{ID: "r1", Type: ResourceTypeVideo}},
		}}
		svc := NewCourseService(newTestClient(t, rec), 0)

		c, err := svc.Get(context.Background(), "c/1")
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if len(c.Modules) != 1 || len(c.Resources) != 1 {
			t.Errorf("course = %+v", c)
		}
		if got := rec.last(t).Path; got != "/courses/c%2F1" {
			t.Errorf("path = %q", got)
		}
	})

	t.Run("Createはタグを正規化して送信すること", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{status: http.StatusCreated, response: Course{ID: "c1"}}
		svc := NewCourseService(newTestClient(t, rec), 0)

		_, err := svc.Create(context.Background(), CreateCourseData{
			Title:       "Go入門",
			Description: "Goの基礎",
			Slug:        "go-basics",
			Visibility:  VisibilityPrivate,
			Tags:        []string{" Go ", "go"},
		})
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}

		got := rec.last(t)
		if got.Method != http.MethodPost || got.Path != "/courses" {
			t.Errorf("request = %s %s", got.Method, got.Path)
		}
		tags, _ := got.Body["tags"].([]any)
		if len(tags) != 1 || tags[0] != "go" {
			t.Errorf("tags = %v", got.Body["tags"])
		}
	})

	t.Run("Createで入力が不正な場合はリクエストを送信しないこと", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		svc := NewCourseService(newTestClient(t, rec), 0)

		_, err := svc.Create(context.Background(), CreateCourseData{Title: "Go入門", Slug: "Go Basics"})
		var verr *validation.Error
		if !errors.As(err, &verr) {
			t.Fatalf("検証エラーが返るべきだが %v が返った", err)
		}
		if rec.count() != 0 {
			t.Errorf("requests = %d, want 0", rec.count())
		}
	})

	t.Run("Createでスラッグ重複の409はValidationとして返ること", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{status: http.StatusConflict, response: map[string]string{"error": "Slug already exists"}}
		svc := NewCourseService(newTestClient(t, rec), 0)

		_, err := svc.Create(context.Background(), CreateCourseData{
			Title: "Go入門", Description: "Goの基礎", Slug: "go-basics", Visibility: VisibilityPublic,
		})
		if !errors.Is(err, httpclient.ErrValidation) {
			t.Fatalf("想定外のエラー: %v", err)
		}
		if httpclient.StatusCode(err) != http.StatusConflict {
			t.Errorf("StatusCode = %d", httpclient.StatusCode(err))
		}
	})

	t.Run("Updateは指定したフィールドだけを送信すること", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{response: Course{ID: "c1", Title: "新タイトル"}}
		svc := NewCourseService(newTestClient(t, rec), 0)

		if _, err := svc.Update(context.Background(), "c1", UpdateCourseData{Title: ptr("新タイトル")}); err != nil {
			t.Fatalf("Update()でエラーが発生: %v", err)
		}

		got := rec.last(t)
		if got.Method != http.MethodPut || got.Path != "/courses/c1" {
			t.Errorf("request = %s %s", got.Method, got.Path)
		}
		if len(got.Body) != 1 || got.Body["title"] != "新タイトル" {
			t.Errorf("body = %v", got.Body)
		}
	})

	t.Run("Deleteはコースを削除すること", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{status: http.StatusNoContent}
		svc := NewCourseService(newTestClient(t, rec), 0)

		if err := svc.Delete(context.Background(), "c1"); err != nil {
			t.Fatalf("Delete()でエラーが発生: %v", err)
		}
		if got := rec.last(t); got.Method != http.MethodDelete || got.Path != "/courses/c1" {
			t.Errorf("request = %s %s", got.Method, got.Path)
		}
	})

	t.Run("Generateは下書きを返すこと", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{response: CreateCourseData{
			Title: "Python入門", Description: "d", Slug: "python-basics", Visibility: VisibilityPrivate,
			Tags: []string{"Python"},
		}}
		svc := NewCourseService(newTestClient(t, rec), time.Minute)

		draft, err := svc.Generate(context.Background(), GenerateCourseData{
			Description: "Pythonを教えたい", Objective: "Webアプリを作れる", Difficulty: "beginner",
		})
		if err != nil {
			t.Fatalf("Generate()でエラーが発生: %v", err)
		}
		if draft.Slug != "python-basics" || draft.Tags[0] != "python" {
			t.Errorf("draft = %+v", draft)
		}
		if got := rec.last(t).Path; got != "/courses/generate" {
			t.Errorf("path = %q", got)
		}
	})

	t.Run("Generateで難易度が不正な場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		svc := NewCourseService(newTestClient(t, rec), 0)

		_, err := svc.Generate(context.Background(), GenerateCourseData{Description: "a", Objective: "b", Difficulty: "expert"})
		var verr *validation.Error
		if !errors.As(err, &verr) {
			t.Fatalf("検証エラーが返るべきだが %v が返った", err)
		}
	})

	t.Run("既定の生成タイムアウトは120秒であること", func(t *testing.T) {
		t.Parallel()

		if got := NewCourseService(nil, 0).generateTimeout; got != 120*time.Second {
			t.Errorf("generateTimeout = %v", got)
		}
		if got := NewModuleService(nil, -1).generateTimeout; got != DefaultGenerateTimeout {
			t.Errorf("generateTimeout = %v", got)
		}
	})
}

// TestModuleService はモジュールAPIの呼び出しを検証する。
func TestModuleService(t *testing.T) {
	t.Parallel()

	t.Run("Createは学習目標を空配列で補って送信すること", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{status: http.StatusCreated, response: Module{ID: "m1", CourseID: "c1"}}
		svc := NewModuleService(newTestClient(t, rec), 0)

		m, err := svc.Create(context.Background(), "c1", CreateModuleData{Title: "変数", Description: "変数と型", Order: 1})
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if m.ID != "m1" {
			t.Errorf("module = %+v", m)
		}
		got := rec.last(t)
		if got.Path != "/courses/c1/modules" {
			t.Errorf("path = %q", got.Path)
		}
		if objectives, ok := got.Body["objectives"].([]any); !ok || len(objectives) != 0 {
			t.Errorf("objectives = %v", got.Body["objectives"])
		}
	})

	t.Run("Get・Update・Deleteはモジュールのパスを使うこと", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{response: Module{ID: "m1"}}
		svc := NewModuleService(newTestClient(t, rec), 0)
		ctx := context.Background()

		if _, err := svc.Get(ctx, "c1", "m1"); err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got := rec.last(t); got.Method != http.MethodGet || got.Path != "/courses/c1/modules/m1" {
			t.Errorf("request = %s %s", got.Method, got.Path)
		}

		if _, err := svc.Update(ctx, "c1", "m1", UpdateModuleData{Order: ptr(2)}); err != nil {
			t.Fatalf("Update()でエラーが発生: %v", err)
		}
		if got := rec.last(t); got.Method != http.MethodPut || got.Body["order"] != float64(2) {
			t.Errorf("request = %s %v", got.Method, got.Body)
		}

		if err := svc.Delete(ctx, "c1", "m1"); err != nil {
			t.Fatalf("Delete()でエラーが発生: %v", err)
		}
		if got := rec.last(t); got.Method != http.MethodDelete || got.Path != "/courses/c1/modules/m1" {
			t.Errorf("request = %s %s", got.Method, got.Path)
		}
	})

	t.Run("Generateは生成されたモジュール案を返すこと", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{response: map[string]any{"modules": []GeneratedModule{
			{Title: "基礎", Description: "d", Order: 1},
			{Title: "応用", Description: "d", Order: 2},
		}}}
		svc := NewModuleService(newTestClient(t, rec), 0)

		modules, err := svc.Generate(context.Background(), "c1", GenerateModulesData{
			SuggestedTopics: "Go", NumberOfModules: 2, Approach: "実践",
		})
		if err != nil {
			t.Fatalf("Generate()でエラーが発生: %v", err)
		}
		if len(modules) != 2 || modules[1].Title != "応用" {
			t.Errorf("modules = %+v", modules)
		}
		got := rec.last(t)
		if got.Path != "/courses/c1/modules/generate" || got.Body["numberOfModules"] != float64(2) {
			t.Errorf("request = %s %v", got.Path, got.Body)
		}
	})

	t.Run("CreateBulkは一括作成のパスに送信すること", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{status: http.StatusCreated, response: map[string]any{"modules": []Module{{ID: "m1"}, {ID: "m2"}}}}
		svc := NewModuleService(newTestClient(t, rec), 0)

		created, err := svc.CreateBulk(context.Background(), "c1", []CreateModuleData{
			{Title: "a", Description: "b", Order: 1},
			{Title: "c", Description: "d", Order: 2},
		})
		if err != nil {
			t.Fatalf("CreateBulk()でエラーが発生: %v", err)
		}
		if len(created) != 2 {
			t.Errorf("created = %+v", created)
		}
		got := rec.last(t)
		if got.Path != "/courses/c1/modules/bulk" {
			t.Errorf("path = %q", got.Path)
		}
		if modules, _ := got.Body["modules"].([]any); len(modules) != 2 {
			t.Errorf("modules = %v", got.Body["modules"])
		}
	})
}

// TestResourceService はリソースAPIの呼び出しを検証する。
func TestResourceService(t *testing.T) {
	t.Parallel()

	rec := &recorder{response: Resource{ID: "r1", Type: ResourceTypeBook}}
	svc := NewResourceService(newTestClient(t, rec))
	ctx := context.Background()

	r, err := svc.Create(ctx, "c1", CreateResourceData{Title: "本", Type: ResourceTypeBook, URL: "https://example.com/book"})
	if err != nil {
		t.Fatalf("Create()でエラーが発生: %v", err)
	}
	if r.ID != "r1" {
		t.Errorf("resource = %+v", r)
	}
	if got := rec.last(t); got.Method != http.MethodPost || got.Path != "/courses/c1/resources" {
		t.Errorf("request = %s %s", got.Method, got.Path)
	}

	if _, err := svc.Update(ctx, "c1", "r1", UpdateResourceData{URL: ptr("https://example.com/v2")}); err != nil {
		t.Fatalf("Update()でエラーが発生: %v", err)
	}
	if got := rec.last(t); got.Method != http.MethodPut || got.Path != "/courses/c1/resources/r1" {
		t.Errorf("request = %s %s", got.Method, got.Path)
	}

	if err := svc.Delete(ctx, "c1", "r1"); err != nil {
		t.Fatalf("Delete()でエラーが発生: %v", err)
	}
	if got := rec.last(t); got.Method != http.MethodDelete {
		t.Errorf("method = %s", got.Method)
	}

	before := rec.count()
	if _, err := svc.Create(ctx, "c1", CreateResourceData{Title: "本", Type: ResourceTypeBook, URL: "bad"}); err == nil {
		t.Error("不正なURLでCreate()がエラーを返すべきだが、nilが返った")
	}
	if rec.count() != before {
		t.Error("検証エラー時にリクエストが送信された")
	}
}
