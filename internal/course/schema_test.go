package course

import (
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/cursory/pkg/validation"
)

func ptr[T any](v T) *T { return &v }

// fieldMessage は検証エラーから指定フィールドのメッセージを取り出す。
func fieldMessage(t *testing.T, err error, field string) string {
	t.Helper()

	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("*validation.Errorが返るべきだが %v が返った", err)
	}
	return verr.Message(field)
}

// TestCreateCourseData_Validate はコース作成フォームの検証を検証する。
func TestCreateCourseData_Validate(t *testing.T) {
	t.Parallel()

	valid := func() CreateCourseData {
		return CreateCourseData{
			Title:       "Go入門",
			Description: "Goの基礎を学ぶ",
			Slug:        "go-basics",
			Visibility:  VisibilityPublic,
		}
	}

	t.Run("正しい入力はnilを返すこと", func(t *testing.T) {
		t.Parallel()

		if err := valid().Validate(); err != nil {
			t.Errorf("Validate()でエラーが発生: %v", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*CreateCourseData)
		field   string
		message string
	}{
		{"タイトルが空", func(d *CreateCourseData) { d.Title = "" }, "title", "タイトルは必須です"},
		{"説明が空", func(d *CreateCourseData) { d.Description = "" }, "description", "説明は必須です"},
		{"スラッグが空", func(d *CreateCourseData) { d.Slug = "" }, "slug", "スラッグは必須です"},
		{"スラッグに大文字", func(d *CreateCourseData) { d.Slug = "Go-Basics" }, "slug", "スラッグは小文字の英数字とハイフンのみ使用できます"},
		{"スラッグに空白", func(d *CreateCourseData) { d.Slug = "go basics" }, "slug", "スラッグは小文字の英数字とハイフンのみ使用できます"},
		{"公開範囲が不正", func(d *CreateCourseData) { d.Visibility = "INTERNAL" }, "visibility", "visibilityは次のいずれかである必要があります: PUBLIC PRIVATE"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"の場合はエラーになること", func(t *testing.T) {
			t.Parallel()

			d := valid()
			tt.mutate(&d)
			if got := fieldMessage(t, d.Validate(), tt.field); got != tt.message {
				t.Errorf("Message(%q) = %q, want %q", tt.field, got, tt.message)
			}
		})
	}

	t.Run("Normalizeでタグが未指定なら空配列になること", func(t *testing.T) {
		t.Parallel()

		d := valid()
		d.Normalize()
		if d.Tags == nil || len(d.Tags) != 0 {
			t.Errorf("Tags = %#v, want []string{}", d.Tags)
		}
	})
}

// TestUpdateCourseData_Validate は部分更新フォームの検証を検証する。
func TestUpdateCourseData_Validate(t *testing.T) {
	t.Parallel()

	t.Run("すべて未指定でもnilを返すこと", func(t *testing.T) {
		t.Parallel()

		if err := (UpdateCourseData{}).Validate(); err != nil {
			t.Errorf("Validate()でエラーが発生: %v", err)
		}
	})

	t.Run("指定されたフィールドには作成時と同じ規則が適用されること", func(t *testing.T) {
		t.Parallel()

		d := UpdateCourseData{Title: ptr(""), Slug: ptr("Bad Slug")}
		err := d.Validate()
		if got := fieldMessage(t, err, "title"); got != "タイトルは必須です" {
			t.Errorf("title = %q", got)
		}
		if got := fieldMessage(t, err, "slug"); got != "スラッグは小文字の英数字とハイフンのみ使用できます" {
			t.Errorf("slug = %q", got)
		}
	})

	t.Run("指定されたタグだけが正規化されること", func(t *testing.T) {
		t.Parallel()

		d := UpdateCourseData{Tags: &[]string{" Go ", "go", "WEB"}}
		d.Normalize()
		if want := []string{"go", "web"}; !slices.Equal(*d.Tags, want) {
			t.Errorf("Tags = %v, want %v", *d.Tags, want)
		}

		var empty UpdateCourseData
		empty.Normalize()
		if empty.Tags != nil {
			t.Errorf("未指定のTagsが設定された: %v", *empty.Tags)
		}
	})
}

// TestModuleData_Validate はモジュールフォームの検証を検証する。
func TestModuleData_Validate(t *testing.T) {
	t.Parallel()

	t.Run("順序が0の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		d := CreateModuleData{Title: "変数", Description: "変数と型", Order: 0}
		if got := fieldMessage(t, d.Validate(), "order"); got != "順序は1以上である必要があります" {
			t.Errorf("order = %q", got)
		}
	})

	t.Run("Normalizeで学習目標が未指定なら空配列になること", func(t *testing.T) {
		t.Parallel()

		d := CreateModuleData{Title: "変数", Description: "変数と型", Order: 1}
		d.Normalize()
		if d.Objectives == nil {
			t.Error("Objectivesがnilのまま")
		}
		if err := d.Validate(); err != nil {
			t.Errorf("Validate()でエラーが発生: %v", err)
		}
	})

	t.Run("更新で順序に負数を指定するとエラーになること", func(t *testing.T) {
		t.Parallel()

		d := UpdateModuleData{Order: ptr(-1)}
		if got := fieldMessage(t, d.Validate(), "order"); got != "順序は1以上である必要があります" {
			t.Errorf("order = %q", got)
		}
	})

	t.Run("一括作成で空の配列はエラーになること", func(t *testing.T) {
		t.Parallel()

		d := BulkCreateModulesData{Modules: []CreateModuleData{}}
		if got := fieldMessage(t, d.Validate(), "modules"); got != "作成するモジュールがありません" {
			t.Errorf("modules = %q", got)
		}
	})

	t.Run("一括作成で要素の検証エラーは位置付きで返ること", func(t *testing.T) {
		t.Parallel()

		d := BulkCreateModulesData{Modules: []CreateModuleData{
			{Title: "a", Description: "b", Order: 1},
			{Title: "", Description: "b", Order: 2},
		}}
		if got := fieldMessage(t, d.Validate(), "modules[1].title"); got == "" {
			t.Error("modules[1].title のエラーがない")
		}
	})
}

// TestResourceData_Validate はリソースフォームの検証を検証する。
func TestResourceData_Validate(t *testing.T) {
	t.Parallel()

	t.Run("すべてのリソース種別を受け付けること", func(t *testing.T) {
		t.Parallel()

		for _, rt := range ResourceTypes {
			d := CreateResourceData{Title: "資料", Type: rt, URL: "https://example.com/a.pdf"}
			if err := d.Validate(); err != nil {
				t.Errorf("Type=%s でエラーが発生: %v", rt, err)
			}
		}
		if len(ResourceTypes) != 11 {
			t.Errorf("len(ResourceTypes) = %d, want 11", len(ResourceTypes))
		}
	})

	t.Run("URLの形式が不正な場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		d := CreateResourceData{Title: "資料", Type: ResourceTypePDF, URL: "not a url"}
		if got := fieldMessage(t, d.Validate(), "url"); got != "有効なURLである必要があります" {
			t.Errorf("url = %q", got)
		}
	})

	t.Run("未定義の種別はエラーになること", func(t *testing.T) {
		t.Parallel()

		d := CreateResourceData{Title: "資料", Type: "PODCAST", URL: "https://example.com"}
		if got := fieldMessage(t, d.Validate(), "type"); got == "" {
			t.Error("type のエラーがない")
		}
	})

	t.Run("更新で指定したURLも検証されること", func(t *testing.T) {
		t.Parallel()

		d := UpdateResourceData{URL: ptr("example")}
		if got := fieldMessage(t, d.Validate(), "url"); got != "有効なURLである必要があります" {
			t.Errorf("url = %q", got)
		}
	})
}

// TestGenerateModulesData_Validate はモジュール生成フォームの検証を検証する。
func TestGenerateModulesData_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    GenerateModulesData
		field   string
		message string
	}{
		{"トピックが空", GenerateModulesData{NumberOfModules: 5, Approach: "実践"}, "suggestedTopics", "扱うトピックは必須です"},
		{"モジュール数が0", GenerateModulesData{SuggestedTopics: "Go", NumberOfModules: 0, Approach: "実践"}, "numberOfModules", "少なくとも1つのモジュールを生成する必要があります"},
		{"モジュール数が21", GenerateModulesData{SuggestedTopics: "Go", NumberOfModules: 21, Approach: "実践"}, "numberOfModules", "生成できるモジュールは20個までです"},
		{"アプローチが空", GenerateModulesData{SuggestedTopics: "Go", NumberOfModules: 5}, "approach", "学習アプローチは必須です"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"の場合はエラーになること", func(t *testing.T) {
			t.Parallel()

			if got := fieldMessage(t, tt.data.Validate(), tt.field); got != tt.message {
				t.Errorf("Message(%q) = %q, want %q", tt.field, got, tt.message)
			}
		})
	}

	t.Run("境界値の1と20は受け付けること", func(t *testing.T) {
		t.Parallel()

		for _, n := range []int{1, 20} {
			d := GenerateModulesData{SuggestedTopics: "Go", NumberOfModules: n, Approach: "実践"}
			if err := d.Validate(); err != nil {
				t.Errorf("NumberOfModules=%d でエラーが発生: %v", n, err)
			}
		}
	})
}

// TestNormalizeTags はタグの正規化を検証する。
func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	got := NormalizeTags([]string{" Go ", "", "go", "Web", "  ", "web", "api"})
	want := []string{"go", "web", "api"}
	if !slices.Equal(got, want) {
		t.Errorf("NormalizeTags() = %v, want %v", got, want)
	}
	if got := NormalizeTags(nil); got == nil || len(got) != 0 {
		t.Errorf("NormalizeTags(nil) = %#v, want []string{}", got)
	}
}

// TestSlugify はタイトルからのスラッグ生成を検証する。
func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Go Basics":                 "go-basics",
		"  Programación en Python ": "programacion-en-python",
		"REST API 101!":             "rest-api-101",
		"a--b__c":                   "a-b-c",
		"日本語だけ":                     "",
	}
	for in, want := range tests {
		got := Slugify(in)
		if got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
		if got != "" && !validation.MatchesSlug(got) {
			t.Errorf("Slugify(%q) = %q はスラッグとして不正", in, got)
		}
	}
}
