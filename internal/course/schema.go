package course

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/cursory/pkg/validation"
)

// CreateCourseData はコース作成フォームの入力。
type CreateCourseData struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	Slug        string     `json:"slug" validate:"required,slug"`
	Visibility  Visibility `json:"visibility" validate:"required,oneof=PUBLIC PRIVATE"`
	Tags        []string   `json:"tags"`
}

// UpdateCourseData はコース更新フォームの入力。nilのフィールドは変更しない。
type UpdateCourseData struct {
	Title       *string     `json:"title,omitempty" validate:"omitnil,min=1"`
	Description *string     `json:"description,omitempty" validate:"omitnil,min=1"`
	Slug        *string     `json:"slug,omitempty" validate:"omitnil,slug"`
	Visibility  *Visibility `json:"visibility,omitempty" validate:"omitnil,oneof=PUBLIC PRIVATE"`
	Tags        *[]string   `json:"tags,omitempty"`
}

// CreateModuleData はモジュール作成フォームの入力。
type CreateModuleData struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Order       int      `json:"order" validate:"gte=1"`
	Objectives  []string `json:"objectives"`
}

// UpdateModuleData はモジュール更新フォームの入力。nilのフィールドは変更しない。
type UpdateModuleData struct {
	Title       *string   `json:"title,omitempty" validate:"omitnil,min=1"`
	Description *string   `json:"description,omitempty" validate:"omitnil,min=1"`
	Order       *int      `json:"order,omitempty" validate:"omitnil,gte=1"`
	Objectives  *[]string `json:"objectives,omitempty"`
}

// CreateResourceData はリソース作成フォームの入力。
type CreateResourceData struct {
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description,omitempty"`
	Type        ResourceType `json:"type" validate:"required,oneof=PDF VIDEO WEBPAGE DOCUMENT PRESENTATION CODE_REPOSITORY BOOK ARTICLE WEBINAR TOOL COURSE_NOTES"`
	URL         string       `json:"url" validate:"required,url"`
}

// UpdateResourceData はリソース更新フォームの入力。nilのフィールドは変更しない。
type UpdateResourceData struct {
	Title       *string       `json:"title,omitempty" validate:"omitnil,min=1"`
	Description *string       `json:"description,omitempty"`
	Type        *ResourceType `json:"type,omitempty" validate:"omitnil,oneof=PDF VIDEO WEBPAGE DOCUMENT PRESENTATION CODE_REPOSITORY BOOK ARTICLE WEBINAR TOOL COURSE_NOTES"`
	URL         *string       `json:"url,omitempty" validate:"omitnil,url"`
}

// BulkCreateModulesData はモジュール一括作成の入力。
type BulkCreateModulesData struct {
	Modules []CreateModuleData `json:"modules" validate:"required,min=1,dive"`
}

// GenerateCourseData はAIによるコース生成の入力。
type GenerateCourseData struct {
	Description string `json:"description" validate:"required"`
	Objective   string `json:"objective" validate:"required"`
	Difficulty  string `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
}

// GenerateModulesData はAIによるモジュール生成の入力。
type GenerateModulesData struct {
	SuggestedTopics string `json:"suggestedTopics" validate:"required,max=500"`
	NumberOfModules int    `json:"numberOfModules" validate:"gte=1,lte=20"`
	Approach        string `json:"approach" validate:"required,max=300"`
}

// messages はフォームごとのエラーメッセージ。
var messages = validation.Messages{
	"title.required":           "タイトルは必須です",
	"title.min":                "タイトルは必須です",
	"description.required":     "説明は必須です",
	"description.min":          "説明は必須です",
	"slug.required":            "スラッグは必須です",
	"slug.slug":                "スラッグは小文字の英数字とハイフンのみ使用できます",
	"order.gte":                "順序は1以上である必要があります",
	"url.required":             "URLは必須です",
	"url.url":                  "有効なURLである必要があります",
	"objective.required":       "到達目標は必須です",
	"difficulty.oneof":         "難易度は beginner, intermediate, advanced のいずれかです",
	"suggestedTopics.required": "扱うトピックは必須です",
	"suggestedTopics.max":      "扱うトピックは500文字以下である必要があります",
	"numberOfModules.gte":      "少なくとも1つのモジュールを生成する必要があります",
	"numberOfModules.lte":      "生成できるモジュールは20個までです",
	"approach.required":        "学習アプローチは必須です",
	"approach.max":             "学習アプローチは300文字以下である必要があります",
	"modules.required":         "作成するモジュールがありません",
	"modules.min":              "作成するモジュールがありません",
}

// Normalize はタグを正規化し、未指定のタグを空配列にする。
func (d *CreateCourseData) Normalize() {
	d.Tags = NormalizeTags(d.Tags)
}

// Validate は入力を検証する。
func (d CreateCourseData) Validate() error {
	return validation.Struct(d, messages)
}

// Normalize は指定されたタグを正規化する。
func (d *UpdateCourseData) Normalize() {
	if d.Tags != nil {
		tags := NormalizeTags(*d.Tags)
		d.Tags = &tags
	}
}

// Validate は入力を検証する。
func (d UpdateCourseData) Validate() error {
	return validation.Struct(d, messages)
}

// Normalize は未指定の学習目標を空配列にする。
func (d *CreateModuleData) Normalize() {
	if d.Objectives == nil {
		d.Objectives = []string{}
	}
}

// Validate は入力を検証する。
func (d CreateModuleData) Validate() error {
	return validation.Struct(d, messages)
}

// Validate は入力を検証する。
func (d UpdateModuleData) Validate() error {
	return validation.Struct(d, messages)
}

// Validate は入力を検証する。
func (d CreateResourceData) Validate() error {
	return validation.Struct(d, messages)
}

// Validate は入力を検証する。
func (d UpdateResourceData) Validate() error {
	return validation.Struct(d, messages)
}

// Normalize は各モジュールを正規化する。
func (d *BulkCreateModulesData) Normalize() {
	for i := range d.Modules {
		d.Modules[i].Normalize()
	}
}

// Validate は入力を検証する。
func (d BulkCreateModulesData) Validate() error {
	return validation.Struct(d, messages)
}

// Validate は入力を検証する。
func (d GenerateCourseData) Validate() error {
	return validation.Struct(d, messages)
}

// Validate は入力を検証する。
func (d GenerateModulesData) Validate() error {
	return validation.Struct(d, messages)
}

// NormalizeTags はタグを前後の空白除去・小文字化し、空と重複を取り除く。順序は保つ。
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Slugify はタイトルからスラッグを生成する。
// アクセント記号を取り除き、英数字以外の連続をハイフン1つに置き換える。
func Slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
