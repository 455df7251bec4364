package course

// Visibility はコースの公開範囲。
type Visibility string

const (
	// VisibilityPublic は公開コース。
	VisibilityPublic Visibility = "PUBLIC"
	// VisibilityPrivate は非公開コース。
	VisibilityPrivate Visibility = "PRIVATE"
)

// ResourceType はリソースの種類。
type ResourceType string

const (
	ResourceTypePDF          ResourceType = "PDF"
	ResourceTypeVideo        ResourceType = "VIDEO"
	ResourceTypeWebpage      ResourceType = "WEBPAGE"
	ResourceTypeDocument     ResourceType = "DOCUMENT"
	ResourceTypePresentation ResourceType = "PRESENTATION"
	ResourceTypeCodeRepo     ResourceType = "CODE_REPOSITORY"
	ResourceTypeBook         ResourceType = "BOOK"
	ResourceTypeArticle      ResourceType = "ARTICLE"
	ResourceTypeWebinar      ResourceType = "WEBINAR"
	ResourceTypeTool         ResourceType = "TOOL"
	ResourceTypeCourseNotes  ResourceType = "COURSE_NOTES"
)

// ResourceTypes は定義済みのリソース種別の一覧。
var ResourceTypes = []ResourceType{
	ResourceTypePDF,
	ResourceTypeVideo,
	ResourceTypeWebpage,
	ResourceTypeDocument,
	ResourceTypePresentation,
	ResourceTypeCodeRepo,
	ResourceTypeBook,
	ResourceTypeArticle,
	ResourceTypeWebinar,
	ResourceTypeTool,
	ResourceTypeCourseNotes,
}

// Course はコース。一覧取得時はModulesとResourcesを含まない。
type Course struct {
	// ID はコースの識別子。
	ID string `json:"id"`
	// Title はタイトル。
	Title string `json:"title"`
	// Description は説明。
	Description string `json:"description"`
	// Slug はURL用の識別子。
	Slug string `json:"slug"`
	// Tags はタグ。
	Tags []string `json:"tags"`
	// Visibility は公開範囲。
	Visibility Visibility `json:"visibility"`
	// UserID は所有者のID。
	UserID string `json:"userId"`
	// Modules はコースに含まれるモジュール。
	Modules []Module `json:"modules,omitempty"`
	// Resources はコースに含まれるリソース。
	Resources []Resource `json:"resources,omitempty"`
}

// Module はコース内のモジュール。
type Module struct {
	// ID はモジュールの識別子。
	ID string `json:"id"`
	// Title はタイトル。
	Title string `json:"title"`
	// Description は説明。
	Description string `json:"description"`
	// Order はコース内での順序（1始まり）。
	Order int `json:"order"`
	// Objectives は学習目標。
	Objectives []string `json:"objectives"`
	// CourseID は所属するコースのID。
	CourseID string `json:"courseId"`
}

// Resource はコースに紐づく学習リソース。
type Resource struct {
	// ID はリソースの識別子。
	ID string `json:"id"`
	// Title はタイトル。
	Title string `json:"title"`
	// Description は説明。
	Description string `json:"description,omitempty"`
	// Type は種類。
	Type ResourceType `json:"type"`
	// URL はリソースのURL。
	URL string `json:"url"`
	// CourseID は所属するコースのID。
	CourseID string `json:"courseId"`
}

// GeneratedModule はAIが生成したモジュールの案。IDはレビュー用の一時IDで、バックエンドは付与しない。
type GeneratedModule struct {
	// ID はレビュー中に使う一時ID。
	ID string `json:"id,omitempty"`
	// Title はタイトル。
	Title string `json:"title"`
	// Description は説明。
	Description string `json:"description"`
	// Objectives は学習目標。
	Objectives []string `json:"objectives,omitempty"`
	// Order は順序。
	Order int `json:"order"`
}
