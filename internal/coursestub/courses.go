package coursestub

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/cursory/internal/course"
	"github.com/nao1215/cursory/pkg/middleware"
	"github.com/nao1215/cursory/pkg/validation"
)

const (
	// codeValidation は入力検証エラーのエラーコード。
	codeValidation = "VALIDATION_ERROR"
	// codeSlugConflict はスラッグ重複のエラーコード。
	codeSlugConflict = "SLUG_CONFLICT"
)

// handleListCourses は認証ユーザーのコース一覧を返すハンドラを返す。
func (s *Server) handleListCourses() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		courses, err := s.queries.listCoursesByUser(c.Request.Context(), userID)
		if err != nil {
			s.logger.Error("コース一覧取得エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コース一覧の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"courses": courses})
	}
}

// handleGetCourse はモジュールとリソースを含むコースを返すハンドラを返す。
// 非公開のコースは所有者にのみ返す。
func (s *Server) handleGetCourse() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, false)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		modules, err := s.queries.listModules(ctx, crs.ID)
		if err != nil {
			s.logger.Error("モジュール一覧取得エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コースの取得に失敗しました"})
			return
		}
		resources, err := s.queries.listResources(ctx, crs.ID)
		if err != nil {
			s.logger.Error("リソース一覧取得エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コースの取得に失敗しました"})
			return
		}
		crs.Modules = modules
		crs.Resources = resources
		c.JSON(http.StatusOK, crs)
	}
}

// handleCreateCourse はコース作成を処理するハンドラを返す。
func (s *Server) handleCreateCourse() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		var req course.CreateCourseData
		if !bindAndValidate(c, &req, func() error {
			req.Normalize()
			return req.Validate()
		}) {
			return
		}

		if !s.ensureSlugAvailable(c, req.Slug, "") {
			return
		}

		crs := course.Course{
			ID:          uuid.New().String(),
			Title:       req.Title,
			Description: req.Description,
			Slug:        req.Slug,
			Tags:        req.Tags,
			Visibility:  req.Visibility,
			UserID:      userID,
		}
		if err := s.queries.createCourse(c.Request.Context(), crs); err != nil {
			s.respondCourseWriteError(c, err, "コースの作成に失敗しました")
			return
		}
		c.JSON(http.StatusCreated, crs)
	}
}

// handleUpdateCourse はコースの部分更新を処理するハンドラを返す。所有者のみ更新できる。
func (s *Server) handleUpdateCourse() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}

		var req course.UpdateCourseData
		if !bindAndValidate(c, &req, func() error {
			req.Normalize()
			return req.Validate()
		}) {
			return
		}

		if req.Title != nil {
			crs.Title = *req.Title
		}
		if req.Description != nil {
			crs.Description = *req.Description
		}
		if req.Slug != nil {
			if !s.ensureSlugAvailable(c, *req.Slug, crs.ID) {
				return
			}
			crs.Slug = *req.Slug
		}
		if req.Visibility != nil {
			crs.Visibility = *req.Visibility
		}
		if req.Tags != nil {
			crs.Tags = *req.Tags
		}

		if err := s.queries.updateCourse(c.Request.Context(), crs); err != nil {
			s.respondCourseWriteError(c, err, "コースの更新に失敗しました")
			return
		}
		c.JSON(http.StatusOK, crs)
	}
}

// handleDeleteCourse はコース削除を処理するハンドラを返す。配下のモジュールとリソースも削除する。
func (s *Server) handleDeleteCourse() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logger.Error("トランザクション開始エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コースの削除に失敗しました"})
			return
		}
		defer tx.Rollback()

		if err := s.queries.withTx(tx).deleteCourse(ctx, crs.ID); err != nil {
			s.logger.Error("コース削除エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コースの削除に失敗しました"})
			return
		}
		if err := tx.Commit(); err != nil {
			s.logger.Error("コミットエラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コースの削除に失敗しました"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleGenerateCourse はコースの下書きを生成するハンドラを返す。生成結果は保存しない。
func (s *Server) handleGenerateCourse() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}

		var req course.GenerateCourseData
		if !bindAndValidate(c, &req, func() error { return req.Validate() }) {
			return
		}
		c.JSON(http.StatusOK, generateCourseDraft(req))
	}
}

// loadCourse はパスパラメータ :id のコースを取得する。
// ownerOnlyがtrueの場合、所有者以外には403を返す。falseの場合、他人の非公開コースは404とする。
// 取得できなかった場合はレスポンスを書き込んでfalseを返す。
func (s *Server) loadCourse(c *gin.Context, ownerOnly bool) (course.Course, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return course.Course{}, false
	}

	crs, err := s.queries.getCourse(c.Request.Context(), c.Param("id"))
	if errors.Is(err, errNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "コースが見つかりません"})
		return course.Course{}, false
	}
	if err != nil {
		s.logger.Error("コース取得エラー", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "コースの取得に失敗しました"})
		return course.Course{}, false
	}

	if crs.UserID != userID {
		if ownerOnly {
			c.JSON(http.StatusForbidden, gin.H{"error": "このコースを変更する権限がありません"})
			return course.Course{}, false
		}
		if crs.Visibility != course.VisibilityPublic {
			c.JSON(http.StatusNotFound, gin.H{"error": "コースが見つかりません"})
			return course.Course{}, false
		}
	}
	return crs, true
}

// ensureSlugAvailable はスラッグが他のコースで使われていないことを確認する。
// 使われている場合は409を書き込んでfalseを返す。excludeIDのコースは比較から除く。
func (s *Server) ensureSlugAvailable(c *gin.Context, slug, excludeID string) bool {
	exists, err := s.queries.slugExists(c.Request.Context(), slug, excludeID)
	if err != nil {
		s.logger.Error("スラッグ確認エラー", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "スラッグの確認に失敗しました"})
		return false
	}
	if exists {
		s.respondCourseWriteError(c, errSlugConflict, "")
		return false
	}
	return true
}

// respondCourseWriteError はコースの書き込みエラーをレスポンスに変換する。
func (s *Server) respondCourseWriteError(c *gin.Context, err error, msg string) {
	if errors.Is(err, errSlugConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "このスラッグは既に使われています", "code": codeSlugConflict})
		return
	}
	s.logger.Error(msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// requireUser は認証済みユーザーのIDを返す。取得できない場合は401を書き込んでfalseを返す。
func requireUser(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
		return "", false
	}
	return userID, true
}

// bindAndValidate はリクエストボディをdstにデコードし、validateで検証する。
// 失敗した場合は400を書き込んでfalseを返す。
func bindAndValidate(c *gin.Context, dst any, validate func() error) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
		return false
	}
	if err := validate(); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "code": codeValidation, "fields": verr.Fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": codeValidation})
		return false
	}
	return true
}
