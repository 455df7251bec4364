package coursestub

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/cursory/internal/course"
)

// handleCreateModule はモジュール作成を処理するハンドラを返す。所有者のみ作成できる。
func (s *Server) handleCreateModule() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}

		var req course.CreateModuleData
		if !bindAndValidate(c, &req, func() error {
			req.Normalize()
			return req.Validate()
		}) {
			return
		}

		m := newModule(crs.ID, req)
		if err := s.queries.createModule(c.Request.Context(), m); err != nil {
			s.logger.Error("モジュール作成エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの作成に失敗しました"})
			return
		}
		c.JSON(http.StatusCreated, m)
	}
}

// handleBulkCreateModules は複数モジュールを1トランザクションで作成するハンドラを返す。
// 1件でも失敗した場合は何も作成しない。
func (s *Server) handleBulkCreateModules() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}

		var req course.BulkCreateModulesData
		if !bindAndValidate(c, &req, func() error {
			req.Normalize()
			return req.Validate()
		}) {
			return
		}

		ctx := c.Request.Context()
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logger.Error("トランザクション開始エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの一括作成に失敗しました"})
			return
		}
		defer tx.Rollback()

		q := s.queries.withTx(tx)
		modules := make([]course.Module, 0, len(req.Modules))
		for _, data := range req.Modules {
			m := newModule(crs.ID, data)
			if err := q.createModule(ctx, m); err != nil {
				s.logger.Error("モジュール作成エラー", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの一括作成に失敗しました"})
				return
			}
			modules = append(modules, m)
		}
		if err := tx.Commit(); err != nil {
			s.logger.Error("コミットエラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの一括作成に失敗しました"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"modules": modules})
	}
}

// handleGenerateModules はモジュール案を生成するハンドラを返す。生成結果は保存しない。
func (s *Server) handleGenerateModules() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}

		var req course.GenerateModulesData
		if !bindAndValidate(c, &req, func() error { return req.Validate() }) {
			return
		}

		existing, err := s.queries.listModules(c.Request.Context(), crs.ID)
		if err != nil {
			s.logger.Error("モジュール一覧取得エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの生成に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"modules": generateModuleDrafts(req, nextOrder(existing))})
	}
}

// handleGetModule はモジュールを返すハンドラを返す。
func (s *Server) handleGetModule() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, false)
		if !ok {
			return
		}
		m, ok := s.loadModule(c, crs.ID)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// handleUpdateModule はモジュールの部分更新を処理するハンドラを返す。
func (s *Server) handleUpdateModule() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}
		m, ok := s.loadModule(c, crs.ID)
		if !ok {
			return
		}

		var req course.UpdateModuleData
		if !bindAndValidate(c, &req, func() error { return req.Validate() }) {
			return
		}
		if req.Title != nil {
			m.Title = *req.Title
		}
		if req.Description != nil {
			m.Description = *req.Description
		}
		if req.Order != nil {
			m.Order = *req.Order
		}
		if req.Objectives != nil {
			m.Objectives = *req.Objectives
		}
		if m.Objectives == nil {
			m.Objectives = []string{}
		}

		if err := s.queries.updateModule(c.Request.Context(), m); err != nil {
			s.logger.Error("モジュール更新エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの更新に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// handleDeleteModule はモジュール削除を処理するハンドラを返す。
func (s *Server) handleDeleteModule() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}
		m, ok := s.loadModule(c, crs.ID)
		if !ok {
			return
		}

		if err := s.queries.deleteModule(c.Request.Context(), m.ID); err != nil {
			s.logger.Error("モジュール削除エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの削除に失敗しました"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// loadModule はパスパラメータ :moduleId のモジュールをコース内から取得する。
func (s *Server) loadModule(c *gin.Context, courseID string) (course.Module, bool) {
	m, err := s.queries.getModule(c.Request.Context(), courseID, c.Param("moduleId"))
	if errors.Is(err, errNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "モジュールが見つかりません"})
		return course.Module{}, false
	}
	if err != nil {
		s.logger.Error("モジュール取得エラー", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "モジュールの取得に失敗しました"})
		return course.Module{}, false
	}
	return m, true
}

// newModule は作成フォームの入力から新しいモジュールを組み立てる。
func newModule(courseID string, data course.CreateModuleData) course.Module {
	objectives := data.Objectives
	if objectives == nil {
		objectives = []string{}
	}
	return course.Module{
		ID:          uuid.New().String(),
		Title:       data.Title,
		Description: data.Description,
		Order:       data.Order,
		Objectives:  objectives,
		CourseID:    courseID,
	}
}

// nextOrder は既存モジュールの次の順序を返す。
func nextOrder(modules []course.Module) int {
	next := 1
	for _, m := range modules {
		if m.Order >= next {
			next = m.Order + 1
		}
	}
	return next
}
