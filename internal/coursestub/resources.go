package coursestub

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/cursory/internal/course"
)

// handleCreateResource はリソース作成を処理するハンドラを返す。所有者のみ作成できる。
func (s *Server) handleCreateResource() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}

		var req course.CreateResourceData
		if !bindAndValidate(c, &req, func() error { return req.Validate() }) {
			return
		}

		r := course.Resource{
			ID:          uuid.New().String(),
			Title:       req.Title,
			Description: req.Description,
			Type:        req.Type,
			URL:         req.URL,
			CourseID:    crs.ID,
		}
		if err := s.queries.createResource(c.Request.Context(), r); err != nil {
			s.logger.Error("リソース作成エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "リソースの作成に失敗しました"})
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

// handleUpdateResource はリソースの部分更新を処理するハンドラを返す。
func (s *Server) handleUpdateResource() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}
		r, ok := s.loadResource(c, crs.ID)
		if !ok {
			return
		}

		var req course.UpdateResourceData
		if !bindAndValidate(c, &req, func() error { return req.Validate() }) {
			return
		}
		if req.Title != nil {
			r.Title = *req.Title
		}
		if req.Description != nil {
			r.Description = *req.Description
		}
		if req.Type != nil {
			r.Type = *req.Type
		}
		if req.URL != nil {
			r.URL = *req.URL
		}

		if err := s.queries.updateResource(c.Request.Context(), r); err != nil {
			s.logger.Error("リソース更新エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "リソースの更新に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// handleDeleteResource はリソース削除を処理するハンドラを返す。
func (s *Server) handleDeleteResource() gin.HandlerFunc {
	return func(c *gin.Context) {
		crs, ok := s.loadCourse(c, true)
		if !ok {
			return
		}
		r, ok := s.loadResource(c, crs.ID)
		if !ok {
			return
		}

		if err := s.queries.deleteResource(c.Request.Context(), r.ID); err != nil {
			s.logger.Error("リソース削除エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "リソースの削除に失敗しました"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// loadResource はパスパラメータ :resourceId のリソースをコース内から取得する。
func (s *Server) loadResource(c *gin.Context, courseID string) (course.Resource, bool) {
	r, err := s.queries.getResource(c.Request.Context(), courseID, c.Param("resourceId"))
	if errors.Is(err, errNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "リソースが見つかりません"})
		return course.Resource{}, false
	}
	if err != nil {
		s.logger.Error("リソース取得エラー", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "リソースの取得に失敗しました"})
		return course.Resource{}, false
	}
	return r, true
}
