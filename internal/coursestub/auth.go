package coursestub

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/cursory/internal/auth"
	"github.com/nao1215/cursory/pkg/middleware"
)

const (
	// refreshTokenCookie はリフレッシュトークンを格納するCookie名。
	refreshTokenCookie = "refresh_token"
	// refreshCookiePath はリフレッシュトークンを送信するパス。/auth 配下にだけ送られる。
	refreshCookiePath = "/auth"
	// refreshTokenBytes はリフレッシュトークンの乱数バイト数。
	refreshTokenBytes = 32
)

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// handleLogin はログインを処理するハンドラを返す。
// 認証に成功するとアクセストークンとリフレッシュトークンをCookieに設定する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.metrics.loginsTotal.WithLabelValues("invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		user, err := s.queries.getUserByEmail(ctx, req.Email)
		if err != nil && !errors.Is(err, errNotFound) {
			s.logger.Error("ユーザー取得エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			return
		}

		ok := false
		if err == nil {
			ok, err = argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
			if err != nil {
				s.logger.Error("パスワード照合エラー", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
				return
			}
		}
		if !ok {
			s.metrics.loginsTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
			return
		}

		if err := s.issueTokens(c, user); err != nil {
			s.logger.Error("トークン発行エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			return
		}

		s.metrics.loginsTotal.WithLabelValues("success").Inc()
		c.JSON(http.StatusOK, gin.H{"user": toUser(user)})
	}
}

// handleRefresh はリフレッシュトークンをローテーションし、アクセストークンを再発行するハンドラを返す。
// 使用済みのリフレッシュトークンは即座に無効になる。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(refreshTokenCookie)
		if err != nil || token == "" {
			s.metrics.refreshesTotal.WithLabelValues("missing").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "リフレッシュトークンがありません"})
			return
		}

		ctx := c.Request.Context()
		session, err := s.queries.getSessionByTokenHash(ctx, hashToken(token))
		if errors.Is(err, errNotFound) {
			s.metrics.refreshesTotal.WithLabelValues("invalid").Inc()
			s.clearCookies(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "リフレッシュトークンが無効です"})
			return
		}
		if err != nil {
			s.logger.Error("セッション取得エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの再発行に失敗しました"})
			return
		}

		// 期限切れでも使用済みにする
		if err := s.queries.deleteSession(ctx, session.ID); err != nil {
			s.logger.Error("セッション削除エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの再発行に失敗しました"})
			return
		}
		if s.now().Unix() >= session.ExpiresAt {
			s.metrics.refreshesTotal.WithLabelValues("expired").Inc()
			s.clearCookies(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "リフレッシュトークンの有効期限が切れています"})
			return
		}

		user, err := s.queries.getUserByID(ctx, session.UserID)
		if err != nil {
			s.metrics.refreshesTotal.WithLabelValues("invalid").Inc()
			s.clearCookies(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "リフレッシュトークンが無効です"})
			return
		}

		if err := s.issueTokens(c, user); err != nil {
			s.logger.Error("トークン発行エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの再発行に失敗しました"})
			return
		}

		s.metrics.refreshesTotal.WithLabelValues("success").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "トークンを再発行しました"})
	}
}

// handleLogout はログアウトを処理するハンドラを返す。
// リフレッシュトークンのセッションを削除し、認証Cookieを消去する。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(refreshTokenCookie); err == nil && token != "" {
			if err := s.queries.deleteSessionByTokenHash(c.Request.Context(), hashToken(token)); err != nil {
				s.logger.Error("セッション削除エラー", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ログアウトに失敗しました"})
				return
			}
		}
		s.clearCookies(c)
		c.JSON(http.StatusOK, gin.H{"message": "ログアウトしました"})
	}
}

// handleSession は認証済みユーザーとセッション情報を返すハンドラを返す。
func (s *Server) handleSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		ctx := c.Request.Context()
		user, err := s.queries.getUserByID(ctx, userID)
		if errors.Is(err, errNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーが存在しません"})
			return
		}
		if err != nil {
			s.logger.Error("ユーザー取得エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "セッションの取得に失敗しました"})
			return
		}

		last, err := s.queries.lastActivity(ctx, userID)
		if err != nil {
			s.logger.Error("最終アクティビティ取得エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "セッションの取得に失敗しました"})
			return
		}
		lastActivity := s.now().UTC()
		if last > 0 {
			lastActivity = time.Unix(last, 0).UTC()
		}

		c.JSON(http.StatusOK, auth.SessionInfo{
			User: toUser(user),
			Session: auth.Session{
				IsAuthenticated: true,
				LastActivity:    lastActivity,
			},
		})
	}
}

// issueTokens はアクセストークンと新しいリフレッシュトークンを発行してCookieに設定する。
func (s *Server) issueTokens(c *gin.Context, user userRow) error {
	access, err := middleware.GenerateJWT(s.cfg.JWTSecret, user.ID, user.Email, s.cfg.AccessTokenTTL)
	if err != nil {
		return err
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.createSession(c.Request.Context(), user.ID, refresh, now); err != nil {
		return err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, access, int(s.cfg.AccessTokenTTL.Seconds()), "/", "", s.cfg.SecureCookies, true)
	c.SetCookie(refreshTokenCookie, refresh, int(s.cfg.RefreshTokenTTL.Seconds()), refreshCookiePath, "", s.cfg.SecureCookies, true)
	return nil
}

// createSession はリフレッシュトークンのハッシュをセッションとして保存する。
func (s *Server) createSession(ctx context.Context, userID, refresh string, now time.Time) error {
	if err := s.queries.createSession(ctx, sessionRow{
		ID:           uuid.New().String(),
		UserID:       userID,
		TokenHash:    hashToken(refresh),
		ExpiresAt:    now.Add(s.cfg.RefreshTokenTTL).Unix(),
		LastActivity: now.Unix(),
	}); err != nil {
		return fmt.Errorf("セッションの保存に失敗: %w", err)
	}
	return nil
}

// clearCookies は認証Cookieを消去する。
func (s *Server) clearCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", s.cfg.SecureCookies, true)
	c.SetCookie(refreshTokenCookie, "", -1, refreshCookiePath, "", s.cfg.SecureCookies, true)
}

// newRefreshToken はURLセーフな乱数のリフレッシュトークンを生成する。
func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("乱数の生成に失敗: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken はリフレッシュトークンのSHA-256を16進文字列で返す。
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// toUser はDB行をレスポンス用のユーザーに変換する。
func toUser(u userRow) auth.User {
	return auth.User{ID: u.ID, Email: u.Email, Name: u.Name}
}
