package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// sessionFileMode はセッションファイルのパーミッション。認証Cookieを含むため所有者のみ読み書きできる。
const sessionFileMode = 0o600

// storedCookie はセッションファイルに保存する1つのCookie。
type storedCookie struct {
	// URL はCookieを受け取ったリクエストのURL。
	URL string `json:"url"`
	// Name はCookie名。
	Name string `json:"name"`
	// Value はCookieの値。
	Value string `json:"value"`
	// Path はCookieのパス。
	Path string `json:"path,omitempty"`
	// Domain はCookieのドメイン。ホスト限定の場合は空。
	Domain string `json:"domain,omitempty"`
	// Expires は有効期限。ゼロ値はセッションCookie。
	Expires time.Time `json:"expires,omitzero"`
	// Secure はSecure属性。
	Secure bool `json:"secure,omitempty"`
	// HttpOnly はHttpOnly属性。
	HttpOnly bool `json:"http_only,omitempty"`
}

// sessionFile はセッションファイルのJSON構造。
type sessionFile struct {
	// Cookies は保存したCookie。
	Cookies []storedCookie `json:"cookies"`
}

// SessionJar はCLIの実行をまたいで認証Cookieを保持するCookieJar。
// 受け取ったCookieをメモリ上のJarに渡すと同時に記録し、Saveでファイルに書き出す。
type SessionJar struct {
	// mu はinnerとentriesを保護する。
	mu sync.Mutex
	// path はセッションファイルのパス。
	path string
	// inner は実際にCookieの送信判定を行うJar。
	inner *cookiejar.Jar
	// entries は名前・ドメイン・パスごとの最新のCookie。
	entries map[string]storedCookie
	// now は現在時刻。テストで差し替える。
	now func() time.Time
}

var _ http.CookieJar = (*SessionJar)(nil)

// OpenSessionJar はセッションファイルを読み込んでJarを生成する。ファイルがなければ空のJarを返す。
// 期限切れのCookieは読み込まない。
func OpenSessionJar(path string) (*SessionJar, error) {
	j := &SessionJar{path: path, now: time.Now}
	if err := j.reset(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションファイルの読み込みに失敗: %w", err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("セッションファイルの解析に失敗: %w", err)
	}
	for _, sc := range sf.Cookies {
		u, err := url.Parse(sc.URL)
		if err != nil {
			continue
		}
		j.SetCookies(u, []*http.Cookie{sc.cookie()})
	}
	return j, nil
}

// SetCookies はレスポンスで受け取ったCookieを記録する。
func (j *SessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
	for _, c := range cookies {
		sc := storedCookie{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if sc.Path == "" {
			sc.Path = defaultCookiePath(u.Path)
		}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}

		key := u.Host + "|" + sc.Domain + "|" + sc.Path + "|" + sc.Name
		if c.MaxAge < 0 || (!sc.Expires.IsZero() && !sc.Expires.After(now)) {
			delete(j.entries, key)
			continue
		}
		j.entries[key] = sc
	}
	j.inner.SetCookies(u, cookies)
}

// Cookies はuに送信するCookieを返す。
func (j *SessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Len は保持しているCookieの数を返す。
func (j *SessionJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Save は保持しているCookieをセッションファイルに書き出す。
// 一時ファイルに書いてからリネームするため、途中で失敗しても既存のファイルは壊れない。
func (j *SessionJar) Save() error {
	j.mu.Lock()
	sf := sessionFile{Cookies: make([]storedCookie, 0, len(j.entries))}
	now := j.now()
	for _, sc := range j.entries {
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			continue
		}
		sf.Cookies = append(sf.Cookies, sc)
	}
	j.mu.Unlock()

	sort.Slice(sf.Cookies, func(a, b int) bool {
		if sf.Cookies[a].Path != sf.Cookies[b].Path {
			return sf.Cookies[a].Path < sf.Cookies[b].Path
		}
		return sf.Cookies[a].Name < sf.Cookies[b].Name
	})

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("セッションのエンコードに失敗: %w", err)
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("セッションディレクトリの作成に失敗: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(sessionFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("パーミッションの設定に失敗: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("セッションの書き込みに失敗: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("セッションの書き込みに失敗: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("セッションファイルの置き換えに失敗: %w", err)
	}
	return nil
}

// Clear は全てのCookieを破棄し、セッションファイルを削除する。
func (j *SessionJar) Clear() error {
	j.mu.Lock()
	err := j.reset()
	j.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.Remove(j.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("セッションファイルの削除に失敗: %w", err)
	}
	return nil
}

// reset は空のJarに置き換える。呼び出し側でmuを保持すること。
func (j *SessionJar) reset() error {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("CookieJarの生成に失敗: %w", err)
	}
	j.inner = inner
	j.entries = make(map[string]storedCookie)
	return nil
}

// cookie は保存したCookieをhttp.Cookieに戻す。
func (sc storedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     sc.Name,
		Value:    sc.Value,
		Path:     sc.Path,
		Domain:   sc.Domain,
		Expires:  sc.Expires,
		Secure:   sc.Secure,
		HttpOnly: sc.HttpOnly,
	}
}

// defaultCookiePath はPath属性のないCookieの既定パスを返す（RFC 6265 5.1.4）。
func defaultCookiePath(requestPath string) string {
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	i := len(requestPath) - 1
	for i > 0 && requestPath[i] != '/' {
		i--
	}
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}
