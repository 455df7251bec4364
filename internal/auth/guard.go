package auth

// ログイン画面と認証後の既定の遷移先。
const (
	LoginPath = "/auth/login"
	HomePath  = "/"
)

// Action はガードの判定結果。
type Action int

const (
	// ActionRender はそのまま表示する。
	ActionRender Action = iota
	// ActionWait は認証状態の確認が終わるまで待つ。
	ActionWait
	// ActionRedirect はTargetへ遷移する。
	ActionRedirect
)

// String は判定結果の名前を返す。
func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionWait:
		return "wait"
	case ActionRedirect:
		return "redirect"
	}
	return "unknown"
}

// Decision はガードの判定。
type Decision struct {
	// Action は判定結果。
	Action Action
	// Target はリダイレクト先。ActionRedirectの場合のみ設定される。
	Target string
	// From は遷移元のパス。ログイン後に戻る先として使う。
	From string
}

// Protected は認証が必要な画面のガード。
// 確認中なら待機し、未認証ならログイン画面へ遷移元を添えてリダイレクトする。
func Protected(st State, path string) Decision {
	if st.Loading {
		return Decision{Action: ActionWait}
	}
	if !st.Authenticated {
		return Decision{Action: ActionRedirect, Target: LoginPath, From: path}
	}
	return Decision{Action: ActionRender}
}

// AuthOnly はログイン画面など未認証者向けの画面のガード。
// ユーザー情報が既にあれば確認の完了を待たずに遷移元（なければホーム）へリダイレクトする。
func AuthOnly(st State, from string) Decision {
	if st.Authenticated || (st.User != nil && !st.Loading) {
		target := from
		if target == "" {
			target = HomePath
		}
		return Decision{Action: ActionRedirect, Target: target}
	}
	if st.Loading && st.User == nil {
		return Decision{Action: ActionWait}
	}
	return Decision{Action: ActionRender}
}
