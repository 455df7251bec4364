package course

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var (
	// ErrGenerationBusy は生成または作成が進行中であることを表す。
	ErrGenerationBusy = errors.New("モジュールの生成または作成が進行中です")
	// ErrNotReviewing はレビュー中のモジュール案がないことを表す。
	ErrNotReviewing = errors.New("レビュー中のモジュール案がありません")
	// ErrGeneratedModuleNotFound は指定した一時IDのモジュール案がないことを表す。
	ErrGeneratedModuleNotFound = errors.New("モジュール案が見つかりません")
)

// ModuleGenerator はレビューフローが使うモジュールAPI。*ModuleService が満たす。
type ModuleGenerator interface {
	Generate(ctx context.Context, courseID string, data GenerateModulesData) ([]GeneratedModule, error)
	CreateBulk(ctx context.Context, courseID string, modules []CreateModuleData) ([]Module, error)
}

// GenerationState はレビューフローの状態のスナップショット。
type GenerationState struct {
	// Generating は生成リクエストが進行中かどうか。
	Generating bool `json:"generating"`
	// Creating は一括作成リクエストが進行中かどうか。
	Creating bool `json:"creating"`
	// Reviewing はモジュール案をレビュー中かどうか。
	Reviewing bool `json:"reviewing"`
	// Items はレビュー中のモジュール案。
	Items []GeneratedModule `json:"items"`
}

// ModuleGeneration はAIが生成したモジュール案をレビューしてから一括作成するフロー。
// 生成→レビュー（編集・削除）→確定の順に進み、確定すると初期状態に戻る。
type ModuleGeneration struct {
	mu         sync.Mutex
	api        ModuleGenerator
	items      []GeneratedModule
	generating bool
	creating   bool
	reviewing  bool
	// now は一時IDの生成に使う現在時刻。テストで差し替える。
	now func() time.Time
}

// NewModuleGeneration は新しいレビューフローを生成する。
func NewModuleGeneration(api ModuleGenerator) *ModuleGeneration {
	return &ModuleGeneration{api: api, now: time.Now}
}

// State は現在の状態を返す。
func (g *ModuleGeneration) State() GenerationState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GenerationState{
		Generating: g.generating,
		Creating:   g.creating,
		Reviewing:  g.reviewing,
		Items:      cloneGenerated(g.items),
	}
}

// Items はレビュー中のモジュール案のコピーを返す。
func (g *ModuleGeneration) Items() []GeneratedModule {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneGenerated(g.items)
}

// Generate はモジュール案を生成し、一時IDを付与してレビュー状態に移る。
// 以前のレビュー内容は破棄される。
func (g *ModuleGeneration) Generate(ctx context.Context, courseID string, data GenerateModulesData) ([]GeneratedModule, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.generating || g.creating {
		g.mu.Unlock()
		return nil, ErrGenerationBusy
	}
	g.generating = true
	g.mu.Unlock()

	modules, err := g.api.Generate(ctx, courseID, data)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.generating = false
	if err != nil {
		return nil, err
	}

	stamp := g.now().UnixMilli()
	items := make([]GeneratedModule, len(modules))
	for i, m := range modules {
		m.ID = fmt.Sprintf("temp-%d-%d", stamp, i)
		items[i] = m
	}
	g.items = items
	g.reviewing = true
	return cloneGenerated(items), nil
}

// Edit は一時IDで指定したモジュール案を編集する。一時IDは変更できない。
func (g *ModuleGeneration) Edit(id string, fn func(*GeneratedModule)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.reviewing {
		return ErrNotReviewing
	}
	i := g.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrGeneratedModuleNotFound, id)
	}
	edited := g.items[i]
	edited.Objectives = slices.Clone(edited.Objectives)
	fn(&edited)
	edited.ID = id
	g.items[i] = edited
	return nil
}

// Remove は一時IDで指定したモジュール案をレビューから取り除く。
func (g *ModuleGeneration) Remove(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.reviewing {
		return ErrNotReviewing
	}
	i := g.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrGeneratedModuleNotFound, id)
	}
	g.items = slices.Delete(g.items, i, i+1)
	return nil
}

// Confirm はレビュー中のモジュール案を検証し、一括作成する。
// 成功すると初期状態に戻る。失敗した場合はレビュー内容を保持する。
func (g *ModuleGeneration) Confirm(ctx context.Context, courseID string) ([]Module, error) {
	g.mu.Lock()
	if g.generating || g.creating {
		g.mu.Unlock()
		return nil, ErrGenerationBusy
	}
	if !g.reviewing {
		g.mu.Unlock()
		return nil, ErrNotReviewing
	}

	data := BulkCreateModulesData{Modules: make([]CreateModuleData, len(g.items))}
	for i, m := range g.items {
		data.Modules[i] = CreateModuleData{
			Title:       m.Title,
			Description: m.Description,
			Order:       m.Order,
			Objectives:  slices.Clone(m.Objectives),
		}
	}
	data.Normalize()
	if err := data.Validate(); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	g.creating = true
	g.mu.Unlock()

	created, err := g.api.CreateBulk(ctx, courseID, data.Modules)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.creating = false
	if err != nil {
		return nil, err
	}
	g.reset()
	return created, nil
}

// Reset はレビュー内容を破棄して初期状態に戻す。
func (g *ModuleGeneration) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

func (g *ModuleGeneration) reset() {
	g.items = nil
	g.reviewing = false
}

func (g *ModuleGeneration) indexOf(id string) int {
	return slices.IndexFunc(g.items, func(m GeneratedModule) bool { return m.ID == id })
}

func cloneGenerated(items []GeneratedModule) []GeneratedModule {
	out := make([]GeneratedModule, len(items))
	for i, m := range items {
		m.Objectives = slices.Clone(m.Objectives)
		out[i] = m
	}
	return out
}
