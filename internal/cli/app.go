package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nao1215/cursory/internal/auth"
	"github.com/nao1215/cursory/internal/config"
	"github.com/nao1215/cursory/internal/course"
	"github.com/nao1215/cursory/pkg/event"
	"github.com/nao1215/cursory/pkg/httpclient"
)

// sessionExpiredHint はセッション失効時に表示する案内。
const sessionExpiredHint = "セッションの有効期限が切れました。cursory login で再度ログインしてください"

// app は1回のコマンド実行で使う依存関係をまとめる。
type app struct {
	// cfg は設定。
	cfg *config.Config
	// logger はロガー。
	logger *slog.Logger
	// out は結果の出力先。
	out io.Writer
	// errOut は案内とログの出力先。
	errOut io.Writer
	// jar は認証Cookieを保持するJar。
	jar *SessionJar
	// client はバックエンドへのHTTPクライアント。
	client *httpclient.Client
	// bus はセッションイベントのバス。
	bus *event.Bus
	// store はセッション状態。
	store *auth.Store
	// courses はコースAPI。
	courses *course.CourseService
	// modules はモジュールAPI。
	modules *course.ModuleService
	// resources はリソースAPI。
	resources *course.ResourceService
	// registry はHTTPクライアントのメトリクスの登録先。
	registry *prometheus.Registry
	// tracerProvider はトレースを有効にした場合のプロバイダ。無効の場合はnil。
	tracerProvider *sdktrace.TracerProvider
	// tracer はコマンド単位のスパンを生成する。
	tracer trace.Tracer
	// expired は実行中にセッション失効が通知されたかどうか。
	expired atomic.Bool
	// hadSession は起動時にセッションファイルにCookieがあったかどうか。
	hadSession bool
	// quiet はセッション失効の案内を抑止するかどうか。ログイン中に使う。
	quiet atomic.Bool
	// detach はイベント購読を解除する。
	detach []func()
}

// newApp は設定から依存関係を組み立てる。
func newApp(cfg *config.Config, out, errOut io.Writer) (*app, error) {
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	jar, err := OpenSessionJar(cfg.SessionFile)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		out:        out,
		errOut:     errOut,
		jar:        jar,
		hadSession: jar.Len() > 0,
		bus:        event.NewBus(logger),
		registry:   prometheus.NewRegistry(),
		tracer:     noop.NewTracerProvider().Tracer(tracerName),
	}

	var tp trace.TracerProvider = noop.NewTracerProvider()
	if cfg.Trace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(errOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("トレースエクスポーターの生成に失敗: %w", err)
		}
		a.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		a.tracer = a.tracerProvider.Tracer(tracerName)
		tp = a.tracerProvider
	}

	client, err := httpclient.New(cfg.APIBaseURL,
		httpclient.WithCookieJar(jar),
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithNotifier(a.bus),
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(httpclient.NewMetrics(a.registry)),
		httpclient.WithTracerProvider(tp),
	)
	if err != nil {
		return nil, err
	}
	a.client = client

	a.store = auth.NewStore(auth.NewService(client), logger)
	a.courses = course.NewCourseService(client, cfg.GenerateTimeout)
	a.modules = course.NewModuleService(client, cfg.GenerateTimeout)
	a.resources = course.NewResourceService(client)

	a.detach = append(a.detach,
		a.store.Attach(a.bus),
		a.bus.SubscribeType(event.TypeSessionExpired, func(event.Event) {
			if a.expired.CompareAndSwap(false, true) && a.hadSession && !a.quiet.Load() {
				fmt.Fprintln(errOut, sessionExpiredHint)
			}
		}),
	)
	return a, nil
}

// close はセッションを保存し、トレースを書き出す。
// セッションが失効した場合とCookieが残っていない場合はセッションファイルを削除する。
func (a *app) close(ctx context.Context) error {
	for _, d := range a.detach {
		d()
	}
	a.client.CloseIdleConnections()

	var errs []error
	if a.expired.Load() || a.jar.Len() == 0 {
		errs = append(errs, a.jar.Clear())
	} else {
		errs = append(errs, a.jar.Save())
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("トレースの書き出しに失敗: %w", err))
		}
	}
	if a.cfg.EnableDevTools {
		a.logMetrics()
	}
	return errors.Join(errs...)
}

// logMetrics はHTTPクライアントのメトリクスをデバッグ用にログへ出力する。
func (a *app) logMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Warn("メトリクスの収集に失敗", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			a.logger.Info("メトリクス",
				"name", mf.GetName(),
				"labels", labelString(m.GetLabel()),
				"value", metricValue(mf.GetType(), m),
			)
		}
	}
}

// labelString はラベルを name=value の形式で連結する。
func labelString(labels []*dto.LabelPair) string {
	s := ""
	for i, l := range labels {
		if i > 0 {
			s += ","
		}
		s += l.GetName() + "=" + l.GetValue()
	}
	return s
}

// metricValue はカウンターは値、ヒストグラムは観測数を返す。
func metricValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	default:
		return 0
	}
}

// requireAuth はセッションを確認し、未認証であればエラーを返す。
func (a *app) requireAuth(ctx context.Context, path string) error {
	if err := a.store.CheckAuth(ctx); err != nil {
		a.logger.Debug("セッションの確認に失敗", "error", err)
	}
	decision := auth.Protected(a.store.Snapshot(), path)
	if decision.Action == auth.ActionRedirect {
		return fmt.Errorf("%w: %s", ErrNotLoggedIn, decision.From)
	}
	return nil
}
