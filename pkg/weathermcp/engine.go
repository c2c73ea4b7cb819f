package weathermcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/weathermcp/pkg/llm"
	"github.com/harunnryd/weathermcp/pkg/logging"
	"github.com/harunnryd/weathermcp/pkg/mcp"
	"github.com/harunnryd/weathermcp/pkg/metrics"
	"github.com/harunnryd/weathermcp/pkg/observers"
	"github.com/harunnryd/weathermcp/pkg/orchestrator"
	"github.com/harunnryd/weathermcp/pkg/redact"
	"github.com/harunnryd/weathermcp/pkg/resilience"
	"github.com/harunnryd/weathermcp/pkg/runner"
	"github.com/harunnryd/weathermcp/pkg/shell"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Engine owns one client session: the model adapter, the tool server
// connection, the orchestrator and the observers.
type Engine struct {
	cfg       Config
	log       *slog.Logger
	profile   Profile
	adapter   llm.LLMAdapter
	asyncObs  *metrics.AsyncObserver
	sinks     *observers.MultiObserver
	events    io.Closer
	serverErr io.Writer

	mu      sync.Mutex
	session *mcp.Session
	orch    *orchestrator.Orchestrator
	tools   []llm.Tool

	drainOnce sync.Once
	drainErr  error
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Logger defaults to one built from Config.LogLevel/LogFormat on stderr.
	Logger *slog.Logger
	// Observer receives every event in addition to the built-in sinks.
	Observer metrics.Observer
	// ServerStderr receives the tool server's stderr; nil means os.Stderr.
	ServerStderr io.Writer
}

// NewEngine resolves the active model profile and builds the guarded adapter.
// No tool server is contacted until Start.
func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	}
	redact.SetEnabled(cfg.Privacy.RedactSecrets)

	profiles, err := DecodeProfiles(cfg.Clients)
	if err != nil {
		return nil, err
	}
	profile, err := ResolveActiveProfile(profiles, cfg.LLM.Host)
	if err != nil {
		return nil, err
	}

	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviders()
	}
	inner, err := providers.BuildLLM(profile.Host, cfg, profile)
	if err != nil {
		return nil, err
	}

	log.Info("weathermcp_init",
		"llm_host", profile.Host,
		"llm_profile", profile.Name,
		"llm_model", firstNonEmpty(profile.ModelDeploymentID, profile.ModelName),
		"memory", cfg.Orchestrator.Memory,
		"max_rounds", cfg.Orchestrator.MaxRounds,
	)

	obsList := []metrics.Observer{
		observers.NewLatencyObserver(log),
		observers.NewLoggerObserver(log),
	}
	e := &Engine{cfg: cfg, log: log, profile: profile, serverErr: opts.ServerStderr}
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		if cfg.Observability.RetentionDays > 0 {
			if n, err := observers.PurgeArtifacts(dir, time.Duration(cfg.Observability.RetentionDays)*24*time.Hour); err != nil {
				log.Warn("artifact purge failed", "dir", dir, "error", err)
			} else if n > 0 {
				log.Info("artifacts purged", "dir", dir, "removed", n)
			}
		}
		obsList = append(obsList, observers.NewTimelineObserver(dir), observers.NewUsageObserver(dir))
	}
	switch path := strings.TrimSpace(cfg.Observability.EventsFile); path {
	case "":
	case "-":
		obsList = append(obsList, metrics.NewJSONLObserver(os.Stderr))
	default:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, configError("observability.events_file: %w", err)
		}
		e.events = f
		obsList = append(obsList, metrics.NewJSONLObserver(f))
	}
	if opts.Observer != nil {
		obsList = append(obsList, opts.Observer)
	}
	e.sinks = observers.NewMultiObserver(obsList...)
	e.asyncObs = metrics.NewAsyncObserver(e.sinks, 2048)
	e.adapter = guardAdapter(inner, cfg.LLM, log)
	return e, nil
}

// guardAdapter wraps the provider as breaker(retry(inner)): a burst of
// retried rate limits counts once against the breaker.
func guardAdapter(inner llm.LLMAdapter, cfg LLMConfig, log *slog.Logger) llm.LLMAdapter {
	retried := llm.NewRetryAdapter(inner, llm.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		Jitter:      0.2,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn("llm retry", "provider", inner.Name(), "attempt", attempt, "delay", delay, "error", err)
		},
	})
	breaker := resilience.NewCircuitBreaker(cfg.Circuit.Threshold, time.Duration(cfg.Circuit.CooldownMS)*time.Millisecond)
	return llm.NewCircuitBreakerAdapter(retried, breaker)
}

// Start launches the tool server at serverPath and prepares the orchestrator.
func (e *Engine) Start(ctx context.Context, serverPath string) error {
	desc, err := mcp.ParseLaunchPath(serverPath)
	if err != nil {
		return err
	}
	connectCtx, cancel := e.connectContext(ctx)
	defer cancel()
	session, err := mcp.Connect(connectCtx, desc, e.mcpOptions())
	if err != nil {
		return err
	}
	return e.attach(ctx, session)
}

// StartWithTransport connects over an already established transport.
func (e *Engine) StartWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	connectCtx, cancel := e.connectContext(ctx)
	defer cancel()
	session, err := mcp.ConnectTransport(connectCtx, transport, e.mcpOptions())
	if err != nil {
		return err
	}
	return e.attach(ctx, session)
}

func (e *Engine) connectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.MCP.ConnectMS <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(e.cfg.MCP.ConnectMS)*time.Millisecond)
}

func (e *Engine) mcpOptions() mcp.Options {
	env := append([]string(nil), e.cfg.MCP.Env...)
	if e.cfg.MCP.ServerQuiet {
		env = append(env, EnvPrefix+"_MCP_SERVER_QUIET=true")
	}
	return mcp.Options{
		Interpreters: mcp.Interpreters{Python: e.cfg.MCP.Python, Node: e.cfg.MCP.Node},
		Env:          env,
		Stderr:       e.serverErr,
		Name:         e.cfg.MCP.ClientName,
		Version:      runner.Version,
		Logger:       e.log,
	}
}

func (e *Engine) attach(ctx context.Context, session *mcp.Session) error {
	memory, err := orchestrator.ParseMemoryPolicy(e.cfg.Orchestrator.Memory)
	if err != nil {
		_ = session.Close()
		return configError("orchestrator.memory: %w", err)
	}
	orch := orchestrator.New(e.adapter, session, orchestrator.Config{
		System:       e.cfg.Orchestrator.SystemPrompt,
		MaxRounds:    e.cfg.Orchestrator.MaxRounds,
		MaxTokens:    e.cfg.Orchestrator.MaxTokens,
		ModelTimeout: time.Duration(e.cfg.Orchestrator.ModelTimeoutMS) * time.Millisecond,
		ToolTimeout:  time.Duration(e.cfg.Orchestrator.ToolTimeoutMS) * time.Millisecond,
		Memory:       memory,
		RefreshTools: e.cfg.Orchestrator.RefreshTools,
	})
	orch.SetLogger(e.log)
	orch.SetObserver(e.asyncObs)

	e.asyncObs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventSessionStart,
		Time:   time.Now(),
		Tags:   map[string]string{metrics.TagSessionID: orch.SessionID(), metrics.TagProvider: e.profile.Host},
		Fields: map[string]any{"profile": e.profile.Name, "memory": string(memory)},
	})
	tools, err := orch.RefreshTools(ctx)
	if err != nil {
		_ = session.Close()
		return err
	}

	e.mu.Lock()
	e.session = session
	e.orch = orch
	e.tools = tools
	e.mu.Unlock()
	return nil
}

// ConnectedMessage renders the startup line listing the server's tools.
func ConnectedMessage(tools []llm.Tool) string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = fmt.Sprintf("'%s'", t.Name)
	}
	return "Connected to server with tools: [" + strings.Join(names, ", ") + "]"
}

func (e *Engine) Tools() []llm.Tool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]llm.Tool, len(e.tools))
	copy(out, e.tools)
	return out
}

func (e *Engine) Profile() Profile { return e.profile }

func (e *Engine) Adapter() llm.LLMAdapter { return e.adapter }

// Orchestrator returns nil before Start.
func (e *Engine) Orchestrator() *orchestrator.Orchestrator {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orch
}

// Process answers one query. It satisfies shell.Processor.
func (e *Engine) Process(ctx context.Context, query string) (orchestrator.Result, error) {
	orch := e.Orchestrator()
	if orch == nil {
		return orchestrator.Result{}, mcp.NewTransportError("process", mcp.ErrSessionClosed)
	}
	return orch.Process(ctx, query)
}

// NewShell builds the interactive shell bound to this engine.
func (e *Engine) NewShell(in io.Reader, out io.Writer) (*shell.Shell, error) {
	sh, err := shell.New(e, in, out, shell.Config{
		Prompt: e.cfg.Shell.Prompt,
		Render: e.cfg.Shell.Render,
		Color:  e.cfg.Shell.Color,
	})
	if err != nil {
		return nil, err
	}
	sh.SetLogger(e.log)
	return sh, nil
}

// NewRunner returns a lifecycle runner that drains this engine on stop.
func (e *Engine) NewRunner(bannerOut io.Writer) *runner.LifecycleRunner {
	lr := runner.NewLifecycleRunner(runner.DrainFunc(e.Drain), runner.Hooks{
		OnStart: func() { e.log.Info("session running") },
		OnStop:  func() { e.log.Info("session stopped") },
	}, 10*time.Second)
	if e.cfg.Shell.Banner {
		lr.SetBanner(bannerOut, "weathermcp", e.cfg.Shell.Color)
	}
	return lr
}

// Drain closes the tool server session and flushes the observers. Safe to call
// more than once.
func (e *Engine) Drain() error {
	e.drainOnce.Do(func() {
		e.mu.Lock()
		session, orch := e.session, e.orch
		e.mu.Unlock()
		if orch != nil {
			e.asyncObs.RecordEvent(metrics.MetricsEvent{
				Name: metrics.EventSessionEnd,
				Time: time.Now(),
				Tags: map[string]string{metrics.TagSessionID: orch.SessionID()},
			})
		}
		if session != nil {
			if err := session.Close(); err != nil {
				e.drainErr = err
			}
		}
		e.asyncObs.Close()
		if dropped := e.asyncObs.Dropped(); dropped > 0 {
			e.log.Warn("metrics events dropped", "count", dropped)
		}
		if err := e.sinks.Close(); err != nil {
			e.log.Warn("observer close failed", "error", err)
		}
		if e.events != nil {
			_ = e.events.Close()
		}
	})
	return e.drainErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
