// Package main provides the CLI entry point for the agent execution core:
// an interactive coding-agent loop over a pluggable LLM provider, gated by
// the policy/approval engine.
//
// # Basic usage
//
//	agentcore chat --mode build --trust careful
//	agentcore session list
//	agentcore plugin list
//
// # Environment variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key, used by the default provider.
//   - AGENTCORE_WORKDIR: working directory tools operate against (default: cwd).
//   - AGENTCORE_PATTERNS_DB: path to the persistent pattern store sqlite file.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/agent/providers"
	"github.com/haasonsaas/agentcore/internal/audit"
	"github.com/haasonsaas/agentcore/internal/config"
	agentctx "github.com/haasonsaas/agentcore/internal/context"
	"github.com/haasonsaas/agentcore/internal/interaction"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/policy"
	"github.com/haasonsaas/agentcore/internal/ratelimit"
	"github.com/haasonsaas/agentcore/internal/remote"
	"github.com/haasonsaas/agentcore/internal/sessions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// auditPolicySink adapts the policy engine's per-decision audit hook (§4.3
// Auditing) onto the real audit trail, so every approval/denial the policy
// engine decides lands in the same event log as tool invocations and
// completions. A nil *audit.Logger (audit disabled) makes this a no-op,
// matching the spec's "loss of the audit log is a warning, never a fatal
// error."
type auditPolicySink struct{ log *audit.Logger }

func (s auditPolicySink) Write(entry policy.AuditEntry) {
	if s.log == nil {
		return
	}
	reason := "no pattern matched"
	if entry.Decision.MatchedPattern != nil {
		reason = entry.Decision.MatchedPattern.PatternText
	}
	s.log.LogPermissionDecision(context.Background(), !entry.Decision.NeedsApproval,
		string(entry.Classification.Operation), entry.Tool, "check_approval", reason, entry.SessionID)
}

// instrumentation bundles the optional, nil-safe ambient collaborators
// (metrics, tracing, structured logging, audit trail) every command wires
// through to the loop, registry, and interaction channel they construct.
type instrumentation struct {
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	log      *observability.Logger
	auditLog *audit.Logger
	shutdown func(context.Context) error
}

// buildInstrumentation constructs the process-wide instrumentation from the
// ambient flags every command exposes. otelEndpoint empty disables tracing
// export (a no-op tracer is still returned, so call sites never nil-check
// it); auditOutput empty disables the audit trail.
func buildInstrumentation(otelEndpoint, auditOutput string) (*instrumentation, error) {
	metrics := observability.NewMetrics()

	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName: "agentcore",
		Endpoint:    otelEndpoint,
	})

	log := observability.NewLogger(observability.LogConfig{
		Level:  envOr("AGENTCORE_LOG_LEVEL", "info"),
		Format: "json",
	})

	var auditLog *audit.Logger
	if auditOutput != "" {
		var err error
		auditLog, err = audit.NewLogger(audit.Config{
			Enabled:           true,
			Level:             audit.LevelInfo,
			Format:            audit.FormatJSON,
			Output:            auditOutput,
			IncludeToolInput:  true,
			IncludeToolOutput: false,
		})
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	return &instrumentation{metrics: metrics, tracer: tracer, log: log, auditLog: auditLog, shutdown: shutdown}, nil
}

func (i *instrumentation) close() {
	if i.auditLog != nil {
		_ = i.auditLog.Close()
	}
	_ = i.shutdown(context.Background())
}

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes per §6 CLI surface: 0 clean, 1 unhandled error, 2 misuse.
const (
	exitOK     = 0
	exitError  = 1
	exitMisuse = 2
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		if isUsageError(err) {
			os.Exit(exitMisuse)
		}
		slog.Error("command failed", "error", err)
		os.Exit(exitError)
	}
	os.Exit(exitOK)
}

// isUsageError reports whether cobra flagged err as an argument/flag
// misuse rather than a runtime failure. Cobra doesn't type these distinctly,
// so this follows the same convention the root command's RunE functions use:
// usage errors are returned wrapped with errMisuse.
func isUsageError(err error) bool {
	return strings.Contains(err.Error(), errMisuse.Error())
}

var errMisuse = fmt.Errorf("invalid usage")

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "agentcore",
		Short:   "Interactive AI coding agent with tool dispatch and approval gating",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildChatCmd(), buildSessionCmd(), buildPluginCmd(), buildServeCmd())
	return root
}

// buildServeCmd hosts the remote editor protocol (§6) over a websocket so
// an external editor, rather than this process's own stdin/stdout REPL,
// drives the agent loop.
func buildServeCmd() *cobra.Command {
	var addrFlag, pathFlag, workdirFlag, patternsDBFlag, modelFlag, authSecretFlag, otelFlag, auditFlag, configFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the remote editor protocol over a websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFlag(configFlag)
			if err != nil {
				return err
			}

			opts := serveOptions{
				Addr:         addrFlag,
				Path:         pathFlag,
				WorkDir:      workdirFlag,
				PatternsDB:   patternsDBFlag,
				Model:        modelFlag,
				AuthSecret:   authSecretFlag,
				OTelEndpoint: otelFlag,
				AuditOutput:  auditFlag,
				RateLimit:    ratelimit.DefaultConfig(),
				Config:       cfg,
			}
			if cfg != nil {
				if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
					opts.Addr = cfg.Server.Addr
				}
				if !cmd.Flags().Changed("path") && cfg.Server.Path != "" {
					opts.Path = cfg.Server.Path
				}
				if !cmd.Flags().Changed("auth-secret") && cfg.Server.Auth.Secret != "" {
					opts.AuthSecret = cfg.Server.Auth.Secret
				}
				if opts.WorkDir == "" {
					opts.WorkDir = cfg.Agent.WorkDir
				}
				if opts.PatternsDB == "" {
					opts.PatternsDB = cfg.Tools.PatternsDB
				}
				if cfg.Server.RateLimit.RequestsPerMinute > 0 {
					opts.RateLimit = cfg.Server.RateLimit
				}
			}
			if opts.WorkDir == "" {
				opts.WorkDir = envOr("AGENTCORE_WORKDIR", mustGetwd())
			}
			if opts.PatternsDB == "" {
				opts.PatternsDB = envOr("AGENTCORE_PATTERNS_DB", filepath.Join(opts.WorkDir, ".agentcore-patterns.db"))
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&configFlag, "config", envOr("AGENTCORE_CONFIG", ""), "Path to the agentcore config file (YAML or JSON5)")
	cmd.Flags().StringVar(&addrFlag, "addr", ":8787", "Listen address for the remote protocol")
	cmd.Flags().StringVar(&pathFlag, "path", "/agent", "HTTP path the websocket upgrades on")
	cmd.Flags().StringVar(&workdirFlag, "workdir", "", "Working directory tools operate against (default: current directory)")
	cmd.Flags().StringVar(&patternsDBFlag, "patterns-db", "", "Path to the persistent pattern store")
	cmd.Flags().StringVar(&modelFlag, "model", "", "Model id to request from the provider (default: the provider's default model)")
	cmd.Flags().StringVar(&authSecretFlag, "auth-secret", "", "HMAC secret for bearer tokens (empty disables auth, local use only)")
	cmd.Flags().StringVar(&otelFlag, "otel-endpoint", envOr("AGENTCORE_OTEL_ENDPOINT", ""), "OTLP gRPC collector endpoint for tracing (empty disables export)")
	cmd.Flags().StringVar(&auditFlag, "audit-output", envOr("AGENTCORE_AUDIT_OUTPUT", "stdout"), "Audit trail destination: stdout, stderr, file:<path>, or empty to disable")
	return cmd
}

type serveOptions struct {
	Addr         string
	Path         string
	WorkDir      string
	PatternsDB   string
	Model        string
	AuthSecret   string
	OTelEndpoint string
	AuditOutput  string
	RateLimit    ratelimit.Config
	Config       *config.Config
}

// buildProvider constructs the LLM provider selected by the config file's
// llm.default_provider (anthropic, openai, google, or bedrock), defaulting
// to Anthropic with credentials from the environment when no config is
// given. It also resolves the model: explicit flag > provider default.
func buildProvider(cfg *config.Config, model string) (agent.LLMProvider, string, error) {
	name := "anthropic"
	var pc config.LLMProviderConfig
	if cfg != nil && cfg.LLM.DefaultProvider != "" {
		name = cfg.LLM.DefaultProvider
		pc = cfg.LLM.Providers[name]
	}
	if model == "" {
		model = pc.DefaultModel
	}
	if model == "" {
		if name != "anthropic" {
			return nil, "", fmt.Errorf("model is required: set --model or llm.providers.%s.default_model", name)
		}
		model = "claude-sonnet-4-5"
	}

	switch name {
	case "anthropic":
		apiKey := pc.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{APIKey: apiKey, BaseURL: pc.BaseURL})
		if err != nil {
			return nil, "", fmt.Errorf("construct anthropic provider: %w", err)
		}
		return p, model, nil
	case "openai":
		apiKey := pc.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY is required")
		}
		return providers.NewOpenAIProvider(apiKey), model, nil
	case "google":
		apiKey := pc.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, "", fmt.Errorf("GEMINI_API_KEY is required")
		}
		p, err := providers.NewGoogleProvider(providers.GoogleConfig{APIKey: apiKey})
		if err != nil {
			return nil, "", fmt.Errorf("construct google provider: %w", err)
		}
		return p, model, nil
	case "bedrock":
		p, err := providers.NewBedrockProvider(providers.BedrockConfig{Region: pc.Region})
		if err != nil {
			return nil, "", fmt.Errorf("construct bedrock provider: %w", err)
		}
		return p, model, nil
	default:
		return nil, "", fmt.Errorf("unknown provider %q", name)
	}
}

// loadConfigFlag loads the optional --config file; an empty path means no
// file-based configuration, which is not an error.
func loadConfigFlag(path string) (*config.Config, error) {
	if path == "" {
		return nil, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, opts serveOptions) error {
	provider, model, err := buildProvider(opts.Config, opts.Model)
	if err != nil {
		return err
	}

	store, err := policy.OpenSQLiteStore(opts.PatternsDB)
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}
	defer store.Close()

	inst, err := buildInstrumentation(opts.OTelEndpoint, opts.AuditOutput)
	if err != nil {
		return fmt.Errorf("build instrumentation: %w", err)
	}
	defer inst.close()

	// Session records back the idle sweep; live per-connection state is
	// torn down by the remote server itself when a connection drops.
	records := sessions.NewMemoryStore()
	sweeper := &sessions.IdleSweeper{
		Store:   records,
		Timeout: sessions.DefaultIdleTimeout,
		Logger:  slog.Default(),
	}
	if err := sweeper.Start("*/5 * * * *"); err != nil {
		return fmt.Errorf("start idle sweeper: %w", err)
	}
	defer sweeper.Stop()

	factory := remote.SessionFactory{
		Provider: provider,
		Store:    store,
		Audit:    auditPolicySink{log: inst.auditLog},
		Records:  records,
		Builders: tools.Builders{
			models.ModeAsk:   tools.AskBuilder,
			models.ModePlan:  tools.PlanBuilder,
			models.ModeBuild: tools.BuildBuilder,
		},
		Prompts: tools.SystemPrompts{
			models.ModeAsk:   systemPromptFor(models.ModeAsk),
			models.ModePlan:  systemPromptFor(models.ModePlan),
			models.ModeBuild: systemPromptFor(models.ModeBuild),
		},
		Model:          model,
		DefaultWorkDir: opts.WorkDir,
		AuditLog:       inst.auditLog,
		Metrics:        inst.metrics,
		Tracer:         inst.tracer,
		Logger:         inst.log,
	}

	var auth *remote.Authenticator
	if opts.AuthSecret != "" {
		auth = remote.NewAuthenticator(opts.AuthSecret)
	}
	server := remote.NewServer(factory, auth, slog.Default(), opts.RateLimit)

	slog.Info("remote protocol listening", "addr", opts.Addr, "path", opts.Path, "auth_enabled", auth != nil)
	return server.ListenAndServeWS(ctx, opts.Addr, opts.Path)
}

// buildChatCmd launches the interactive REPL: the primary command that
// drives the agent loop over stdin/stdout.
func buildChatCmd() *cobra.Command {
	var modeFlag, trustFlag, workdirFlag, patternsDBFlag, modelFlag, otelFlag, auditFlag, configFlag string
	var shellEnabled bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive agent session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFlag(configFlag)
			if err != nil {
				return err
			}
			if cfg != nil {
				if !cmd.Flags().Changed("mode") && cfg.Agent.Mode != "" {
					modeFlag = cfg.Agent.Mode
				}
				if !cmd.Flags().Changed("trust") && cfg.Agent.Trust != "" {
					trustFlag = cfg.Agent.Trust
				}
				if !cmd.Flags().Changed("shell") && cfg.Agent.ShellEnabled != nil {
					shellEnabled = *cfg.Agent.ShellEnabled
				}
				if workdirFlag == "" {
					workdirFlag = cfg.Agent.WorkDir
				}
				if patternsDBFlag == "" {
					patternsDBFlag = cfg.Tools.PatternsDB
				}
			}

			mode, ok := parseMode(modeFlag)
			if !ok {
				return fmt.Errorf("%w: unknown mode %q", errMisuse, modeFlag)
			}
			trust, ok := models.ParseTrustLevel(strings.ToLower(strings.TrimSpace(trustFlag)))
			if !ok {
				return fmt.Errorf("%w: unknown trust level %q", errMisuse, trustFlag)
			}

			workdir := workdirFlag
			if workdir == "" {
				workdir = envOr("AGENTCORE_WORKDIR", mustGetwd())
			}
			patternsDB := patternsDBFlag
			if patternsDB == "" {
				patternsDB = envOr("AGENTCORE_PATTERNS_DB", filepath.Join(workdir, ".agentcore-patterns.db"))
			}

			return runChat(cmd.Context(), chatOptions{
				Mode:         mode,
				Trust:        trust,
				WorkDir:      workdir,
				PatternsDB:   patternsDB,
				Model:        modelFlag,
				ShellEnabled: shellEnabled,
				OTelEndpoint: otelFlag,
				AuditOutput:  auditFlag,
				ConfigPath:   configFlag,
				Config:       cfg,
			})
		},
	}

	cmd.Flags().StringVar(&configFlag, "config", envOr("AGENTCORE_CONFIG", ""), "Path to the agentcore config file (YAML or JSON5)")
	cmd.Flags().StringVar(&modeFlag, "mode", "build", "Agent mode: ask, plan, or build")
	cmd.Flags().StringVar(&trustFlag, "trust", "balanced", "Trust level: balanced, careful, or manual")
	cmd.Flags().StringVar(&workdirFlag, "workdir", "", "Working directory (default: current directory)")
	cmd.Flags().StringVar(&patternsDBFlag, "patterns-db", "", "Path to the persistent pattern store")
	cmd.Flags().StringVar(&modelFlag, "model", "", "Model id to request from the provider (default: the provider's default model)")
	cmd.Flags().BoolVar(&shellEnabled, "shell", true, "Enable unrestricted shell execution in Build mode")
	cmd.Flags().StringVar(&otelFlag, "otel-endpoint", envOr("AGENTCORE_OTEL_ENDPOINT", ""), "OTLP gRPC collector endpoint for tracing (empty disables export)")
	cmd.Flags().StringVar(&auditFlag, "audit-output", envOr("AGENTCORE_AUDIT_OUTPUT", "stdout"), "Audit trail destination: stdout, stderr, file:<path>, or empty to disable")
	return cmd
}

func parseMode(s string) (models.AgentMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ask":
		return models.ModeAsk, true
	case "plan":
		return models.ModePlan, true
	case "build":
		return models.ModeBuild, true
	default:
		return "", false
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

type chatOptions struct {
	Mode         models.AgentMode
	Trust        models.TrustLevel
	WorkDir      string
	PatternsDB   string
	Model        string
	ShellEnabled bool
	OTelEndpoint string
	AuditOutput  string

	// ConfigPath and Config carry the optional --config file; when set, a
	// watcher hot-reloads trust-level edits into the running session.
	ConfigPath string
	Config     *config.Config
}

// runChat wires together the conversation context, provider, pattern
// store, policy engine, interaction channel, tool registry, and mode
// controller, then drives a read-eval-print loop over stdin until EOF or
// the user types "/exit".
func runChat(ctx context.Context, opts chatOptions) error {
	provider, model, err := buildProvider(opts.Config, opts.Model)
	if err != nil {
		return err
	}

	store, err := policy.OpenSQLiteStore(opts.PatternsDB)
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}
	defer store.Close()

	inst, err := buildInstrumentation(opts.OTelEndpoint, opts.AuditOutput)
	if err != nil {
		return fmt.Errorf("build instrumentation: %w", err)
	}
	defer inst.close()

	sessionID := uuid.NewString()
	channelCfg := interaction.Config{Logger: inst.log}
	if opts.Config != nil {
		channelCfg.ApprovalTimeout = opts.Config.Interaction.ApprovalTimeout
		channelCfg.QuestionnaireTimeout = opts.Config.Interaction.QuestionnaireTimeout
		channelCfg.QueueCapacity = opts.Config.Interaction.QueueCapacity
	}
	channel := interaction.New(channelCfg)
	defer channel.Close()

	go runApprovalPrompts(channel)

	compaction := agentctx.CompactionConfig{
		MaxTokens:      100_000,
		NearLimitRatio: 0.8,
		KeepRecent:     6,
	}
	if opts.Config != nil {
		compaction.MaxTokens = opts.Config.Context.MaxTokens
		compaction.NearLimitRatio = opts.Config.Context.NearLimitRatio
		compaction.KeepRecent = opts.Config.Context.KeepRecent
	}
	cc := agentctx.NewConversationContext(systemPromptFor(opts.Mode), compaction)
	cc.SessionID = sessionID
	cc.SessionKey = sessionID
	cc.Metrics = inst.metrics
	cc.AuditLog = inst.auditLog
	if opts.Config != nil {
		cc.Pruning = config.EffectiveContextPruningSettings(opts.Config.Agent.ContextPruning)
	}

	loop := &agent.Loop{
		Provider: provider,
		Context:  cc,
		Model:    model,
		Metrics:  inst.metrics,
		Tracer:   inst.tracer,
		Hooks: agent.Hooks{
			OnTextDelta: func(chunk string) { fmt.Print(chunk) },
			OnToolStart: func(name string, args json.RawMessage) {
				fmt.Fprintf(os.Stderr, "\n[tool] %s ...\n", describeToolCall(name, args))
			},
			OnToolEnd: func(name, _ string, success bool) {
				fmt.Fprintf(os.Stderr, "[tool] %s done (success=%v)\n", name, success)
			},
		},
	}
	if opts.Config != nil && opts.Config.Agent.MaxIterations > 0 {
		n := opts.Config.Agent.MaxIterations
		loop.MaxIterations = &n
	}

	deps := tools.Deps{
		Store:     store,
		Audit:     auditPolicySink{log: inst.auditLog},
		SessionID: sessionID,
		Channel:   channel,
		Trust:     opts.Trust,
		AuditLog:  inst.auditLog,
		Metrics:   inst.metrics,
		Tracer:    inst.tracer,
	}

	builders := tools.Builders{
		models.ModeAsk:   tools.AskBuilder,
		models.ModePlan:  tools.PlanBuilder,
		models.ModeBuild: tools.BuildBuilder,
	}
	prompts := tools.SystemPrompts{
		models.ModeAsk:   systemPromptFor(models.ModeAsk),
		models.ModePlan:  systemPromptFor(models.ModePlan),
		models.ModeBuild: systemPromptFor(models.ModeBuild),
	}
	mc := tools.NewModeController(loop, opts.WorkDir, opts.ShellEnabled, builders, prompts, deps, opts.Mode)

	if opts.ConfigPath != "" {
		watcher, err := config.NewWatcher(opts.ConfigPath, slog.Default())
		if err != nil {
			slog.Warn("config watcher disabled", "path", opts.ConfigPath, "error", err)
		} else {
			watcher.OnChange(func(cfg *config.Config) {
				if trust, ok := models.ParseTrustLevel(strings.ToLower(strings.TrimSpace(cfg.Agent.Trust))); ok {
					mc.SetTrust(trust)
				}
			})
			go watcher.Run(ctx)
		}
	}

	fmt.Printf("agentcore ready (mode=%s trust=%s workdir=%s)\n", opts.Mode, opts.Trust, opts.WorkDir)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			break
		}
		if newMode, ok := strings.CutPrefix(line, "/mode "); ok {
			mode, ok := parseMode(newMode)
			if !ok {
				fmt.Fprintf(os.Stderr, "unknown mode: %s\n", newMode)
				continue
			}
			mc.SwitchMode(mode)
			continue
		}

		resp, err := mc.Chat(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
			continue
		}
		fmt.Println()
		if resp.AutoCompacted {
			fmt.Fprintln(os.Stderr, "[context auto-compacted]")
		}
	}
	return nil
}

// runApprovalPrompts is the terminal front-end's consumer loop: it calls
// Receive for each enqueued request and prompts the user on stdout/stdin,
// the minimal front-end needed to exercise the interaction channel end to
// end from the CLI. It returns once the channel is closed.
func runApprovalPrompts(channel *interaction.Channel) {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)
	for {
		req, err := channel.Receive(ctx)
		if err != nil {
			return
		}
		switch req.Kind {
		case interaction.KindApproval:
			promptApproval(channel, req, reader)
		case interaction.KindQuestionnaire:
			promptQuestionnaire(channel, req, reader)
		}
	}
}

func promptApproval(channel *interaction.Channel, req *interaction.Request, reader *bufio.Reader) {
	ar := req.Approval
	fmt.Printf("\n[approval] %s wants to run: %s (risk=%s)\n", ar.Tool, ar.Command, ar.Risk)
	for i, p := range ar.SuggestedPatterns {
		fmt.Printf("  [%d] always approve %s (%s)\n", i, p.Pattern, p.MatchType)
	}
	fmt.Print("approve once [y], always for session [s], always [a], deny [n]: ")
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))

	answer := interaction.ApprovalAnswer{Reply: interaction.ReplyDeny, SelectedIndex: -1}
	switch line {
	case "y":
		answer = interaction.ApprovalAnswer{Reply: interaction.ReplyApprove, SelectedIndex: -1}
	case "s":
		answer = interaction.ApprovalAnswer{Reply: interaction.ReplyApproveSession, SelectedIndex: 0}
	case "a":
		answer = interaction.ApprovalAnswer{Reply: interaction.ReplyApproveAlways, SelectedIndex: 0}
	}
	_ = channel.Reply(req.ID, answer)
}

func promptQuestionnaire(channel *interaction.Channel, req *interaction.Request, reader *bufio.Reader) {
	qr := req.Questionnaire
	answers := make(map[string][]string, len(qr.Questions))
	fmt.Printf("\n[questionnaire] %s\n", qr.Title)
	for _, q := range qr.Questions {
		fmt.Printf("%s: ", q.Prompt)
		line, _ := reader.ReadString('\n')
		answers[q.ID] = []string{strings.TrimSpace(line)}
	}
	_ = channel.ReplyQuestionnaire(req.ID, interaction.QuestionnaireAnswer{Answers: answers})
}

// describeToolCall renders a compact, human-readable label for a tool call
// in progress, e.g. "📖 Reading: ~/src/main.go".
func describeToolCall(name string, args json.RawMessage) string {
	var decoded any
	_ = json.Unmarshal(args, &decoded)
	display := tools.ResolveToolDisplay(name, decoded, "")
	if display == nil {
		return name
	}
	return tools.FormatToolSummary(display)
}

func systemPromptFor(mode models.AgentMode) string {
	switch mode {
	case models.ModeAsk:
		return "You are an AI coding assistant in Ask mode: you may read the workspace and run read-only commands, but you cannot modify anything."
	case models.ModePlan:
		return "You are an AI coding assistant in Plan mode: investigate the workspace and propose changes as unified diffs without applying them."
	default:
		return "You are an AI coding assistant in Build mode: you may read, write, and run commands in the workspace, subject to approval gating."
	}
}

// buildSessionCmd manages session records via the Session Store external
// collaborator (§1 Non-goals: the core does not define the storage
// format, only lists/inspects what's there).
func buildSessionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Manage agent sessions"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := sessions.NewMemoryStore()
			list, err := store.List(cmd.Context(), sessions.ListOptions{})
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, s := range list {
				fmt.Printf("%s\t%s\t%s\n", s.ID, s.Mode, s.UpdatedAt)
			}
			return nil
		},
	})
	return cmd
}

// buildPluginCmd is a stub surface for third-party plugin hosting (§1
// Non-goals: the bytecode sandbox itself is out of scope for this core).
func buildPluginCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plugin", Short: "Manage tool plugins"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("no plugins installed")
			return nil
		},
	})
	return cmd
}
