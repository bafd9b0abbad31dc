package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/audit"
	agentctx "github.com/haasonsaas/agentcore/internal/context"
	"github.com/haasonsaas/agentcore/internal/interaction"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/policy"
	"github.com/haasonsaas/agentcore/internal/sessions"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// MaxSessions bounds the number of concurrently open sessions per
// connection, per §6's indicative cap of 8.
const MaxSessions = 8

// session is one remote-editor-managed conversation: its own loop, mode
// controller, and interaction channel, with a dedicated goroutine draining
// that channel into approval/questionnaire notifications.
type session struct {
	id      string
	conn    *conn
	loop    *agent.Loop
	mc      *tools.ModeController
	channel *interaction.Channel
	records sessions.Store

	mu   sync.Mutex
	busy bool

	cancelChannel context.CancelFunc
}

// touch refreshes the session record's activity timestamp so the idle
// sweeper does not reap a session that is still in use.
func (s *session) touch() {
	if s.records == nil {
		return
	}
	rec, err := s.records.Get(context.Background(), s.id)
	if err != nil {
		return
	}
	rec.LastActivity = time.Now()
	rec.UpdatedAt = rec.LastActivity
	_ = s.records.Update(context.Background(), rec)
}

// SessionFactory builds the collaborators a new session needs: the LLM
// provider, pattern store, and tool builders are supplied once at server
// construction and reused across sessions; only mode/workdir/trust vary per
// session/create call.
type SessionFactory struct {
	Provider     agent.LLMProvider
	Store        policy.Store
	Audit        policy.AuditSink
	Builders     tools.Builders
	Prompts      tools.SystemPrompts
	Model        string
	DefaultWorkDir string

	// AuditLog, Metrics, Tracer, and Logger are the shared, optional
	// instrumentation collaborators every session's registry, loop, and
	// interaction channel are wired with. Nil disables the corresponding
	// concern for every session this factory builds.
	AuditLog *audit.Logger
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
	Logger   *observability.Logger

	// Records, when set, keeps a Session row per open remote session so
	// `session list` and the idle sweeper see remote sessions too. Nil
	// disables record keeping.
	Records sessions.Store
}

func (f SessionFactory) newSession(conn *conn, params SessionCreateParams) (*session, error) {
	mode, ok := parseMode(params.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown mode %q", params.Mode)
	}
	trust := models.TrustBalanced
	if params.Trust != "" {
		t, ok := models.ParseTrustLevel(params.Trust)
		if !ok {
			return nil, fmt.Errorf("unknown trust level %q", params.Trust)
		}
		trust = t
	}
	workDir := params.WorkingDir
	if workDir == "" {
		workDir = f.DefaultWorkDir
	}

	sessionID := uuid.NewString()
	channelCtx, cancel := context.WithCancel(context.Background())
	channel := interaction.New(interaction.Config{Logger: f.Logger})

	cc := agentctx.NewConversationContext(f.Prompts[mode], agentctx.CompactionConfig{
		MaxTokens:      100_000,
		NearLimitRatio: 0.8,
		KeepRecent:     6,
	})
	cc.SessionID = sessionID
	cc.SessionKey = sessionID
	cc.Metrics = f.Metrics
	cc.AuditLog = f.AuditLog

	s := &session{id: sessionID, conn: conn, channel: channel, cancelChannel: cancel, records: f.Records}
	if f.Records != nil {
		now := time.Now()
		_ = f.Records.Create(context.Background(), &models.Session{
			ID:           sessionID,
			Key:          sessionID,
			Channel:      models.ChannelRemote,
			WorkingDir:   workDir,
			Mode:         mode,
			Trust:        trust,
			ShellEnabled: true,
			CreatedAt:    now,
			UpdatedAt:    now,
			LastActivity: now,
		})
	}

	loop := &agent.Loop{
		Provider: f.Provider,
		Context:  cc,
		Model:    f.Model,
		Metrics:  f.Metrics,
		Tracer:   f.Tracer,
		Hooks: agent.Hooks{
			OnTextDelta: func(chunk string) { conn.notifyResponseDelta(sessionID, chunk) },
			OnToolStart: func(name string, _ json.RawMessage) { conn.notifyToolEvent(sessionID, "start", name, false, "") },
			OnToolEnd: func(name, output string, success bool) {
				conn.notifyToolEvent(sessionID, "end", name, success, output)
			},
		},
	}
	s.loop = loop

	deps := tools.Deps{
		Store:     f.Store,
		Audit:     f.Audit,
		SessionID: sessionID,
		Channel:   channel,
		Trust:     trust,
		AuditLog:  f.AuditLog,
		Metrics:   f.Metrics,
		Tracer:    f.Tracer,
	}
	s.mc = tools.NewModeController(loop, workDir, true, f.Builders, f.Prompts, deps, mode)

	go s.drainInteractions(channelCtx)
	return s, nil
}

// drainInteractions is this session's interaction-channel consumer: every
// approval/questionnaire request raised by a tool call during this
// session's turns is pushed to the remote editor as a notification, and the
// editor's approval/respond or questionnaire/respond answers it.
func (s *session) drainInteractions(ctx context.Context) {
	for {
		req, err := s.channel.Receive(ctx)
		if err != nil {
			return
		}
		switch req.Kind {
		case interaction.KindApproval:
			s.conn.notifyApprovalRequest(s.id, req)
		case interaction.KindQuestionnaire:
			s.conn.notifyQuestionnaireRequest(s.id, req)
		}
	}
}

func (s *session) close() {
	s.cancelChannel()
	s.channel.Close()
	if s.records != nil {
		_ = s.records.Delete(context.Background(), s.id)
	}
}

func (s *session) setBusy(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v && s.busy {
		return false
	}
	s.busy = v
	return true
}

func parseMode(raw string) (models.AgentMode, bool) {
	switch raw {
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
