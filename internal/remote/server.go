package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/interaction"
	"github.com/haasonsaas/agentcore/internal/ratelimit"
)

// Server accepts duplex streams (raw connections or websocket frames
// wrapped by Upgrade, see websocket.go) and speaks the editor protocol over
// each one independently. One conn per accepted stream; sessions live
// inside a conn, capped at MaxSessions.
type Server struct {
	factory   SessionFactory
	auth      *Authenticator
	logger    *slog.Logger
	rateLimit ratelimit.Config
}

// NewServer builds a Server. auth may be nil to disable token checking
// (intended for local/trusted transports only). A zero rateLimit falls
// back to ratelimit.DefaultConfig's per-session cap.
func NewServer(factory SessionFactory, auth *Authenticator, logger *slog.Logger, rateLimit ratelimit.Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if rateLimit.RequestsPerMinute == 0 {
		rateLimit = ratelimit.DefaultConfig()
	}
	return &Server{factory: factory, auth: auth, logger: logger, rateLimit: rateLimit}
}

// Serve speaks the protocol over one duplex stream until rw returns EOF or
// ctx is cancelled. It blocks for the stream's lifetime; callers typically
// invoke it in its own goroutine per accepted connection.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	c := &conn{
		server:      s,
		r:           bufio.NewReader(rw),
		w:           rw,
		sessions:    map[string]*session{},
		limiter:     ratelimit.New(s.rateLimit),
		initialized: false,
	}
	defer c.closeAll()

	for {
		var env Envelope
		if err := ReadFrame(c.r, &env); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var tooLarge *FrameTooLargeError
			if errors.As(err, &tooLarge) {
				c.sendError("", ErrPayloadTooLarge, err.Error())
				continue
			}
			return fmt.Errorf("remote: read frame: %w", err)
		}
		if env.Method == "" {
			// Stray notification from the client; the protocol defines none,
			// so it's ignored rather than rejected.
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.dispatch(ctx, env)
	}
}

// conn is the mutable state of one duplex stream: the negotiated auth
// state, its open sessions (capped at MaxSessions), and a write mutex so
// notifications pushed from session goroutines never interleave with
// responses written from the read loop.
type conn struct {
	server *Server

	r *bufio.Reader

	writeMu sync.Mutex
	w       io.Writer

	mu          sync.Mutex
	initialized bool
	sessions    map[string]*session

	limiter *ratelimit.Limiter
}

func (c *conn) dispatch(ctx context.Context, env Envelope) {
	if env.Method != MethodInitialize && !c.isInitialized() {
		c.sendError(env.ID, ErrUnauthorized, "initialize must be called first")
		return
	}

	switch env.Method {
	case MethodInitialize:
		c.handleInitialize(env)
	case MethodSessionCreate:
		c.handleSessionCreate(env)
	case MethodSessionSetMode:
		c.handleSessionSetMode(env)
	case MethodSessionSendMessage:
		c.handleSessionSendMessage(ctx, env)
	case MethodSessionCancel:
		c.handleSessionCancel(env)
	case MethodContextUpdate:
		c.handleContextUpdate(env)
	case MethodApprovalRespond:
		c.handleApprovalRespond(env)
	case MethodQuestionnaireRespond:
		c.handleQuestionnaireRespond(env)
	case MethodSessionClose:
		c.handleSessionClose(env)
	default:
		c.sendError(env.ID, ErrInvalidRequest, fmt.Sprintf("unknown method %q", env.Method))
	}
}

func (c *conn) isInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

func (c *conn) handleInitialize(env Envelope) {
	var params InitializeParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	if params.ProtocolVersion != ProtocolVersion {
		c.sendError(env.ID, ErrUnsupportedVersion, fmt.Sprintf("server supports version %s", ProtocolVersion))
		return
	}
	if c.server.auth != nil {
		if err := c.server.auth.Validate(params.Token); err != nil {
			c.sendError(env.ID, ErrUnauthorized, err.Error())
			return
		}
	}
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	c.sendResult(env.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerName:      "agentcore",
		MaxSessions:     MaxSessions,
	})
}

func (c *conn) handleSessionCreate(env Envelope) {
	var params SessionCreateParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}

	c.mu.Lock()
	if len(c.sessions) >= MaxSessions {
		c.mu.Unlock()
		c.sendError(env.ID, ErrSessionBusy, fmt.Sprintf("at most %d sessions per connection", MaxSessions))
		return
	}
	c.mu.Unlock()

	sess, err := c.server.factory.newSession(c, params)
	if err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}

	c.mu.Lock()
	c.sessions[sess.id] = sess
	c.mu.Unlock()

	c.sendResult(env.ID, SessionCreateResult{SessionID: sess.id, Mode: params.Mode})
	c.notifySessionStatus(sess.id, "created", params.Mode)
}

func (c *conn) handleSessionSetMode(env Envelope) {
	var params SessionSetModeParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	sess, ok := c.lookup(params.SessionID)
	if !ok {
		c.sendError(env.ID, ErrSessionNotFound, params.SessionID)
		return
	}
	mode, ok := parseMode(params.Mode)
	if !ok {
		c.sendError(env.ID, ErrInvalidRequest, fmt.Sprintf("unknown mode %q", params.Mode))
		return
	}
	sess.mc.SwitchMode(mode)
	c.sendResult(env.ID, map[string]string{"status": "requested"})
	c.notifySessionStatus(sess.id, "mode_changed", params.Mode)
}

func (c *conn) handleSessionSendMessage(ctx context.Context, env Envelope) {
	var params SessionSendMessageParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	if len(params.Message) > MaxMessageBytes {
		c.sendError(env.ID, ErrPayloadTooLarge, "message exceeds the per-message size cap")
		return
	}
	sess, ok := c.lookup(params.SessionID)
	if !ok {
		c.sendError(env.ID, ErrSessionNotFound, params.SessionID)
		return
	}
	if !c.limiter.Allow(sess.id) {
		c.sendError(env.ID, ErrRateLimited, "too many requests for this session")
		return
	}
	if !sess.setBusy(true) {
		c.sendError(env.ID, ErrSessionBusy, "a turn is already in flight for this session")
		return
	}

	sess.touch()
	go func() {
		defer sess.setBusy(false)
		resp, err := sess.mc.Chat(ctx, params.Message)
		if err != nil {
			c.notifyErrorEvent(sess.id, ErrInvalidRequest, err.Error())
			return
		}
		c.notifyResponseFinal(sess.id, resp)
	}()

	c.sendResult(env.ID, map[string]string{"status": "accepted"})
}

func (c *conn) handleSessionCancel(env Envelope) {
	var params SessionCancelParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	sess, ok := c.lookup(params.SessionID)
	if !ok {
		c.sendError(env.ID, ErrSessionNotFound, params.SessionID)
		return
	}
	sess.loop.RequestCancel()
	c.sendResult(env.ID, map[string]string{"status": "cancel requested"})
}

func (c *conn) handleContextUpdate(env Envelope) {
	var params ContextUpdateParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	if len(params.Buffers) > 64 {
		c.sendError(env.ID, ErrPayloadTooLarge, "buffer list exceeds the 64 entry cap")
		return
	}
	if _, ok := c.lookup(params.SessionID); !ok {
		c.sendError(env.ID, ErrSessionNotFound, params.SessionID)
		return
	}
	// Editor-pushed context (open buffers, selection) is informational only
	// in this core; it is accepted and acknowledged but not yet folded into
	// the conversation context (see DESIGN.md open question).
	c.sendResult(env.ID, map[string]string{"status": "accepted"})
}

func (c *conn) handleApprovalRespond(env Envelope) {
	var params ApprovalRespondParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	sess, ok := c.lookup(params.SessionID)
	if !ok {
		c.sendError(env.ID, ErrSessionNotFound, params.SessionID)
		return
	}
	answer := interaction.ApprovalAnswer{
		Reply:         interaction.ApprovalReply(params.Reply),
		SelectedIndex: params.SelectedIndex,
	}
	if err := sess.channel.Reply(params.RequestID, answer); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	c.sendResult(env.ID, map[string]string{"status": "ok"})
}

func (c *conn) handleQuestionnaireRespond(env Envelope) {
	var params QuestionnaireRespondParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	sess, ok := c.lookup(params.SessionID)
	if !ok {
		c.sendError(env.ID, ErrSessionNotFound, params.SessionID)
		return
	}
	answer := interaction.QuestionnaireAnswer{Answers: params.Answers, Cancelled: params.Cancelled}
	if err := sess.channel.ReplyQuestionnaire(params.RequestID, answer); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	c.sendResult(env.ID, map[string]string{"status": "ok"})
}

func (c *conn) handleSessionClose(env Envelope) {
	var params SessionCloseParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		c.sendError(env.ID, ErrInvalidRequest, err.Error())
		return
	}
	c.mu.Lock()
	sess, ok := c.sessions[params.SessionID]
	if ok {
		delete(c.sessions, params.SessionID)
	}
	c.mu.Unlock()
	if !ok {
		c.sendError(env.ID, ErrSessionNotFound, params.SessionID)
		return
	}
	sess.close()
	c.sendResult(env.ID, map[string]string{"status": "closed"})
	c.notifySessionStatus(params.SessionID, "closed", "")
}

func (c *conn) lookup(sessionID string) (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[sessionID]
	return sess, ok
}

func (c *conn) closeAll() {
	c.mu.Lock()
	sessions := make([]*session, 0, len(c.sessions))
	for _, sess := range c.sessions {
		sessions = append(sessions, sess)
	}
	c.sessions = map[string]*session{}
	c.mu.Unlock()
	for _, sess := range sessions {
		sess.close()
	}
}

func (c *conn) sendResult(id string, result any) {
	payload, err := json.Marshal(result)
	if err != nil {
		c.sendError(id, ErrInvalidRequest, err.Error())
		return
	}
	c.writeResponse(&Response{ID: id, Result: payload})
}

func (c *conn) sendError(id string, code ErrorCode, message string) {
	c.writeResponse(&Response{ID: id, Error: &ErrorPayload{Code: code, Message: message}})
}

func (c *conn) writeResponse(resp *Response) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := WriteFrame(c.w, resp); err != nil {
		c.server.logger.Warn("remote: write response failed", "error", err)
	}
}

func (c *conn) notify(notification string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		c.server.logger.Warn("remote: marshal notification failed", "error", err, "notification", notification)
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := WriteFrame(c.w, &Envelope{Notification: notification, Data: payload}); err != nil {
		c.server.logger.Warn("remote: write notification failed", "error", err)
	}
}

func (c *conn) notifyResponseDelta(sessionID, text string) {
	c.notify(NotifyResponseDelta, ResponseDeltaPayload{SessionID: sessionID, Text: text})
}

func (c *conn) notifyToolEvent(sessionID, phase, tool string, success bool, output string) {
	c.notify(NotifyToolEvent, ToolEventPayload{SessionID: sessionID, Phase: phase, Tool: tool, Success: success, Output: output})
}

func (c *conn) notifyApprovalRequest(sessionID string, req *interaction.Request) {
	ar := req.Approval
	patterns := make([]SuggestedPatternPayload, 0, len(ar.SuggestedPatterns))
	for _, p := range ar.SuggestedPatterns {
		patterns = append(patterns, SuggestedPatternPayload{Pattern: p.Pattern, MatchType: p.MatchType, Description: p.Description})
	}
	c.notify(NotifyApprovalRequest, ApprovalRequestPayload{
		SessionID:         sessionID,
		RequestID:         req.ID,
		Tool:              ar.Tool,
		Command:           ar.Command,
		Risk:              ar.Risk.String(),
		SuggestedPatterns: patterns,
	})
}

func (c *conn) notifyQuestionnaireRequest(sessionID string, req *interaction.Request) {
	qr := req.Questionnaire
	questions := make([]QuestionPayload, 0, len(qr.Questions))
	for _, q := range qr.Questions {
		questions = append(questions, QuestionPayload{ID: q.ID, Prompt: q.Prompt, Kind: string(q.Kind), Options: q.Options})
	}
	c.notify(NotifyQuestionnaireRequest, QuestionnaireRequestPayload{
		SessionID: sessionID,
		RequestID: req.ID,
		Title:     qr.Title,
		Questions: questions,
	})
}

func (c *conn) notifyResponseFinal(sessionID string, resp *agent.AgentResponse) {
	c.notify(NotifyResponseFinal, ResponseFinalPayload{
		SessionID:           sessionID,
		Text:                resp.Text,
		ToolCallsMade:       resp.ToolCallsMade,
		AutoCompacted:       resp.AutoCompacted,
		ContextUsagePercent: resp.ContextUsagePercent,
		Cancelled:           resp.Cancelled,
	})
}

func (c *conn) notifySessionStatus(sessionID, status, mode string) {
	c.notify(NotifySessionStatus, SessionStatusPayload{SessionID: sessionID, Status: status, Mode: mode})
}

func (c *conn) notifyErrorEvent(sessionID string, code ErrorCode, message string) {
	c.notify(NotifyErrorEvent, ErrorEventPayload{SessionID: sessionID, Code: code, Message: message})
}
