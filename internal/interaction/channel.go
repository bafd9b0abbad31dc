// Package interaction implements the mailbox of typed requests the tool
// registry and agent loop use to ask the front-end (terminal or remote
// editor) for approval or structured answers, each with a watchdog-enforced
// timeout and an implicit-deny/cancel on drop.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"

	"github.com/google/uuid"
)

// ErrChannelClosed is returned by Post when the channel has been closed.
var ErrChannelClosed = errors.New("interaction: channel closed")

// ErrQueueFull is returned by Post when the bounded mailbox has no room; the
// caller fails synchronously rather than blocking indefinitely.
var ErrQueueFull = errors.New("interaction: queue full")

const (
	// DefaultApprovalTimeout matches the external protocol's default.
	DefaultApprovalTimeout = 120 * time.Second
	// DefaultQuestionnaireTimeout matches the external protocol's default.
	DefaultQuestionnaireTimeout = 180 * time.Second
	// DefaultQueueCapacity bounds the mailbox so a stalled consumer fails
	// new Post calls rather than growing memory without limit.
	DefaultQueueCapacity = 64
)

// RequestKind discriminates the two request variants.
type RequestKind string

const (
	KindApproval      RequestKind = "approval"
	KindQuestionnaire RequestKind = "questionnaire"
)

// ApprovalReply is the consumer's answer to an Approval request.
type ApprovalReply string

const (
	ReplyApprove        ApprovalReply = "approve"
	ReplyApproveSession ApprovalReply = "approve_session"
	ReplyApproveAlways  ApprovalReply = "approve_always"
	ReplyDeny           ApprovalReply = "deny"
	ReplyDenyAlways     ApprovalReply = "deny_always"
)

// SuggestedPattern is one candidate pattern the consumer may pick when
// replying ApproveSession/ApproveAlways or Deny/DenyAlways.
type SuggestedPattern struct {
	Pattern     string
	MatchType   string
	Description string
}

// ApprovalRequest asks whether a classified tool invocation may proceed.
type ApprovalRequest struct {
	Tool               string
	Command            string
	Risk               models.RiskLevel
	SuggestedPatterns  []SuggestedPattern
}

// ApprovalAnswer is the value delivered on an Approval request's reply slot.
type ApprovalAnswer struct {
	Reply          ApprovalReply
	SelectedIndex  int // index into the originating request's SuggestedPatterns, -1 if none
	TimedOut       bool
}

// QuestionKind is the shape of one Questionnaire question.
type QuestionKind string

const (
	QuestionSingleSelect QuestionKind = "single_select"
	QuestionMultiSelect  QuestionKind = "multi_select"
	QuestionFreeText     QuestionKind = "free_text"
)

// Question is one form field of a Questionnaire request.
type Question struct {
	ID      string
	Prompt  string
	Kind    QuestionKind
	Options []string
}

// QuestionnaireRequest asks the user to fill in a small form.
type QuestionnaireRequest struct {
	Title     string
	Questions []Question
}

// QuestionnaireAnswer is the value delivered on a Questionnaire request's
// reply slot: question id to one or more selected/typed values.
type QuestionnaireAnswer struct {
	Answers  map[string][]string
	Cancelled bool
	TimedOut  bool
}

// Request is one enqueued item: exactly one of Approval or Questionnaire is
// set, matching Kind.
type Request struct {
	ID         string
	Kind       RequestKind
	Approval   *ApprovalRequest
	Questionnaire *QuestionnaireRequest
	EnqueuedAt time.Time

	replyOnce sync.Once
	replyCh   chan any
}

// reply delivers a value to this request's one-shot slot. Only the first
// call has effect; later calls (e.g. a race between a real reply and the
// watchdog) are silently dropped.
func (r *Request) reply(v any) {
	r.replyOnce.Do(func() {
		r.replyCh <- v
		close(r.replyCh)
	})
}

// Channel is the single-producer-many-consumer mailbox described by the
// interaction model: producers (the tool registry, questionnaire-asking
// tools) call PostApproval/PostQuestionnaire and block on the returned
// answer; a consumer goroutine (the terminal or remote front-end) calls
// Receive in a loop and calls Reply/ReplyQuestionnaire once per request id.
type Channel struct {
	mu       sync.Mutex
	closed   bool
	pending  map[string]*Request
	queue    chan *Request

	approvalTimeout      time.Duration
	questionnaireTimeout time.Duration

	log *observability.Logger
}

// Config configures a Channel's timeouts and queue depth.
type Config struct {
	ApprovalTimeout      time.Duration
	QuestionnaireTimeout time.Duration
	QueueCapacity        int
	Logger               *observability.Logger
}

// New builds a Channel. Zero-valued Config fields fall back to the
// package defaults.
func New(cfg Config) *Channel {
	approvalTimeout := cfg.ApprovalTimeout
	if approvalTimeout <= 0 {
		approvalTimeout = DefaultApprovalTimeout
	}
	questionnaireTimeout := cfg.QuestionnaireTimeout
	if questionnaireTimeout <= 0 {
		questionnaireTimeout = DefaultQuestionnaireTimeout
	}
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Channel{
		pending:              make(map[string]*Request),
		queue:                make(chan *Request, capacity),
		approvalTimeout:      approvalTimeout,
		questionnaireTimeout: questionnaireTimeout,
		log:                  cfg.Logger,
	}
}

// Receive blocks until a request is enqueued (in enqueue order) or ctx is
// cancelled. The front-end calls this in a loop to drive its UI.
func (c *Channel) Receive(ctx context.Context) (*Request, error) {
	select {
	case req, ok := <-c.queue:
		if !ok {
			return nil, ErrChannelClosed
		}
		return req, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PostApproval enqueues an Approval request and blocks until the consumer
// replies, the watchdog times out, or ctx is cancelled (treated the same as
// a timeout: implicit deny).
func (c *Channel) PostApproval(ctx context.Context, ar ApprovalRequest) (ApprovalAnswer, error) {
	req := c.newRequest(KindApproval)
	req.Approval = &ar

	v, err := c.postAndAwait(ctx, req, c.approvalTimeout)
	if err != nil {
		return ApprovalAnswer{Reply: ReplyDeny, SelectedIndex: -1, TimedOut: errors.Is(err, context.DeadlineExceeded)}, err
	}
	answer, ok := v.(ApprovalAnswer)
	if !ok {
		return ApprovalAnswer{Reply: ReplyDeny, SelectedIndex: -1}, fmt.Errorf("interaction: unexpected reply type %T for approval request", v)
	}
	return answer, nil
}

// PostQuestionnaire enqueues a Questionnaire request and blocks for a reply,
// the same as PostApproval.
func (c *Channel) PostQuestionnaire(ctx context.Context, qr QuestionnaireRequest) (QuestionnaireAnswer, error) {
	req := c.newRequest(KindQuestionnaire)
	req.Questionnaire = &qr

	v, err := c.postAndAwait(ctx, req, c.questionnaireTimeout)
	if err != nil {
		return QuestionnaireAnswer{Cancelled: true, TimedOut: errors.Is(err, context.DeadlineExceeded)}, err
	}
	answer, ok := v.(QuestionnaireAnswer)
	if !ok {
		return QuestionnaireAnswer{Cancelled: true}, fmt.Errorf("interaction: unexpected reply type %T for questionnaire request", v)
	}
	return answer, nil
}

func (c *Channel) newRequest(kind RequestKind) *Request {
	return &Request{
		ID:         uuid.NewString(),
		Kind:       kind,
		EnqueuedAt: time.Now(),
		replyCh:    make(chan any, 1),
	}
}

func (c *Channel) postAndAwait(ctx context.Context, req *Request, timeout time.Duration) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	select {
	case c.queue <- req:
		c.pending[req.ID] = req
	default:
		c.mu.Unlock()
		return nil, ErrQueueFull
	}
	c.mu.Unlock()

	watchdog := time.NewTimer(timeout)
	defer watchdog.Stop()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	select {
	case v := <-req.replyCh:
		return v, nil
	case <-watchdog.C:
		implicit := c.implicitReply(req)
		req.reply(implicit)
		if c.log != nil {
			c.log.Warn(ctx, "interaction request timed out, applying implicit reply", "request_id", req.ID, "kind", req.Kind)
		}
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		req.reply(c.implicitReply(req))
		return nil, ctx.Err()
	}
}

func (c *Channel) implicitReply(req *Request) any {
	switch req.Kind {
	case KindApproval:
		return ApprovalAnswer{Reply: ReplyDeny, SelectedIndex: -1, TimedOut: true}
	default:
		return QuestionnaireAnswer{Cancelled: true, TimedOut: true}
	}
}

// Reply routes an ApprovalAnswer to the pending request with the given id.
// Replying to an unknown or already-answered id is a no-op error, not a
// panic: the request may have already timed out.
func (c *Channel) Reply(requestID string, answer ApprovalAnswer) error {
	req, ok := c.lookup(requestID)
	if !ok {
		return fmt.Errorf("interaction: no pending request %q", requestID)
	}
	req.reply(answer)
	return nil
}

// ReplyQuestionnaire routes a QuestionnaireAnswer to the pending request
// with the given id.
func (c *Channel) ReplyQuestionnaire(requestID string, answer QuestionnaireAnswer) error {
	req, ok := c.lookup(requestID)
	if !ok {
		return fmt.Errorf("interaction: no pending request %q", requestID)
	}
	req.reply(answer)
	return nil
}

func (c *Channel) lookup(requestID string) (*Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[requestID]
	return req, ok
}

// Close stops accepting new requests and implicitly denies/cancels every
// request still pending a reply.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := make([]*Request, 0, len(c.pending))
	for _, req := range c.pending {
		pending = append(pending, req)
	}
	c.mu.Unlock()

	close(c.queue)
	for _, req := range pending {
		req.reply(c.implicitReply(req))
	}
}
