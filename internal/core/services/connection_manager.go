package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"
	"weylus/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ConnectionManagerConfig tunes the session lifecycle.
type ConnectionManagerConfig struct {
	HandshakeTimeout       time.Duration
	SendTimeout            time.Duration
	OutboundQueueSize      int
	InputMessagesPerSecond float64 // 0 disables pacing
	InputBurst             int
	KeyframeRequestEvery   time.Duration
	SettingsLoadTimeout    time.Duration
}

func DefaultConnectionManagerConfig() ConnectionManagerConfig {
	return ConnectionManagerConfig{
		HandshakeTimeout:       domain.WebSocketTimeout,
		SendTimeout:            2 * time.Second,
		OutboundQueueSize:      64,
		InputMessagesPerSecond: 0,
		InputBurst:             32,
		KeyframeRequestEvery:   time.Second,
		SettingsLoadTimeout:    500 * time.Millisecond,
	}
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type Option func(*ConnectionManager)

func WithConfig(cfg ConnectionManagerConfig) Option {
	return func(m *ConnectionManager) { m.cfg = cfg }
}

func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(m *ConnectionManager) { m.policy = p }
}

func WithKeepAlive(k ports.KeepAlive) Option {
	return func(m *ConnectionManager) { m.keepAlive = k }
}

func WithSettingsStore(s ports.SettingsStore) Option {
	return func(m *ConnectionManager) { m.settings = s }
}

func WithSessionMetrics(sm ports.SessionMetrics) Option {
	return func(m *ConnectionManager) { m.metrics = sm }
}

func WithSessionID(id string) Option {
	return func(m *ConnectionManager) { m.sessionID = id }
}

// WithAfterFunc replaces the retry timer scheduler.
func WithAfterFunc(f AfterFunc) Option {
	return func(m *ConnectionManager) { m.afterFunc = f }
}

type connectTarget struct {
	url        string
	accessCode string
}

// liveConn is the transport of the current Connected state.
type liveConn struct {
	gen       uint64
	transport ports.Transport
	outbound  *boundedQueue[[]byte]
	pli       *rate.Limiter
	cancel    context.CancelFunc
}

// ConnectionManager owns the session state machine. Every transition runs on
// a single actor goroutine; public methods and transport callbacks post
// commands to it. Callbacks carry the generation they were created for, and
// anything from an older generation is ignored.
type ConnectionManager struct {
	cfg       ConnectionManagerConfig
	dialer    ports.Dialer
	codec     ports.MessageCodec
	policy    ReconnectPolicy
	buffer    *VideoStreamBuffer
	filter    *InputEventFilter
	monitor   *PerformanceMonitor
	keepAlive ports.KeepAlive
	settings  ports.SettingsStore
	metrics   ports.SessionMetrics
	logger    *zap.SugaredLogger
	afterFunc AfterFunc
	sessionID string

	ctx       context.Context
	stop      context.CancelFunc
	cmds      chan func()
	done      chan struct{}
	closeOnce sync.Once

	// actor-owned
	target        connectTarget
	attempts      int
	cancelAttempt context.CancelFunc
	attemptStart  time.Time
	stopRetry     func() bool
	appliedVideo  domain.VideoConfig

	gen  atomic.Uint64
	live atomic.Pointer[liveConn]

	stateMu sync.RWMutex
	state   domain.ConnectionState

	subsMu  sync.Mutex
	subs    map[int]*stateSubscriber
	nextSub int
}

func NewConnectionManager(
	dialer ports.Dialer,
	codec ports.MessageCodec,
	buffer *VideoStreamBuffer,
	filter *InputEventFilter,
	monitor *PerformanceMonitor,
	logger *zap.SugaredLogger,
	opts ...Option,
) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	m := &ConnectionManager{
		cfg:       DefaultConnectionManagerConfig(),
		dialer:    dialer,
		codec:     codec,
		policy:    DefaultReconnectPolicy(),
		buffer:    buffer,
		filter:    filter,
		monitor:   monitor,
		metrics:   ports.NopSessionMetrics{},
		logger:    logger,
		afterFunc: realAfterFunc,
		sessionID: uuid.NewString(),
		cmds:      make(chan func(), 64),
		done:      make(chan struct{}),
		state:     domain.Disconnected(),
		subs:      make(map[int]*stateSubscriber),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.appliedVideo = buffer.CurrentConfig()
	buffer.SetNegotiator(m)

	m.ctx, m.stop = context.WithCancel(context.Background())
	go m.run()
	if m.settings != nil {
		go m.watchSettings()
	}
	return m
}

func (m *ConnectionManager) run() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			return
		case cmd := <-m.cmds:
			cmd()
		}
	}
}

// post queues fn on the actor. It returns false once the manager is closed.
func (m *ConnectionManager) post(fn func()) bool {
	select {
	case m.cmds <- fn:
		return true
	case <-m.done:
		return false
	}
}

// call runs fn on the actor and waits for its result.
func (m *ConnectionManager) call(fn func() domain.ConnectionState) domain.ConnectionState {
	reply := make(chan domain.ConnectionState, 1)
	if !m.post(func() { reply <- fn() }) {
		return m.State()
	}
	select {
	case s := <-reply:
		return s
	case <-m.done:
		return m.State()
	}
}

// State returns the current connection state.
func (m *ConnectionManager) State() domain.ConnectionState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

func (m *ConnectionManager) SessionID() string {
	return m.sessionID
}

// Connect starts a session with the host at serverURL. It returns without
// waiting for the handshake; progress is published on the state stream. When
// a session is already connecting or connected the call does nothing and
// returns the current state.
func (m *ConnectionManager) Connect(serverURL, accessCode string) domain.ConnectionState {
	return m.call(func() domain.ConnectionState {
		return m.handleConnect(serverURL, accessCode)
	})
}

// Disconnect ends the session. Pending retries and in-flight handshakes are
// cancelled before the state leaves Disconnecting.
func (m *ConnectionManager) Disconnect() domain.ConnectionState {
	return m.call(m.handleDisconnect)
}

// Close disconnects and stops the actor. The state stream is closed.
func (m *ConnectionManager) Close() {
	m.closeOnce.Do(func() {
		m.Disconnect()
		m.stop()
		<-m.done

		m.subsMu.Lock()
		for id, sub := range m.subs {
			sub.close()
			delete(m.subs, id)
		}
		m.subsMu.Unlock()
	})
}

// SendInput filters a pointer sample and queues it for the host. It never
// blocks: when the outbound queue is full the oldest unsent sample is dropped.
// It reports whether the sample was queued.
func (m *ConnectionManager) SendInput(sample domain.InputSample) bool {
	conn := m.live.Load()
	if conn == nil {
		return false
	}

	out, accepted := m.filter.Filter(sample)
	m.metrics.RecordInput(accepted)
	if !accepted {
		return false
	}

	data, err := m.codec.EncodeInput(out)
	if err != nil {
		m.logger.Warnw("failed to encode input sample", "pointer_id", sample.PointerID, "error", err)
		return false
	}
	if _, dropped := conn.outbound.Push(data); dropped {
		m.logger.Debugw("outbound input queue full, dropped oldest sample")
	}
	return true
}

// NegotiateVideoConfig asks the host to stream with cfg. It is a no-op while
// not connected.
func (m *ConnectionManager) NegotiateVideoConfig(cfg domain.VideoConfig) {
	conn := m.live.Load()
	if conn == nil {
		return
	}

	ctx, span := tracing.TraceQualityChange(m.ctx, cfg.Quality.String(), cfg.Quality.Bitrate())
	defer span.End()

	if err := m.sendControl(ctx, conn, cfg); err != nil {
		tracing.RecordError(ctx, err)
		m.logger.Warnw("failed to negotiate video config", "quality", cfg.Quality.String(), "error", err)
		return
	}
	m.metrics.RecordQualityChange(cfg.Quality)
}

func (m *ConnectionManager) sendControl(ctx context.Context, conn *liveConn, cfg domain.VideoConfig) error {
	data, err := m.codec.EncodeVideoConfig(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	defer cancel()
	return conn.transport.Send(ctx, ports.TextMessage, data)
}

// Subscribe returns a stream of every state transition from now on, in order.
// The returned function unsubscribes and closes the stream.
func (m *ConnectionManager) Subscribe() (<-chan domain.StateEvent, func()) {
	sub := newStateSubscriber()

	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = sub
	m.subsMu.Unlock()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			m.subsMu.Lock()
			delete(m.subs, id)
			m.subsMu.Unlock()
			sub.close()
		})
	}
}

func (m *ConnectionManager) transition(to domain.ConnectionState) {
	m.stateMu.Lock()
	from := m.state
	m.state = to
	m.stateMu.Unlock()

	m.metrics.RecordTransition(from.Kind, to.Kind)
	m.logger.Infow("connection state changed",
		"from", from.String(),
		"to", to.String(),
		"session_id", m.sessionID,
	)

	event := domain.StateEvent{From: from, To: to}
	m.subsMu.Lock()
	for _, sub := range m.subs {
		sub.publish(event)
	}
	m.subsMu.Unlock()
}

func (m *ConnectionManager) handleConnect(serverURL, accessCode string) domain.ConnectionState {
	current := m.State()
	if !current.CanConnect() {
		m.logger.Debugw("connect ignored", "state", current.String(), "server_url", serverURL)
		return current
	}

	m.target = connectTarget{url: serverURL, accessCode: accessCode}
	m.attempts = 0
	m.loadSettings()

	m.transition(domain.Connecting())
	m.startAttempt()
	return m.State()
}

func (m *ConnectionManager) handleDisconnect() domain.ConnectionState {
	current := m.State()
	if current.Kind == domain.StateDisconnected || current.Kind == domain.StateDisconnecting {
		return current
	}

	m.gen.Add(1)
	m.cancelPending()
	m.transition(domain.Disconnecting())

	m.teardown()
	m.attempts = 0
	m.transition(domain.Disconnected())
	if m.keepAlive != nil {
		m.keepAlive.Stop()
	}
	return m.State()
}

func (m *ConnectionManager) cancelPending() {
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	if m.stopRetry != nil {
		m.stopRetry()
		m.stopRetry = nil
	}
}

// teardown closes the live transport and discards per-connection state.
func (m *ConnectionManager) teardown() {
	if conn := m.live.Swap(nil); conn != nil {
		conn.cancel()
		conn.outbound.Clear()
		if err := conn.transport.Close(); err != nil {
			m.logger.Debugw("error closing transport", "error", err)
		}
	}
	m.buffer.Clear()
	m.filter.Reset()
}

func (m *ConnectionManager) startAttempt() {
	gen := m.gen.Add(1)
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.HandshakeTimeout)
	m.cancelAttempt = cancel
	m.attemptStart = time.Now()

	handler := &sessionHandler{
		m:       m,
		gen:     gen,
		decoder: m.codec.NewFrameDecoder(),
	}
	go m.dial(ctx, handler, m.target, m.attempts+1)
}

type dialResult struct {
	transport ports.Transport
	err       error
}

// dial runs the handshake under the watchdog in ctx and reports the outcome
// to the actor.
func (m *ConnectionManager) dial(ctx context.Context, handler *sessionHandler, target connectTarget, attempt int) {
	ctx, span := tracing.TraceHandshake(ctx, target.url, m.sessionID, attempt)
	defer span.End()

	results := make(chan dialResult, 1)
	go func() {
		t, err := m.dialer.Dial(ctx, target.url, m.handshakeHeader(target), handler)
		results <- dialResult{transport: t, err: err}
	}()

	var res dialResult
	select {
	case res = <-results:
		if res.err != nil {
			res.err = classifyDialError(ctx, res.err, m.cfg.HandshakeTimeout)
		}
	case <-ctx.Done():
		res.err = classifyDialError(ctx, ctx.Err(), m.cfg.HandshakeTimeout)
		go func() {
			if late := <-results; late.transport != nil {
				late.transport.Close()
			}
		}()
	}
	if res.err != nil {
		tracing.RecordError(ctx, res.err)
	}

	posted := m.post(func() { m.handleHandshakeResult(handler, res.transport, res.err) })
	if !posted && res.transport != nil {
		res.transport.Close()
	}
}

func classifyDialError(ctx context.Context, err error, timeout time.Duration) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", domain.ErrTimeout, timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrTimeout), errors.Is(err, domain.ErrProtocol):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
}

func (m *ConnectionManager) handshakeHeader(target connectTarget) http.Header {
	header := http.Header{}
	header.Set("X-Client-Name", domain.ClientName)
	header.Set("X-Session-ID", m.sessionID)
	if target.accessCode != "" {
		header.Set("X-Access-Code", target.accessCode)
	}
	return header
}

func (m *ConnectionManager) handleHandshakeResult(handler *sessionHandler, transport ports.Transport, err error) {
	if handler.gen != m.gen.Load() || m.State().Kind != domain.StateConnecting {
		if transport != nil {
			transport.Close()
		}
		return
	}
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	m.metrics.RecordHandshake(err == nil, time.Since(m.attemptStart).Seconds())

	if err == nil {
		if closeErr, closed := handler.closedWith(); closed {
			transport.Close()
			err = fmt.Errorf("%w: closed during handshake: %v", domain.ErrTransport, closeErr)
		}
	}
	if err != nil {
		m.handleFailure(err)
		return
	}

	connCtx, cancel := context.WithCancel(m.ctx)
	conn := &liveConn{
		gen:       handler.gen,
		transport: transport,
		outbound:  newBoundedQueue[[]byte](m.cfg.OutboundQueueSize),
		pli:       rate.NewLimiter(rate.Every(m.cfg.KeyframeRequestEvery), 1),
		cancel:    cancel,
	}
	m.live.Store(conn)
	go m.writeLoop(connCtx, conn)

	m.attempts = 0
	m.transition(domain.Connected(m.target.url))

	cfg := m.buffer.CurrentConfig()
	go func() {
		if err := m.sendControl(connCtx, conn, cfg); err != nil {
			m.logger.Warnw("failed to send initial video config", "error", err)
		}
	}()
	if m.keepAlive != nil {
		m.keepAlive.Start(displayName(m.target.url), func() { m.Disconnect() })
	}
}

// handleFailure applies the reconnect policy to a failed handshake or a
// dropped connection. The state is Connecting when it is called.
func (m *ConnectionManager) handleFailure(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, domain.ErrProtocol) {
		m.fail(fmt.Sprintf("protocol error: %v", err), err)
		return
	}

	m.attempts++
	if m.policy.ShouldGiveUp(m.attempts) {
		m.logger.Warnw("giving up reconnecting",
			"server_url", m.target.url,
			"attempts", m.attempts,
			"error", err,
		)
		m.fail(domain.ErrExhaustedRetries.Error(), fmt.Errorf("%w: %v", domain.ErrExhaustedRetries, err))
		return
	}

	delay := m.policy.DelayFor(m.attempts)
	gen := m.gen.Load()
	m.logger.Infow("connection attempt failed, retry scheduled",
		"server_url", m.target.url,
		"attempt", m.attempts,
		"delay", delay,
		"error", err,
	)
	m.stopRetry = m.afterFunc(delay, func() {
		m.post(func() { m.handleRetry(gen) })
	})
}

func (m *ConnectionManager) handleRetry(gen uint64) {
	if gen != m.gen.Load() || m.State().Kind != domain.StateConnecting || m.stopRetry == nil {
		return
	}
	m.stopRetry = nil
	m.metrics.RecordReconnectAttempt()
	m.startAttempt()
}

// fail moves to the terminal Error state. Only an explicit Connect leaves it.
func (m *ConnectionManager) fail(message string, cause error) {
	m.gen.Add(1)
	m.cancelPending()
	m.teardown()
	m.attempts = 0
	m.transition(domain.Failed(message, cause))
	if m.keepAlive != nil {
		m.keepAlive.Stop()
	}
}

func (m *ConnectionManager) handleDrop(gen uint64, cause error) {
	if gen != m.gen.Load() || m.State().Kind != domain.StateConnected {
		return
	}
	m.logger.Warnw("connection dropped by transport, recovering",
		"server_url", m.target.url,
		"error", cause,
	)
	m.gen.Add(1)
	m.teardown()
	m.transition(domain.Connecting())
	m.handleFailure(fmt.Errorf("%w: connection dropped: %v", domain.ErrTransport, cause))
}

func (m *ConnectionManager) handleProtocolError(gen uint64, err error) {
	if gen != m.gen.Load() || m.State().Kind != domain.StateConnected {
		return
	}
	m.logger.Errorw("malformed message from host, closing session", "error", err)
	m.fail(fmt.Sprintf("protocol error: %v", err), err)
}

func (m *ConnectionManager) writeLoop(ctx context.Context, conn *liveConn) {
	limit := rate.Inf
	if m.cfg.InputMessagesPerSecond > 0 {
		limit = rate.Limit(m.cfg.InputMessagesPerSecond)
	}
	burst := m.cfg.InputBurst
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.outbound.Ready():
		}

		for {
			data, ok := conn.outbound.Pop()
			if !ok {
				break
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			sendCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
			err := conn.transport.Send(sendCtx, ports.TextMessage, data)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.Debugw("failed to send input", "error", err)
			}
		}
	}
}

// loadSettings refreshes filter and video preferences from the store at
// connect time.
func (m *ConnectionManager) loadSettings() {
	if m.settings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.SettingsLoadTimeout)
	defer cancel()

	s, err := m.settings.Load(ctx)
	if err != nil {
		m.logger.Warnw("failed to load settings, keeping current configuration", "error", err)
		return
	}
	m.applySettings(s)
}

func (m *ConnectionManager) applySettings(s domain.Settings) {
	m.filter.SetConfig(s.PalmRejection)
	m.filter.SetCurve(NewGammaCurve(s.PressureGamma))
	if s.Video == m.appliedVideo {
		return
	}
	m.appliedVideo = s.Video
	m.buffer.SetUserConfig(s.Video)
	if m.live.Load() != nil {
		go m.NegotiateVideoConfig(s.Video)
	}
}

func (m *ConnectionManager) watchSettings() {
	updates, err := m.settings.Watch(m.ctx)
	if err != nil {
		m.logger.Warnw("settings change notifications unavailable", "error", err)
		return
	}
	for s := range updates {
		if !m.post(func() { m.applySettings(s) }) {
			return
		}
	}
}

func displayName(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return serverURL
	}
	return u.Host
}

// sessionHandler receives transport callbacks for one handshake generation.
type sessionHandler struct {
	m       *ConnectionManager
	gen     uint64
	decoder ports.FrameDecoder

	mu       sync.Mutex
	closed   bool
	closeErr error
}

func (h *sessionHandler) OnMessage(kind ports.MessageKind, data []byte) {
	conn := h.m.live.Load()
	if conn == nil || conn.gen != h.gen {
		return
	}
	switch kind {
	case ports.BinaryMessage:
		h.m.handleFrame(h, conn, data)
	case ports.TextMessage:
		h.m.handleControl(h, data)
	}
}

func (h *sessionHandler) OnClose(err error) {
	h.mu.Lock()
	h.closed = true
	h.closeErr = err
	h.mu.Unlock()

	h.m.post(func() { h.m.handleDrop(h.gen, err) })
}

func (h *sessionHandler) closedWith() (error, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeErr, h.closed
}

func (m *ConnectionManager) handleFrame(h *sessionHandler, conn *liveConn, data []byte) {
	m.monitor.RecordFrame(len(data))
	frame, err := h.decoder.Decode(data, time.Now())
	if err != nil {
		m.monitor.RecordDrop()
		m.metrics.RecordFrameDropped("corrupt")
		m.logger.Debugw("dropping corrupt frame", "size", len(data), "error", err)
		if conn.pli.Allow() {
			go m.requestKeyframe(conn, frame.Source)
		}
		return
	}
	m.buffer.Push(frame)
}

// RequestKeyframe asks the host for a fresh keyframe of source, e.g. after the
// renderer lost its reference frame. Requests share the per-connection rate
// limit with corrupt-frame recovery; it reports whether one was sent.
func (m *ConnectionManager) RequestKeyframe(source uint32) bool {
	conn := m.live.Load()
	if conn == nil || !conn.pli.Allow() {
		return false
	}
	go m.requestKeyframe(conn, source)
	return true
}

func (m *ConnectionManager) requestKeyframe(conn *liveConn, source uint32) {
	data, err := m.codec.EncodeKeyframeRequest(source)
	if err != nil {
		m.logger.Debugw("failed to encode keyframe request", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.SendTimeout)
	defer cancel()
	if err := conn.transport.Send(ctx, ports.BinaryMessage, data); err != nil {
		m.logger.Debugw("failed to send keyframe request", "error", err)
	}
}

func (m *ConnectionManager) handleControl(h *sessionHandler, data []byte) {
	msg, err := m.codec.DecodeControl(data)
	if err != nil {
		m.post(func() { m.handleProtocolError(h.gen, err) })
		return
	}
	switch msg.Type {
	case domain.ControlConfigOK:
		m.logger.Debugw("host accepted video config")
	case domain.ControlConfigError:
		m.logger.Warnw("host rejected video config", "message", msg.Message)
	case domain.ControlError:
		m.logger.Warnw("host reported an error", "message", msg.Message)
	case domain.ControlPong:
	}
}

// stateSubscriber buffers events without bound so the actor never waits on
// a slow observer and no transition is lost.
type stateSubscriber struct {
	mu      sync.Mutex
	pending []domain.StateEvent
	notify  chan struct{}
	out     chan domain.StateEvent
	done    chan struct{}
	once    sync.Once
}

func newStateSubscriber() *stateSubscriber {
	s := &stateSubscriber{
		notify: make(chan struct{}, 1),
		out:    make(chan domain.StateEvent),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *stateSubscriber) publish(ev domain.StateEvent) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *stateSubscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *stateSubscriber) close() {
	s.once.Do(func() { close(s.done) })
}
