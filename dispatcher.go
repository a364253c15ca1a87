package tgdispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prilive-com/tgdispatch/botapi"
	"github.com/prilive-com/tgdispatch/internal/syncutil"
	"github.com/prilive-com/tgdispatch/tg"
)

// stopTimeout bounds how long Shutdown and StopReceiving wait for a loop
// to wind down before giving up on the join.
const stopTimeout = 5 * time.Second

// API is the remote Telegram surface the dispatcher drives. The botapi
// package provides the production implementation; tests substitute fakes.
type API interface {
	// SendMessage delivers text to the chat. Chat IDs are numeric
	// identifiers or "@"-prefixed channel usernames.
	SendMessage(ctx context.Context, chatID string, text string) error

	// GetUpdates long-polls for updates with identifiers >= offset,
	// blocking up to timeoutSeconds server-side.
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]tg.Update, error)

	// Close releases any resources held by the client.
	Close() error
}

// directItem is an outbound message addressed to a specific chat. Direct
// items take priority over broadcasts in the sender loop.
type directItem struct {
	text   string
	chatID int64
}

// Dispatcher owns the outbound queues, the handler registry, and the two
// background loops that connect them to Telegram. One Dispatcher serves a
// whole process; use Default for the shared instance or New for an
// isolated one (tests, embedding).
//
// All exported methods are safe for concurrent use. Send and registry
// operations never block the caller; Initialize, Shutdown, and
// StopReceiving block up to a bounded timeout while loops settle.
type Dispatcher struct {
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	cfg         Config
	api         API

	registry *handlerRegistry

	directQ    chan directItem
	broadcastQ chan string

	stopCh        chan struct{}
	senderWG      sync.WaitGroup
	senderRunning bool
	senderGen     uint64

	// stopWait bounds loop joins; tests shorten it.
	stopWait time.Duration

	polling    atomic.Bool
	pollCancel context.CancelFunc
	pollWG     sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates an uninitialized Dispatcher. Call Initialize before sending
// or receiving.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: newHandlerRegistry(),
		stopWait: stopTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// InitOption configures a single Initialize call.
type InitOption func(*initOptions)

type initOptions struct {
	cfg      *Config
	envFiles []string
	api      API
}

// WithConfig supplies the settings explicitly, skipping environment
// loading entirely.
func WithConfig(cfg Config) InitOption {
	return func(o *initOptions) {
		o.cfg = &cfg
	}
}

// WithEnvFiles points environment loading at specific .env files.
// Ignored when WithConfig is also given.
func WithEnvFiles(paths ...string) InitOption {
	return func(o *initOptions) {
		o.envFiles = paths
	}
}

// WithAPI injects the remote API client, replacing the botapi client the
// dispatcher would otherwise construct from its settings.
func WithAPI(api API) InitOption {
	return func(o *initOptions) {
		o.api = api
	}
}

// Initialize resolves the settings, constructs the API client, and starts
// the sender loop. It is idempotent: once the dispatcher is initialized,
// further calls return nil immediately and construct nothing.
func (d *Dispatcher) Initialize(opts ...InitOption) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}

	var cfg Config
	if o.cfg != nil {
		cfg = *o.cfg
	} else {
		loaded, err := LoadConfig(o.envFiles...)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = *loaded
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	api := o.api
	if api == nil {
		client, err := botapi.New(botapi.Config{
			Token:     cfg.Token,
			BaseURL:   cfg.APIBaseURL,
			ParseMode: cfg.ParseMode,
		}, botapi.WithLogger(d.logger))
		if err != nil {
			return err
		}
		api = client
	}

	d.cfg = cfg
	d.api = api
	d.directQ = make(chan directItem, cfg.QueueSize)
	d.broadcastQ = make(chan string, cfg.QueueSize)
	d.stopCh = make(chan struct{})

	if !d.senderRunning {
		d.senderRunning = true
		d.senderGen++
		gen := d.senderGen
		api, cfg, stop, direct, broadcast := d.api, d.cfg, d.stopCh, d.directQ, d.broadcastQ
		syncutil.Go(&d.senderWG, func() {
			defer d.senderExited(gen)
			d.senderLoop(api, cfg, stop, direct, broadcast)
		})
	}

	d.initialized = true
	d.logger.Info("dispatcher initialized",
		"channel", cfg.NormalizedChannelID(),
		"send_delay", cfg.SendDelay,
	)
	return nil
}

// Initialized reports whether Initialize has completed.
func (d *Dispatcher) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// Shutdown stops both loops and releases the API client. It is
// idempotent and safe to call on a never-initialized dispatcher. Queued
// but unsent messages are discarded.
func (d *Dispatcher) Shutdown() error {
	d.mu.Lock()
	if d.stopCh != nil {
		close(d.stopCh)
		d.stopCh = nil
	}
	d.mu.Unlock()

	d.StopReceiving()

	// Join outside the mutex: the exiting sender loop needs it to clear
	// its liveness flag.
	var err error
	if !syncutil.WaitTimeout(&d.senderWG, d.stopWait) {
		err = fmt.Errorf("sender: %w", ErrShutdownTimeout)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api != nil {
		if cerr := d.api.Close(); cerr != nil && err == nil {
			err = cerr
		}
		d.api = nil
	}
	if d.initialized {
		d.initialized = false
		d.logger.Info("dispatcher shut down")
	}
	return err
}

// Reset shuts the dispatcher down (swallowing any error) and discards all
// state, yielding a dispatcher equivalent to a freshly constructed one.
// Intended for test isolation.
func (d *Dispatcher) Reset() {
	if err := d.Shutdown(); err != nil {
		d.logger.Debug("shutdown during reset", "error", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = Config{}
	d.api = nil
	d.registry = newHandlerRegistry()
	d.directQ = nil
	d.broadcastQ = nil
	d.stopCh = nil
	// A sender loop that outlived the shutdown wait exits on its own; it
	// holds the old stop channel and queues, not the fresh ones.
	d.senderRunning = false
	d.initialized = false
}

// AddHandler registers h for inbound updates. Adding the same handler
// again is a no-op. When the registry transitions from empty to one
// handler, receiving starts automatically; the returned error is the
// StartReceiving result (the handler stays registered either way).
func (d *Dispatcher) AddHandler(h Handler) error {
	if d.registry.add(h) == 1 {
		return d.StartReceiving()
	}
	return nil
}

// RemoveHandler unregisters h. It returns true iff h was present.
// Removing the last handler does not stop the poll loop.
func (d *Dispatcher) RemoveHandler(h Handler) bool {
	return d.registry.remove(h)
}

// ClearHandlers empties the registry without stopping the poll loop.
func (d *Dispatcher) ClearHandlers() {
	d.registry.clear()
}

// HandlerCount returns the number of registered handlers.
func (d *Dispatcher) HandlerCount() int {
	return d.registry.len()
}

// StartReceiving starts the poll loop. It requires an initialized
// dispatcher and at least one registered handler; with an empty registry
// it logs a warning and returns nil. A second call while already
// receiving is a no-op.
func (d *Dispatcher) StartReceiving() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return ErrNotInitialized
	}
	if d.registry.empty() {
		d.logger.Warn("no handlers registered, not starting to receive; call AddHandler first")
		return nil
	}
	if d.polling.Load() {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.pollCancel = cancel
	d.polling.Store(true)

	api, cfg, reg, stop := d.api, d.cfg, d.registry, d.stopCh
	syncutil.Go(&d.pollWG, func() {
		d.pollLoop(ctx, api, cfg, reg, stop)
	})

	d.logger.Info("started receiving updates", "poll_timeout", cfg.PollTimeout)
	return nil
}

// StopReceiving signals the poll loop to stop and waits up to five
// seconds for it to exit. Safe to call when not receiving.
func (d *Dispatcher) StopReceiving() {
	d.mu.Lock()
	cancel := d.pollCancel
	d.pollCancel = nil
	wasPolling := d.polling.Swap(false)
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !wasPolling {
		return
	}
	if !syncutil.WaitTimeout(&d.pollWG, d.stopWait) {
		d.logger.Warn("poll loop did not stop within timeout")
		return
	}
	d.logger.Info("stopped receiving updates")
}

// Receiving reports whether the poll loop is running.
func (d *Dispatcher) Receiving() bool {
	return d.polling.Load()
}

// SendBroadcast enqueues text for the configured channel. The call never
// blocks: with a full queue the message is dropped and a warning logged.
func (d *Dispatcher) SendBroadcast(text string) error {
	q, err := d.broadcastQueue()
	if err != nil {
		return err
	}
	select {
	case q <- text:
	default:
		d.logger.Warn("broadcast queue full, dropping message")
	}
	return nil
}

// SendDirect enqueues text for a specific chat. Direct messages are
// drained before broadcasts.
func (d *Dispatcher) SendDirect(text string, chatID int64) error {
	d.mu.Lock()
	if !d.initialized {
		d.mu.Unlock()
		return ErrNotInitialized
	}
	q := d.directQ
	d.mu.Unlock()

	d.warnIfNoHandlers()
	select {
	case q <- directItem{text: text, chatID: chatID}:
	default:
		d.logger.Warn("direct queue full, dropping message", "chat_id", chatID)
	}
	return nil
}

// SendURL enqueues a broadcast of the configured base URL joined with
// path. With an empty base URL the path is broadcast as-is, minus any
// leading slash.
func (d *Dispatcher) SendURL(path string) error {
	d.mu.Lock()
	if !d.initialized {
		d.mu.Unlock()
		return ErrNotInitialized
	}
	base := d.cfg.BaseURL
	q := d.broadcastQ
	d.mu.Unlock()

	d.warnIfNoHandlers()
	full := joinURL(base, path)
	select {
	case q <- full:
	default:
		d.logger.Warn("broadcast queue full, dropping URL", "url", full)
	}
	return nil
}

func (d *Dispatcher) broadcastQueue() (chan string, error) {
	d.mu.Lock()
	if !d.initialized {
		d.mu.Unlock()
		return nil, ErrNotInitialized
	}
	q := d.broadcastQ
	d.mu.Unlock()

	d.warnIfNoHandlers()
	return q, nil
}

func (d *Dispatcher) warnIfNoHandlers() {
	if d.registry.empty() {
		d.logger.Warn("no message handlers registered; inbound replies will not be seen")
	}
}

// joinURL glues base and path with exactly one separating slash. An empty
// base yields the path without its leading slashes.
func joinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	path = strings.TrimLeft(path, "/")
	if base == "" {
		return path
	}
	return base + "/" + path
}
