package bridge

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voice-orb/internal/application"
	"voice-orb/internal/domain"
	"voice-orb/internal/ui"
)

//go:embed index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Status     string
	Hint       string
	Cards      []ui.Card
	Bars       []struct{}
	WaveMillis int64
}

var (
	ErrNoPage               = errors.New("no browser page connected")
	ErrSessionActive        = errors.New("capture session already active")
	ErrSynthesisUnavailable = errors.New("speech synthesis is not available")
)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex

	// reported by the page's hello; guarded by Bridge.mu
	recognition bool
	synthesis   bool
}

func (c *client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(msg)
}

// Bridge lets a browser page act as the speech capture, speech output and
// presentation for the controller. The page uses the browser's own speech
// recognition and synthesis and reports back over a websocket.
type Bridge struct {
	addr      string
	assistant string
	logger    *slog.Logger
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
	server    *http.Server

	mu         sync.Mutex
	running    bool
	clients    map[*client]struct{}
	state      domain.State
	onActivate func()
	capture    application.CaptureHandler
	speechID   string
	speech     application.SpeechHandler
}

func New(addr, assistant string, logger *slog.Logger) *Bridge {
	if assistant == "" {
		assistant = ui.DefaultAssistantName
	}
	b := &Bridge{
		addr:      addr,
		assistant: assistant,
		logger:    logger,
		mux:       http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		state:   domain.StateIdle,
	}
	b.mux.HandleFunc("GET /{$}", b.handleIndex)
	b.mux.HandleFunc("GET /health", b.handleHealth)
	b.mux.HandleFunc("GET /state", b.handleState)
	b.mux.HandleFunc("POST /activate", b.handleActivate)
	b.mux.HandleFunc("GET /ws", b.handleWebSocket)
	return b
}

func (b *Bridge) Name() string {
	return "bridge"
}

func (b *Bridge) Handler() http.Handler {
	return b.mux
}

// OnActivate registers the function called when the page's orb is clicked.
func (b *Bridge) OnActivate(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onActivate = fn
}

// Listen starts serving the page, the control endpoints and the websocket.
func (b *Bridge) Listen(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	b.server = &http.Server{
		Addr:         b.addr,
		Handler:      b.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		b.logger.Info("browser bridge starting", "addr", b.addr)
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.logger.Error("HTTP server error", "error", err)
		}
	}()

	b.running = true
	return nil
}

func (b *Bridge) Shutdown() error {
	b.mu.Lock()
	server := b.server
	running := b.running
	b.running = false
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	if !running {
		return nil
	}

	for _, c := range clients {
		c.conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		b.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

// Speech capture

func (b *Bridge) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.anyLocked(canRecognize)
}

func canRecognize(c *client) bool  { return c.recognition }
func canSynthesize(c *client) bool { return c.synthesis }
func anyPage(*client) bool         { return true }

func (b *Bridge) anyLocked(match func(*client) bool) bool {
	for c := range b.clients {
		if match(c) {
			return true
		}
	}
	return false
}

func (b *Bridge) Start(ctx context.Context, opts domain.CaptureOptions, onResult application.CaptureHandler) error {
	b.mu.Lock()
	if b.capture != nil {
		b.mu.Unlock()
		return ErrSessionActive
	}
	b.capture = onResult
	b.mu.Unlock()

	err := b.broadcastTo(canRecognize, Message{
		Type:           TypeCaptureStart,
		Locale:         opts.Locale,
		Continuous:     opts.Continuous,
		InterimResults: opts.InterimResults,
	})
	if err != nil {
		b.takeCapture()
		return err
	}
	return nil
}

func (b *Bridge) Stop() error {
	h := b.takeCapture()
	if h == nil {
		return nil
	}
	b.broadcast(Message{Type: TypeCaptureStop})
	h(domain.CaptureFailed(domain.ReasonAborted, nil))
	return nil
}

func (b *Bridge) takeCapture() application.CaptureHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.capture
	b.capture = nil
	return h
}

// Speech output

func (b *Bridge) Speak(_ context.Context, u domain.Utterance, onDone application.SpeechHandler) error {
	b.mu.Lock()
	if !b.anyLocked(canSynthesize) {
		b.mu.Unlock()
		return ErrSynthesisUnavailable
	}
	id := uuid.NewString()
	b.speechID = id
	b.speech = onDone
	b.mu.Unlock()

	err := b.broadcastTo(canSynthesize, Message{
		Type:   TypeSpeechSpeak,
		ID:     id,
		Text:   u.Text,
		Locale: u.Locale,
		Rate:   u.Rate,
		Pitch:  u.Pitch,
	})
	if err != nil {
		b.takeSpeech(id)
		return err
	}
	return nil
}

func (b *Bridge) Cancel() {
	b.mu.Lock()
	active := b.speech != nil
	b.speech = nil
	b.speechID = ""
	b.mu.Unlock()

	if active {
		b.broadcast(Message{Type: TypeSpeechCancel})
	}
}

// takeSpeech claims the handler for utterance id. An empty id matches the
// current utterance.
func (b *Bridge) takeSpeech(id string) application.SpeechHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.speech == nil || (id != "" && id != b.speechID) {
		return nil
	}
	h := b.speech
	b.speech = nil
	b.speechID = ""
	return h
}

// Presentation

func (b *Bridge) StateChanged(state domain.State) {
	b.mu.Lock()
	b.state = state
	b.mu.Unlock()

	b.broadcast(b.stateMessage(state))
}

func (b *Bridge) stateMessage(state domain.State) Message {
	return Message{
		Type:   TypeState,
		State:  string(state),
		Status: ui.StatusMessage(state, b.assistant),
		Hint:   ui.IdleHint(b.assistant),
	}
}

func (b *Bridge) Notify(_ context.Context, n domain.Notification) error {
	err := b.broadcast(Message{
		Type:  TypeNotification,
		ID:    n.ID,
		Kind:  string(n.Kind),
		Title: n.Title,
		Text:  n.Message,
	})
	if errors.Is(err, ErrNoPage) {
		return nil
	}
	return err
}

func (b *Bridge) broadcast(msg Message) error {
	return b.broadcastTo(anyPage, msg)
}

// broadcastTo sends msg to every page accepted by match.
func (b *Bridge) broadcastTo(match func(*client) bool, msg Message) error {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		if match(c) {
			clients = append(clients, c)
		}
	}
	b.mu.Unlock()

	if len(clients) == 0 {
		return ErrNoPage
	}

	delivered := 0
	var lastErr error
	for _, c := range clients {
		if err := c.send(msg); err != nil {
			b.logger.Warn("sending to page", "type", msg.Type, "error", err)
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("sending %s: %w", msg.Type, lastErr)
	}
	return nil
}

// HTTP handlers

func (b *Bridge) handleIndex(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	state := b.state
	b.mu.Unlock()

	data := indexData{
		Status:     ui.StatusMessage(state, b.assistant),
		Hint:       ui.IdleHint(b.assistant),
		Cards:      ui.SuggestionCards,
		Bars:       make([]struct{}, ui.WaveBars),
		WaveMillis: ui.WaveInterval.Milliseconds(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		b.logger.Error("rendering page", "error", err)
	}
}

func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	running := b.running
	pages := len(b.clients)
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"running": running,
		"pages":   pages,
	})
}

func (b *Bridge) handleState(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	state := b.state
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b.stateMessage(state))
}

func (b *Bridge) handleActivate(w http.ResponseWriter, r *http.Request) {
	if !b.activate() {
		http.Error(w, "controller not attached", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"accepted"}`))
}

func (b *Bridge) activate() bool {
	b.mu.Lock()
	fn := b.onActivate
	b.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

func (b *Bridge) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("websocket upgrade", "error", err)
		return
	}

	c := &client{conn: conn}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	state := b.state
	b.mu.Unlock()

	b.logger.Info("page connected", "remote_addr", r.RemoteAddr)
	c.send(b.stateMessage(state))

	defer b.disconnect(c)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug("websocket read", "error", err)
			}
			return
		}
		b.handleMessage(c, msg)
	}
}

func (b *Bridge) handleMessage(c *client, msg Message) {
	switch msg.Type {
	case TypeHello:
		b.mu.Lock()
		c.recognition = msg.Recognition
		c.synthesis = msg.Synthesis
		b.mu.Unlock()
		b.logger.Info("page capabilities", "recognition", msg.Recognition, "synthesis", msg.Synthesis)

	case TypeActivate:
		b.activate()

	case TypeCaptureResult:
		if h := b.takeCapture(); h != nil {
			h(domain.CaptureOK(msg.Text))
		}

	case TypeCaptureError:
		if h := b.takeCapture(); h != nil {
			reason := domain.CaptureReason(msg.Reason)
			h(domain.CaptureFailed(reason, fmt.Errorf("recognition error: %s", msg.Reason)))
		}

	case TypeCaptureEnd:
		// end without a result or error means the session closed empty
		if h := b.takeCapture(); h != nil {
			h(domain.CaptureFailed(domain.ReasonNoResult, nil))
		}

	case TypeSpeechEnd:
		if h := b.takeSpeech(msg.ID); h != nil {
			h(nil)
		}

	case TypeSpeechError:
		if h := b.takeSpeech(msg.ID); h != nil {
			h(fmt.Errorf("synthesis error: %s", msg.Reason))
		}

	default:
		b.logger.Warn("unknown page message", "type", msg.Type)
	}
}

// disconnect drops a page. A session is failed once no remaining page can
// serve it, so the controller never waits on a closed tab.
func (b *Bridge) disconnect(c *client) {
	c.conn.Close()

	b.mu.Lock()
	delete(b.clients, c)
	remaining := len(b.clients)
	recognizer := b.anyLocked(canRecognize)
	synthesizer := b.anyLocked(canSynthesize)
	b.mu.Unlock()

	b.logger.Info("page disconnected", "remaining", remaining)

	if !recognizer {
		if h := b.takeCapture(); h != nil {
			h(domain.CaptureFailed(domain.ReasonNetwork, ErrNoPage))
		}
	}
	if !synthesizer {
		if h := b.takeSpeech(""); h != nil {
			h(ErrNoPage)
		}
	}
}
