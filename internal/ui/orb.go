package ui

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"voice-orb/internal/domain"
)

// Theme defines the colors of the terminal orb.
type Theme struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Dim     lipgloss.Color
	Error   lipgloss.Color
}

var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00bfa5"),
	Accent:  lipgloss.Color("#3ba4f9"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#f85149"),
}

type Styles struct {
	Orb        map[domain.State]lipgloss.Style
	Status     lipgloss.Style
	Hint       lipgloss.Style
	Card       lipgloss.Style
	CardTitle  lipgloss.Style
	Wave       lipgloss.Style
	Toast      lipgloss.Style
	ToastTitle lipgloss.Style
}

func NewStyles(t Theme) Styles {
	orb := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	return Styles{
		Orb: map[domain.State]lipgloss.Style{
			domain.StateIdle:       orb.Foreground(t.Dim),
			domain.StateListening:  orb.Foreground(t.Primary),
			domain.StateProcessing: orb.Foreground(t.Accent),
			domain.StateSpeaking:   orb.Foreground(t.Primary),
		},
		Status:    lipgloss.NewStyle().Bold(true),
		Hint:      lipgloss.NewStyle().Foreground(t.Dim).Italic(true),
		Card:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Dim).Padding(0, 1).Width(24),
		CardTitle: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Wave:      lipgloss.NewStyle().Foreground(t.Primary),
		Toast: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Error).
			Padding(0, 1),
		ToastTitle: lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

var orbGlyphs = map[domain.State]string{
	domain.StateIdle:       "( o )",
	domain.StateListening:  "(( O ))",
	domain.StateProcessing: "( @ )",
	domain.StateSpeaking:   "((( O )))",
}

const (
	WaveBars     = 5
	WaveInterval = 100 * time.Millisecond
)

var waveLevels = []rune("▁▂▃▄▅▆▇█")

// WaveHeights returns one random level per bar.
func WaveHeights(rng *rand.Rand) []int {
	heights := make([]int, WaveBars)
	for i := range heights {
		heights[i] = rng.IntN(len(waveLevels))
	}
	return heights
}

func WaveLine(heights []int) string {
	var sb strings.Builder
	for i, h := range heights {
		if i > 0 {
			sb.WriteByte(' ')
		}
		h = min(max(h, 0), len(waveLevels)-1)
		sb.WriteRune(waveLevels[h])
	}
	return sb.String()
}

// Renderer draws the orb in a terminal. It observes controller state and
// shows notifications as toasts.
type Renderer struct {
	w         io.Writer
	styles    Styles
	assistant string
	interval  time.Duration

	mu       sync.Mutex
	state    domain.State
	rng      *rand.Rand
	stopWave context.CancelFunc
	closed   bool
}

func NewRenderer(w io.Writer, assistant string) *Renderer {
	if assistant == "" {
		assistant = DefaultAssistantName
	}
	return &Renderer{
		w:         w,
		styles:    NewStyles(DefaultTheme),
		assistant: assistant,
		interval:  WaveInterval,
		state:     domain.StateIdle,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// WithWaveInterval changes how often the wave bars are redrawn.
func (r *Renderer) WithWaveInterval(d time.Duration) *Renderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.interval = d
	}
	return r
}

func (r *Renderer) StateChanged(state domain.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	r.haltWave()
	r.state = state
	fmt.Fprintln(r.w, r.Frame(state))

	if state == domain.StateListening || state == domain.StateSpeaking {
		ctx, cancel := context.WithCancel(context.Background())
		r.stopWave = cancel
		go r.animate(ctx, r.interval)
	}
}

// Frame renders the orb, its caption and, while idle, the hint and cards.
func (r *Renderer) Frame(state domain.State) string {
	orb, ok := r.styles.Orb[state]
	if !ok {
		orb = r.styles.Orb[domain.StateIdle]
	}

	lines := []string{
		orb.Render(orbGlyphs[state]),
		r.styles.Status.Render(StatusMessage(state, r.assistant)),
	}
	if state == domain.StateIdle {
		lines = append(lines, r.styles.Hint.Render(IdleHint(r.assistant)))

		cards := make([]string, 0, len(SuggestionCards))
		for _, c := range SuggestionCards {
			cards = append(cards, r.styles.Card.Render(r.styles.CardTitle.Render(c.Title)+"\n"+c.Description))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) animate(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if ctx.Err() == nil {
				fmt.Fprint(r.w, "\r"+r.styles.Wave.Render(WaveLine(WaveHeights(r.rng))))
			}
			r.mu.Unlock()
		}
	}
}

// haltWave stops the animation and ends its line. Caller holds mu.
func (r *Renderer) haltWave() {
	if r.stopWave == nil {
		return
	}
	r.stopWave()
	r.stopWave = nil
	fmt.Fprintln(r.w)
}

// Notify prints a toast for an interaction error.
func (r *Renderer) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	toast := r.styles.Toast.Render(r.styles.ToastTitle.Render(n.Title) + "\n" + n.Message)
	if _, err := fmt.Fprintln(r.w, toast); err != nil {
		return fmt.Errorf("writing toast: %w", err)
	}
	return nil
}

func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.haltWave()
	r.closed = true
}
