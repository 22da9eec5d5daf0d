package speech_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-orb/internal/domain"
	"voice-orb/internal/infra/speech"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func done() (func(error), <-chan error) {
	ch := make(chan error, 4)
	return func(err error) { ch <- err }, ch
}

func TestSpeakingTime(t *testing.T) {
	tests := []struct {
		name string
		u    domain.Utterance
		want time.Duration
	}{
		{name: "minimum", u: domain.Utterance{Text: "hi", Rate: 1}, want: 500 * time.Millisecond},
		{name: "five words", u: domain.Utterance{Text: "one two three four five", Rate: 1}, want: 2 * time.Second},
		{name: "double rate", u: domain.Utterance{Text: "one two three four five", Rate: 2}, want: time.Second},
		{name: "zero rate treated as normal", u: domain.Utterance{Text: "one two three four five"}, want: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := speech.SpeakingTime(tt.u); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConsoleOutput_CompletesNaturally(t *testing.T) {
	var out syncBuffer
	o := speech.NewConsoleOutput(&out)
	onDone, ch := done()

	if err := o.Speak(context.Background(), domain.Utterance{Text: "Your plan covers outpatient visits.", Rate: 10}, onDone); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	select {
	case err := <-ch:
		if err != nil {
			t.Errorf("completion error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for completion")
	}

	if !strings.Contains(out.String(), "Your plan covers outpatient visits.") {
		t.Errorf("output: got %q", out.String())
	}
}

func TestConsoleOutput_CancelSuppressesCompletion(t *testing.T) {
	o := speech.NewConsoleOutput(io.Discard)
	onDone, ch := done()

	o.Speak(context.Background(), domain.Utterance{Text: "hi"}, onDone)
	o.Cancel()

	select {
	case <-ch:
		t.Fatal("completion reported after Cancel")
	case <-time.After(700 * time.Millisecond):
	}
}

func TestConsoleOutput_SpeakReplacesPrevious(t *testing.T) {
	o := speech.NewConsoleOutput(io.Discard)
	first, firstCh := done()
	second, secondCh := done()

	o.Speak(context.Background(), domain.Utterance{Text: "first"}, first)
	o.Speak(context.Background(), domain.Utterance{Text: "second"}, second)

	select {
	case <-secondCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for second utterance")
	}
	select {
	case <-firstCh:
		t.Error("replaced utterance reported completion")
	default:
	}
}

func TestExpandArgs(t *testing.T) {
	u := domain.Utterance{Text: "Hello there", Locale: "en-US", Rate: 1.2, Pitch: 1.0}
	got := speech.ExpandArgs(speech.DefaultCommand, u)
	want := []string{"espeak-ng", "-v", "en-us", "-s", "210", "-p", "50", "Hello there"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	custom := speech.ExpandArgs([]string{"say", "--locale={locale}", "--rate={rate}", "--pitch={pitch}"}, domain.Utterance{Locale: "es-AR"})
	wantCustom := []string{"say", "--locale=es-AR", "--rate=1", "--pitch=1"}
	if !reflect.DeepEqual(custom, wantCustom) {
		t.Errorf("got %v, want %v", custom, wantCustom)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandOutput(t *testing.T) {
	requireShell(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		script  string
		wantErr bool
	}{
		{name: "success", script: "exit 0"},
		{name: "failure", script: "exit 3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := speech.NewCommandOutput([]string{"sh", "-c", tt.script}, logger)
			onDone, ch := done()

			if err := o.Speak(context.Background(), domain.Utterance{Text: "hi"}, onDone); err != nil {
				t.Fatalf("Speak: %v", err)
			}

			select {
			case err := <-ch:
				if (err != nil) != tt.wantErr {
					t.Errorf("completion error: got %v, wantErr %v", err, tt.wantErr)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("timeout waiting for completion")
			}
		})
	}
}

func TestCommandOutput_Cancel(t *testing.T) {
	requireShell(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	o := speech.NewCommandOutput([]string{"sh", "-c", "sleep 10"}, logger)
	onDone, ch := done()

	if err := o.Speak(context.Background(), domain.Utterance{Text: "hi"}, onDone); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	o.Cancel()

	select {
	case <-ch:
		t.Fatal("completion reported after Cancel")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestCommandOutput_MissingBinary(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := speech.NewCommandOutput([]string{"definitely-not-a-tts-binary"}, logger)

	if err := o.Speak(context.Background(), domain.Utterance{Text: "hi"}, func(error) {}); err == nil {
		t.Error("expected error for missing binary")
	}
}
