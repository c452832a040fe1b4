// Package dispatch sends the player's questions to the game backend and
// reveals answers with a typewriter effect.
package dispatch

import (
	"sync"
	"time"
)

const defaultTick = 30 * time.Millisecond

// Typewriter reveals a text one rune per tick. At most one reveal runs at a
// time; starting a new one cancels the running one first.
type Typewriter struct {
	mu         sync.Mutex
	tick       time.Duration
	runes      []rune
	revealed   int
	done       bool
	generation int
}

func NewTypewriter(tick time.Duration) *Typewriter {
	if tick <= 0 {
		tick = defaultTick
	}
	return &Typewriter{tick: tick, done: true}
}

// Start begins revealing text from the first rune, cancelling any reveal in
// progress.
func (t *Typewriter) Start(text string) {
	t.mu.Lock()
	t.generation++
	generation := t.generation
	t.runes = []rune(text)
	t.revealed = 0
	t.done = len(t.runes) == 0
	running := !t.done
	t.mu.Unlock()

	if running {
		go t.reveal(generation)
	}
}

// Show displays text in full immediately, cancelling any reveal in progress.
// Used when re-selecting an entity whose answer was already revealed.
func (t *Typewriter) Show(text string) {
	t.mu.Lock()
	t.generation++
	t.runes = []rune(text)
	t.revealed = len(t.runes)
	t.done = true
	t.mu.Unlock()
}

// Stop cancels the reveal in progress. The revealed prefix stays put and the
// reveal reports done.
func (t *Typewriter) Stop() {
	t.mu.Lock()
	t.generation++
	t.done = true
	t.mu.Unlock()
}

// Current returns the revealed prefix and whether the reveal has finished.
// Once done, repeated calls keep returning the same final text.
func (t *Typewriter) Current() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.runes[:t.revealed]), t.done
}

func (t *Typewriter) reveal(generation int) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()
	for range ticker.C {
		t.mu.Lock()
		if t.generation != generation {
			t.mu.Unlock()
			return
		}
		t.revealed++
		if t.revealed >= len(t.runes) {
			t.revealed = len(t.runes)
			t.done = true
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()
	}
}
