package service

import "sync"

// ProgressEvent is one step of a session's processing, pushed to WebSocket
// subscribers as it happens.
type ProgressEvent struct {
	SessionID    string `json:"session_id"`
	Stage        string `json:"stage"` // "image", "completed", "failed"
	ImageIndex   int    `json:"image_index,omitempty"`
	FaceCount    int    `json:"face_count,omitempty"`
	MatchedCount int    `json:"matched_count,omitempty"`
	Error        string `json:"error,omitempty"`
	Done         bool   `json:"done,omitempty"`
}

// progressBroker fans processing events out to any subscribers watching a
// session. Slow subscribers lose events rather than stalling the pipeline.
type progressBroker struct {
	mu   sync.Mutex
	subs map[string][]chan ProgressEvent
}

func newProgressBroker() *progressBroker {
	return &progressBroker{
		subs: make(map[string][]chan ProgressEvent),
	}
}

// Subscribe registers a watcher for a session. The returned cancel func must
// be called when the watcher goes away; the channel closes when the session
// finishes.
func (b *progressBroker) Subscribe(sessionID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 16)

	b.mu.Lock()
	b.subs[sessionID] = append(b.subs[sessionID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[sessionID]
		for i, c := range chans {
			if c == ch {
				b.subs[sessionID] = append(chans[:i], chans[i+1:]...)
				close(c)
				break
			}
		}
		if len(b.subs[sessionID]) == 0 {
			delete(b.subs, sessionID)
		}
	}
	return ch, cancel
}

// publish delivers an event to every subscriber that can take it.
func (b *progressBroker) publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// finish closes out a session: all subscriber channels close after draining.
func (b *progressBroker) finish(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[sessionID] {
		close(ch)
	}
	delete(b.subs, sessionID)
}
