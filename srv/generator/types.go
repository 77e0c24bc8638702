package generator

import (
	"sync"
	"time"

	"github.com/opd-ai/storybook/bookcompiler"
)

type BuildState string

const (
	StateQueued    BuildState = "queued"
	StateBuilding  BuildState = "building"
	StateCompleted BuildState = "completed"
	StateError     BuildState = "error"
)

// Finished reports whether no further messages will follow.
func (s BuildState) Finished() bool {
	return s == StateCompleted || s == StateError
}

type WSMessage struct {
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewWSMessage(msgType string, state BuildState, message string) WSMessage {
	return WSMessage{
		Type:      msgType,
		Status:    string(state),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Status is the stored, JSON-serialisable view of a build.
type Status struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	State      BuildState `json:"state"`
	Error      string     `json:"error,omitempty"`
	Pages      int        `json:"pages,omitempty"`
	SpineWidth int        `json:"spine_width_px,omitempty"`
	SpineText  bool       `json:"spine_text,omitempty"`
	Manuscript string     `json:"manuscript,omitempty"`
	Cover      string     `json:"cover,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time,omitempty"`
}

// BuildProgress tracks one running build and fans its messages out to
// websocket subscribers. It satisfies bookcompiler.Progressor.
type BuildProgress struct {
	mu          sync.RWMutex
	status      Status
	history     []WSMessage
	subscribers map[chan WSMessage]struct{}
	onChange    func(Status)
}

func NewBuildProgress(id, title string, onChange func(Status)) *BuildProgress {
	return &BuildProgress{
		status: Status{
			ID:        id,
			Title:     title,
			State:     StateQueued,
			StartTime: time.Now(),
		},
		subscribers: make(map[chan WSMessage]struct{}),
		onChange:    onChange,
	}
}

func (p *BuildProgress) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *BuildProgress) History() []WSMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	messages := make([]WSMessage, len(p.history))
	copy(messages, p.history)
	return messages
}

func (p *BuildProgress) UpdateOutput(message string) {
	p.send("update", message)
}

func (p *BuildProgress) UpdateState(state BuildState, message string) {
	p.mu.Lock()
	p.status.State = state
	if state.Finished() {
		p.status.EndTime = time.Now()
	}
	p.mu.Unlock()
	p.send("state", message)
}

// Complete records the compiled outputs and marks the build completed.
func (p *BuildProgress) Complete(res *bookcompiler.Result) {
	p.mu.Lock()
	p.status.Pages = res.Pages
	p.status.SpineWidth = res.SpineWidth
	p.status.SpineText = res.SpineText
	p.status.Manuscript = res.ManuscriptPath
	p.status.Cover = res.CoverPath
	p.mu.Unlock()
	p.UpdateState(StateCompleted, "Book compilation complete")
}

// Fail marks the build failed. Outputs written before the failure are kept.
func (p *BuildProgress) Fail(err error, res *bookcompiler.Result) {
	p.mu.Lock()
	p.status.Error = err.Error()
	if res != nil {
		p.status.Pages = res.Pages
		p.status.Manuscript = res.ManuscriptPath
	}
	p.mu.Unlock()
	p.UpdateState(StateError, "Error: "+err.Error())
}

// Subscribe returns the messages sent so far and a channel for the rest.
// The channel is closed once the build finishes.
func (p *BuildProgress) Subscribe() ([]WSMessage, <-chan WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	messages := make([]WSMessage, len(p.history))
	copy(messages, p.history)
	ch := make(chan WSMessage, 32)
	if p.status.State.Finished() {
		close(ch)
		return messages, ch
	}
	p.subscribers[ch] = struct{}{}
	return messages, ch
}

func (p *BuildProgress) Unsubscribe(ch <-chan WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sub := range p.subscribers {
		if sub == ch {
			delete(p.subscribers, sub)
			close(sub)
		}
	}
}

func (p *BuildProgress) send(msgType, message string) {
	p.mu.Lock()
	msg := NewWSMessage(msgType, p.status.State, message)
	p.history = append(p.history, msg)
	for sub := range p.subscribers {
		select {
		case sub <- msg:
		default:
			// slow reader; it still gets the history on reconnect
		}
		if p.status.State.Finished() {
			delete(p.subscribers, sub)
			close(sub)
		}
	}
	status := p.status
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(status)
	}
}
