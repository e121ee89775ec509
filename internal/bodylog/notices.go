package bodylog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultNoticesCapacity = 20

type NoticeKind string

const (
	NoticeUploadFailed  NoticeKind = "upload_failed"
	NoticePersistFailed NoticeKind = "persist_failed"
	NoticeCaptureFailed NoticeKind = "capture_failed"
)

// Notice is a one-shot, dismissable failure message for the user.
type Notice struct {
	ID        string
	Kind      NoticeKind
	Message   string
	CreatedAt time.Time
}

// Notices is a bounded queue; the oldest notice is dropped when full.
type Notices struct {
	mu       sync.Mutex
	items    []Notice
	capacity int
}

func NewNotices(capacity int) *Notices {
	if capacity <= 0 {
		capacity = defaultNoticesCapacity
	}
	return &Notices{capacity: capacity}
}

func (n *Notices) Push(kind NoticeKind, message string) Notice {
	notice := Notice{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.items) >= n.capacity {
		n.items = n.items[1:]
	}
	n.items = append(n.items, notice)
	return notice
}

// Drain returns all pending notices and clears the queue.
func (n *Notices) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.items
	n.items = nil
	return out
}

func (n *Notices) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, item := range n.items {
		if item.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return true
		}
	}
	return false
}

func (n *Notices) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.items)
}
