package gateway

import (
	"context"
	"sync"
)

// ChangeKind tells observers what kind of write happened.
type ChangeKind string

const (
	PostSaved      ChangeKind = "post_saved"
	PostDeleted    ChangeKind = "post_deleted"
	CommentSaved   ChangeKind = "comment_saved"
	CommentDeleted ChangeKind = "comment_deleted"
)

// Change is published after every successful write.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	PostID string     `json:"post_id"`
}

// Notifier carries Changes from writers to live queries, possibly across processes.
type Notifier interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe returns a channel of changes. Delivery stops once ctx is done;
	// the channel is closed if the underlying feed fails.
	Subscribe(ctx context.Context) (<-chan Change, error)
}

// LocalNotifier fans changes out to subscribers of the same process.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[chan Change]context.Context
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[chan Change]context.Context)}
}

// Publish delivers change to every subscriber, waiting for slow ones unless
// they or the publisher go away.
func (n *LocalNotifier) Publish(ctx context.Context, change Change) error {
	n.mu.Lock()
	targets := make(map[chan Change]context.Context, len(n.subs))
	for ch, subCtx := range n.subs {
		targets[ch] = subCtx
	}
	n.mu.Unlock()

	for ch, subCtx := range targets {
		select {
		case ch <- change:
		case <-subCtx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (n *LocalNotifier) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 16)
	n.mu.Lock()
	n.subs[ch] = ctx
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, ch)
		n.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers returns the number of attached subscribers.
func (n *LocalNotifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
