package gateway

import (
	"context"

	"github.com/cppla/hexfeed/observable"
)

// liveQuery emits query's result once on subscribe and again after every change
// accepted by match. Changes that pile up while a query runs collapse into one
// re-query. A failed query or a lost change feed ends the stream with that error.
func liveQuery[T any](n Notifier, match func(Change) bool, query func(context.Context) (T, error)) observable.Stream[T] {
	return observable.NewStream(func(ctx context.Context, emit func(T) bool) error {
		// subscribe before the first read so a write racing with it still triggers a re-query
		changes, err := n.Subscribe(ctx)
		if err != nil {
			return err
		}

		v, err := query(ctx)
		if err != nil {
			return err
		}
		if !emit(v) {
			return nil
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case c, ok := <-changes:
				if !ok {
					if ctx.Err() != nil {
						return nil
					}
					return ErrNotifierClosed
				}
				dirty := match(c)
			drain:
				for {
					select {
					case c, ok := <-changes:
						if !ok {
							break drain
						}
						dirty = dirty || match(c)
					default:
						break drain
					}
				}
				if !dirty {
					continue
				}
				v, err := query(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if !emit(v) {
					return nil
				}
			}
		}
	})
}

func anyChange(Change) bool { return true }

func changeFor(postID string) func(Change) bool {
	return func(c Change) bool { return c.PostID == postID }
}
