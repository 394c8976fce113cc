package app

import (
	"fmt"
	"io"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/boardsync/internal/domain"
)

// Handler receives events of the kind it subscribed to.
type Handler func(domain.Event)

// Token identifies one subscription.
type Token uint64

type subscriber struct {
	token   Token
	handler Handler
}

// Bus is a synchronous typed observer list. Handlers run in subscription order
// on the publishing goroutine; a panicking handler is logged and skipped.
type Bus struct {
	next   Token
	subs   map[domain.EventKind][]subscriber
	logger *charmLog.Logger
}

// NewBus constructs a bus. A nil logger discards diagnostics.
func NewBus(logger *charmLog.Logger) *Bus {
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &Bus{subs: map[domain.EventKind][]subscriber{}, logger: logger}
}

// Subscribe registers h for kind and returns its unsubscribe token.
func (b *Bus) Subscribe(kind domain.EventKind, h Handler) Token {
	b.next++
	b.subs[kind] = append(b.subs[kind], subscriber{token: b.next, handler: h})
	return b.next
}

// Unsubscribe removes the subscription. It reports whether tok was live.
func (b *Bus) Unsubscribe(tok Token) bool {
	for kind, subs := range b.subs {
		for i, sub := range subs {
			if sub.token != tok {
				continue
			}
			b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers ev to every current subscriber of its kind.
func (b *Bus) Publish(ev domain.Event) {
	subs := append([]subscriber(nil), b.subs[ev.Kind()]...)
	for _, sub := range subs {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub subscriber, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "kind", ev.Kind(), "token", sub.token, "panic", fmt.Sprint(r))
		}
	}()
	sub.handler(ev)
}
