// ABOUTME: Live event list updates over NATS
// ABOUTME: Each message on the subject carries the full JSON event list
package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
)

// DefaultSubject carries event list updates
const DefaultSubject = "timeview.events"

// Connect dials NATS with reconnect and error logging
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("timeview"),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Feed applies event lists received over NATS to a Store
type Feed struct {
	store    *Store
	onUpdate func([]Event)
}

// NewFeed creates a feed writing into store. onUpdate may be nil.
func NewFeed(store *Store, onUpdate func([]Event)) *Feed {
	return &Feed{store: store, onUpdate: onUpdate}
}

// Subscribe starts receiving updates on subject
func (f *Feed) Subscribe(nc *nats.Conn, subject string) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		if err := f.Handle(msg.Data); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("rejected event list update")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	log.Info().Str("subject", subject).Msg("subscribed to event list updates")
	return sub, nil
}

// Handle decodes one update and installs it
func (f *Feed) Handle(data []byte) error {
	list, err := Decode(data, "json")
	if err != nil {
		return fmt.Errorf("decode event list: %w", err)
	}

	if err := f.store.Set(list); err != nil {
		return err
	}

	log.Info().Int("events", len(list)).Msg("event list updated")
	if f.onUpdate != nil {
		f.onUpdate(list)
	}
	return nil
}
