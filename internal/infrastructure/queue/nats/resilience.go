package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/lease-lens/internal/infrastructure/resilience"
)

var classifyNATSError = resilience.Classify(func(err error) (resilience.ErrorClassification, bool) {
	for _, transient := range []error{nats.ErrNoServers, nats.ErrTimeout, nats.ErrConnectionClosed, nats.ErrDisconnected, nats.ErrConnectionReconnecting} {
		if errors.Is(err, transient) {
			return resilience.Transient, true
		}
	}
	return resilience.ErrorClassification{}, false
})

func wrapTemporaryIfNeeded(err error) error {
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}
