package websocket

import (
	"context"

	"github.com/mtricolici98/bot-wuzzler/pkg/distributed"
)

var (
	_ Notifier = (*Hub)(nil)
	_ Notifier = (*BusNotifier)(nil)
)

// BusNotifier publishes events on the Redis bus instead of the local hub.
// Every instance, this one included, receives them through RelayToHub.
type BusNotifier struct {
	bus *distributed.EventBus
}

func NewBusNotifier(bus *distributed.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) Notify(ctx context.Context, msgType string, recipients []string, payload interface{}) error {
	return n.bus.Publish(ctx, msgType, recipients, payload)
}

// RelayToHub runs the bus subscription and feeds the hub until ctx is done.
func RelayToHub(ctx context.Context, bus *distributed.EventBus, hub *Hub) error {
	return bus.Run(ctx, hub.Deliver)
}
