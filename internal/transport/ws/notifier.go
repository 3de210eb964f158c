package ws

import (
	"encoding/json"

	"github.com/aquilax/truncate"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/realtime"
	jww "github.com/spf13/jwalterweatherman"
)

const messagesTable = "messages"

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyMessageInserted(msg *domain.Message) {
	jww.DEBUG.Printf("ws notifier: insert %s %q", msg.ID, truncate.Truncate(msg.Content, 32, "...", truncate.PositionEnd))
	n.publish(realtime.ChangeInsert, msg)
}

func (n *HubNotifier) NotifyMessageUpdated(msg *domain.Message) {
	n.publish(realtime.ChangeUpdate, msg)
}

func (n *HubNotifier) publish(event string, msg *domain.Message) {
	record, err := json.Marshal(msg)
	if err != nil {
		jww.ERROR.Printf("ws notifier: marshal error: %v", err)
		return
	}
	frame, err := realtime.NewFrame(realtime.FramePostgresChanges, domain.Topic(msg.MatchID), realtime.ChangePayload{
		Event:  event,
		Table:  messagesTable,
		Record: record,
	})
	if err != nil {
		jww.ERROR.Printf("ws notifier: marshal error: %v", err)
		return
	}
	n.hub.Publish(frame)
}
