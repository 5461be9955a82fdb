// Package service holds the emergency coordination core: the notification
// fan-out engine, the nearest-responder dispatch engine, the emergency and
// response state machines, the alarm orchestrator and the responder roster.
package service

import "github.com/nabilkencana/Warga-Kita-Backend/pkg/websocket"

// Pusher is the live delivery channel. *websocket.Hub satisfies it; tests
// inject failing fakes to exercise partial-delivery behavior.
type Pusher interface {
	PushToUser(userID, event string, data interface{}) error
	PushToRoom(room, event string, data interface{}) error
	Broadcast(event string, data interface{}) error
}

var _ Pusher = (*websocket.Hub)(nil)

// NopPusher discards every push. Useful when running without a hub.
type NopPusher struct{}

func (NopPusher) PushToUser(string, string, interface{}) error { return nil }
func (NopPusher) PushToRoom(string, string, interface{}) error { return nil }
func (NopPusher) Broadcast(string, interface{}) error          { return nil }
