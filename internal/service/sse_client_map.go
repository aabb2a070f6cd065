package service

import (
	"sync"
)

// LogMessage is one pipeline output line broadcast to live viewers.
type LogMessage struct {
	BuildID string `json:"build_id"`
	Line    string `json:"line"`
}

func NewSSEClientMap[T any]() *SSEClientMap[T] {
	return &SSEClientMap[T]{
		clients: make(map[string]chan T),
	}
}

type SSEClientMap[T any] struct {
	m       sync.Mutex
	clients map[string]chan T
}

func (cm *SSEClientMap[T]) AddClient(uid string) chan T {
	cm.m.Lock()
	defer cm.m.Unlock()
	ch := make(chan T, 64)
	cm.clients[uid] = ch
	return ch
}

func (cm *SSEClientMap[T]) RemoveClient(uid string) {
	cm.m.Lock()
	defer cm.m.Unlock()
	if ch, ok := cm.clients[uid]; ok {
		close(ch)
		delete(cm.clients, uid)
	}
	if len(cm.clients) == 0 {
		cm.clients = make(map[string]chan T)
	}
}

// SendToClients delivers the message to every connected client. A
// client whose buffer is full is skipped; the pipeline never blocks on
// a slow viewer.
func (cm *SSEClientMap[T]) SendToClients(message T) {
	cm.m.Lock()
	defer cm.m.Unlock()
	for i := range cm.clients {
		select {
		case cm.clients[i] <- message:
		default:
		}
	}
}
