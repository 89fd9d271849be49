package websocket

import (
	"hash/fnv"
	"sync"
)

// The room index is the hottest shared structure: every broadcast reads
// it and only admit/remove/join/leave mutate it. Sharding by chat id
// keeps fan-out in one conversation from contending with another.
const roomShardCount = 16

type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

type roomIndex struct {
	shards [roomShardCount]*roomShard
}

func newRoomIndex() *roomIndex {
	idx := &roomIndex{}
	for i := range idx.shards {
		idx.shards[i] = &roomShard{rooms: make(map[string]map[*Client]struct{})}
	}
	return idx
}

func (idx *roomIndex) shard(chatID string) *roomShard {
	h := fnv.New32a()
	h.Write([]byte(chatID))
	return idx.shards[h.Sum32()%roomShardCount]
}

func (idx *roomIndex) join(c *Client, chatID string) {
	s := idx.shard(chatID)
	s.mu.Lock()
	room, ok := s.rooms[chatID]
	if !ok {
		room = make(map[*Client]struct{})
		s.rooms[chatID] = room
	}
	room[c] = struct{}{}
	s.mu.Unlock()

	c.trackRoom(chatID)
}

func (idx *roomIndex) leave(c *Client, chatID string) {
	s := idx.shard(chatID)
	s.mu.Lock()
	if room, ok := s.rooms[chatID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(s.rooms, chatID)
		}
	}
	s.mu.Unlock()

	c.untrackRoom(chatID)
}

// dropAll removes the connection from every room it joined. Broadcasts
// already in flight to other connections are unaffected.
func (idx *roomIndex) dropAll(c *Client) {
	for _, chatID := range c.trackedRooms() {
		idx.leave(c, chatID)
	}
}

// broadcast enqueues data to every subscriber of the chat, optionally
// skipping one connection. A slow subscriber drops the frame rather than
// blocking the rest of the room.
func (idx *roomIndex) broadcast(chatID string, except *Client, data []byte) {
	s := idx.shard(chatID)
	s.mu.RLock()
	room := s.rooms[chatID]
	subscribers := make([]*Client, 0, len(room))
	for c := range room {
		if c != except {
			subscribers = append(subscribers, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range subscribers {
		c.enqueue(data)
	}
}

// subscribers returns the current subscriber count, used by tests
func (idx *roomIndex) subscribers(chatID string) int {
	s := idx.shard(chatID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[chatID])
}
