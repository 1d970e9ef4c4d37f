package transport

import (
	"sort"
	"sync"
)

// handlerSet is the per-type subscriber table shared by every transport.
type handlerSet struct {
	mu     sync.RWMutex
	next   uint64
	byType map[string]map[uint64]Handler
}

func newHandlerSet() *handlerSet {
	return &handlerSet{byType: make(map[string]map[uint64]Handler)}
}

func (s *handlerSet) add(msgType string, h Handler) func() {
	s.mu.Lock()
	s.next++
	id := s.next
	if s.byType[msgType] == nil {
		s.byType[msgType] = make(map[uint64]Handler)
	}
	s.byType[msgType][id] = h
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.byType[msgType], id)
			if len(s.byType[msgType]) == 0 {
				delete(s.byType, msgType)
			}
		})
	}
}

// dispatch calls every handler for msgType in subscription order and
// returns how many ran. Handlers are called without the lock held.
func (s *handlerSet) dispatch(msgType, from string, payload []byte) int {
	s.mu.RLock()
	subs := s.byType[msgType]
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, subs[id])
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(from, payload)
	}
	return len(handlers)
}

func (s *handlerSet) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, subs := range s.byType {
		n += len(subs)
	}
	return n
}
