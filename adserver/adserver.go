// Package adserver carries the host's hook into the page ad server. The
// browser counterpart is the googletag command queue: callers push commands
// which run once the ad server library is up, and the commands talk to its
// targeting service.
package adserver

import (
	"sync"
)

// Service is the slice of the ad server that queued commands may use.
type Service interface {
	// SetTargeting sets a single key-value targeting pair on all ad slots
	// of the page.
	SetTargeting(key, value string)
}

// CommandQueue defers work until the ad server is ready.
type CommandQueue interface {
	// Push enqueues cmd. If the ad server is already up, cmd runs
	// immediately on the calling goroutine.
	Push(cmd func(Service))
}

// Queue buffers commands until SetService provides the ad server, then runs
// them in the order they were pushed. Later pushes run immediately.
type Queue struct {
	mu      sync.Mutex
	service Service
	pending []func(Service)
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(cmd func(Service)) {
	q.mu.Lock()
	if q.service == nil {
		q.pending = append(q.pending, cmd)
		q.mu.Unlock()
		return
	}
	service := q.service
	q.mu.Unlock()

	cmd(service)
}

// SetService marks the ad server ready and drains the buffered commands.
// Commands run outside the queue lock, so they may push more.
func (q *Queue) SetService(service Service) {
	q.mu.Lock()
	q.service = service
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, cmd := range pending {
		cmd(service)
	}
}

// Noop returns a queue that discards every command, for hosts without an ad
// server on the page.
func Noop() CommandQueue {
	return noopQueue{}
}

type noopQueue struct{}

func (noopQueue) Push(func(Service)) {}

// SlotService is an in-memory ad server targeting registry. Targeting set
// through it is page level: every registered slot sees the same pairs.
type SlotService struct {
	mu        sync.Mutex
	slots     map[string]struct{}
	targeting map[string]string
}

func NewSlotService(slotCodes ...string) *SlotService {
	s := &SlotService{
		slots:     make(map[string]struct{}, len(slotCodes)),
		targeting: make(map[string]string),
	}
	for _, code := range slotCodes {
		s.slots[code] = struct{}{}
	}
	return s
}

func (s *SlotService) AddSlot(slotCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slotCode] = struct{}{}
}

func (s *SlotService) SetTargeting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targeting[key] = value
}

// Targeting returns a copy of the targeting pairs visible to the slot, or
// nil for a slot the page never registered.
func (s *SlotService) Targeting(slotCode string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[slotCode]; !ok {
		return nil
	}

	targeting := make(map[string]string, len(s.targeting))
	for k, v := range s.targeting {
		targeting[k] = v
	}
	return targeting
}
