package subscription

import (
	"sync"

	"github.com/STTM-NSU/stocks-alerter/internal/model"
)

type instrState struct {
	state model.SubscriptionState
	owner string
}

type Counts struct {
	NotSubscribed int
	Pending       int
	Subscribed    int
}

// StateTable tracks the subscription state of every instrument and the worker
// that currently owns it. It is written by the scheduler and by all workers.
type StateTable struct {
	order     []string
	instrData map[string]*instrState
	mu        sync.RWMutex
}

func NewStateTable(instruments []model.Instrument) *StateTable {
	t := &StateTable{
		order:     make([]string, 0, len(instruments)),
		instrData: make(map[string]*instrState, len(instruments)),
	}
	for _, i := range instruments {
		if _, ok := t.instrData[i.Uid]; ok {
			continue
		}
		t.order = append(t.order, i.Uid)
		t.instrData[i.Uid] = &instrState{state: model.NotSubscribed}
	}
	return t
}

func (t *StateTable) Counts() Counts {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var c Counts
	for _, s := range t.instrData {
		switch s.state {
		case model.NotSubscribed:
			c.NotSubscribed++
		case model.Pending:
			c.Pending++
		case model.Subscribed:
			c.Subscribed++
		}
	}
	return c
}

// NotSubscribed returns unassigned instrument ids in registry order.
func (t *StateTable) NotSubscribed() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0)
	for _, id := range t.order {
		if t.instrData[id].state == model.NotSubscribed {
			ids = append(ids, id)
		}
	}
	return ids
}

// Assign moves the NotSubscribed instruments among ids to Pending under owner
// and returns those it moved. Anything already assigned is left alone.
func (t *StateTable) Assign(ids []string, owner string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	assigned := make([]string, 0, len(ids))
	for _, id := range ids {
		s, ok := t.instrData[id]
		if !ok || s.state != model.NotSubscribed {
			continue
		}
		s.state = model.Pending
		s.owner = owner
		assigned = append(assigned, id)
	}
	return assigned
}

// Ack applies a subscribe acknowledgment from owner. A failed ack returns the
// instrument to NotSubscribed and drops the ownership. Acks from a worker
// that no longer owns the instrument are ignored.
func (t *StateTable) Ack(id, owner string, success bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.instrData[id]
	if !ok || s.owner != owner {
		return false
	}

	if success {
		s.state = model.Subscribed
		return true
	}
	s.state = model.NotSubscribed
	s.owner = ""
	return true
}

// Release returns every instrument among ids still owned by owner to NotSubscribed.
func (t *StateTable) Release(owner string, ids []string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	released := 0
	for _, id := range ids {
		s, ok := t.instrData[id]
		if !ok || s.owner != owner {
			continue
		}
		s.state = model.NotSubscribed
		s.owner = ""
		released++
	}
	return released
}

func (t *StateTable) State(id string) (model.SubscriptionState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.instrData[id]
	if !ok {
		return model.NotSubscribed, false
	}
	return s.state, true
}

func (t *StateTable) Len() int {
	return len(t.order)
}
