package event

import (
	"context"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/util"
	"sync"
)

type MemoryLog struct {
	mu     sync.RWMutex
	events []meta.StakeEvent
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(_ context.Context, e meta.StakeEvent) (meta.StakeEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sealed, err := seal(e, uint64(len(l.events)))
	if err != nil {
		return meta.StakeEvent{}, err
	}
	l.events = append(l.events, sealed)
	return copyEvent(sealed), nil
}

func (l *MemoryLog) Range(_ context.Context, from, to uint64) ([]meta.StakeEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	from, to = clamp(from, to, uint64(len(l.events)))
	res := make([]meta.StakeEvent, 0, to-from)
	for _, e := range l.events[from:to] {
		res = append(res, copyEvent(e))
	}
	return res, nil
}

func (l *MemoryLog) Len(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.events)), nil
}

func copyEvent(e meta.StakeEvent) meta.StakeEvent {
	e.Amount = util.CopyInt(e.Amount)
	return e
}
