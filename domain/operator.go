package domain

import (
	"strings"
	"sync"
)

// OperatorSet is the allow-list of identities permitted to run operator-only
// operations (batch creation, NAV updates, fulfillment). Addresses are
// compared case-insensitively.
type OperatorSet struct {
	mutex   sync.RWMutex
	members map[string]struct{}
}

func NewOperatorSet(addresses ...string) *OperatorSet {
	set := &OperatorSet{
		members: make(map[string]struct{}, len(addresses)),
	}
	for _, address := range addresses {
		set.members[strings.ToLower(address)] = struct{}{}
	}
	return set
}

func (set *OperatorSet) Add(address string) {
	set.mutex.Lock()
	defer set.mutex.Unlock()
	set.members[strings.ToLower(address)] = struct{}{}
}

func (set *OperatorSet) Remove(address string) {
	set.mutex.Lock()
	defer set.mutex.Unlock()
	delete(set.members, strings.ToLower(address))
}

func (set *OperatorSet) Contains(address string) bool {
	set.mutex.RLock()
	defer set.mutex.RUnlock()
	_, exist := set.members[strings.ToLower(address)]
	return exist
}
