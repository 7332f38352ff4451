package entitystore

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/interfaces"
)

type record struct {
	entity     interfaces.BusinessEntity
	tombstoned bool
}

// state is the in-memory image of the store. Transactions work on a clone
// and the clone replaces the live state on commit.
type state struct {
	// generation counts committed changes.
	generation uint64
	nonce      uint64
	order   []common.Address
	records map[common.Address]*record

	// users maps an associated address to entity addresses, in the order the
	// associations were made.
	users map[common.Address][]common.Address
	// links maps an entity address to the user addresses currently indexed for it.
	links map[common.Address][]common.Address
}

func newState() *state {
	return &state{
		records: make(map[common.Address]*record),
		users:   make(map[common.Address][]common.Address),
		links:   make(map[common.Address][]common.Address),
	}
}

// clone copies the state. Records are immutable once stored, so the record
// pointers are shared and only replaced by writers.
func (s *state) clone() *state {
	c := &state{
		generation: s.generation,
		nonce:      s.nonce,
		order:   slices.Clone(s.order),
		records: make(map[common.Address]*record, len(s.records)),
		users:   make(map[common.Address][]common.Address, len(s.users)),
		links:   make(map[common.Address][]common.Address, len(s.links)),
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.users {
		c.users[k] = slices.Clone(v)
	}
	for k, v := range s.links {
		c.links[k] = slices.Clone(v)
	}
	return c
}

func (s *state) get(address common.Address) (interfaces.BusinessEntity, error) {
	rec, ok := s.records[address]
	if !ok || rec.tombstoned {
		return interfaces.BusinessEntity{}, fmt.Errorf("%w: %s", interfaces.ErrNotFound, address.Hex())
	}
	return rec.entity.Clone(), nil
}

func (s *state) listAll() []interfaces.StoredEntity {
	res := make([]interfaces.StoredEntity, 0, len(s.order))
	for _, address := range s.order {
		rec := s.records[address]
		res = append(res, interfaces.StoredEntity{
			Entity:     rec.entity.Clone(),
			Tombstoned: rec.tombstoned,
		})
	}
	return res
}

func (s *state) addressesFor(user common.Address) []common.Address {
	return slices.Clone(s.users[user])
}

func (s *state) exists(address common.Address) bool {
	_, ok := s.records[address]
	return ok
}

func (s *state) put(address common.Address, entity interfaces.BusinessEntity) error {
	if rec, ok := s.records[address]; ok && rec.tombstoned {
		return fmt.Errorf("%w: %s is deleted", interfaces.ErrNotFound, address.Hex())
	} else if !ok {
		s.order = append(s.order, address)
	}

	s.records[address] = &record{entity: entity.Clone()}
	s.reindex(address, entity.AssociatedAddresses())
	return nil
}

func (s *state) remove(address common.Address) error {
	rec, ok := s.records[address]
	if !ok || rec.tombstoned {
		return fmt.Errorf("%w: %s", interfaces.ErrNotFound, address.Hex())
	}
	s.records[address] = &record{entity: rec.entity, tombstoned: true}
	return nil
}

func (s *state) nextNonce() uint64 {
	n := s.nonce
	s.nonce++
	return n
}

// reindex replaces the index associations of address with users. Users that
// stay associated keep their position in the per-user list.
func (s *state) reindex(address common.Address, users []common.Address) {
	for _, old := range s.links[address] {
		if slices.Contains(users, old) {
			continue
		}
		remaining := slices.DeleteFunc(s.users[old], func(a common.Address) bool { return a == address })
		if len(remaining) == 0 {
			delete(s.users, old)
		} else {
			s.users[old] = remaining
		}
	}

	for _, user := range users {
		if slices.Contains(s.links[address], user) {
			continue
		}
		s.users[user] = append(s.users[user], address)
	}

	if len(users) == 0 {
		delete(s.links, address)
	} else {
		s.links[address] = slices.Clone(users)
	}
}

func (s *state) snapshot() *interfaces.Snapshot {
	snap := &interfaces.Snapshot{
		Generation: s.generation,
		Nonce:      s.nonce,
		Entities:   make([]interfaces.SnapshotEntry, 0, len(s.order)),
	}
	for _, address := range s.order {
		rec := s.records[address]
		snap.Entities = append(snap.Entities, interfaces.SnapshotEntry{
			Address:    address,
			Tombstoned: rec.tombstoned,
			Entity:     rec.entity.Clone(),
		})
	}
	return snap
}

// stateFromSnapshot rebuilds the state, including the user index, from a
// persisted snapshot.
func stateFromSnapshot(snap *interfaces.Snapshot) (*state, error) {
	s := newState()
	s.generation = snap.Generation
	s.nonce = snap.Nonce
	for _, entry := range snap.Entities {
		if _, dup := s.records[entry.Address]; dup {
			return nil, fmt.Errorf("duplicate entity %s in snapshot", entry.Address.Hex())
		}
		s.order = append(s.order, entry.Address)
		s.records[entry.Address] = &record{entity: entry.Entity.Clone(), tombstoned: entry.Tombstoned}
		s.reindex(entry.Address, entry.Entity.AssociatedAddresses())
	}
	return s, nil
}

func (s *state) counts() (live, tombstoned int) {
	for _, rec := range s.records {
		if rec.tombstoned {
			tombstoned++
		} else {
			live++
		}
	}
	return live, tombstoned
}
