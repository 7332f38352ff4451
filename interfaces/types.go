package interfaces

import (
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the lifecycle state of a business entity.
type Status string

const (
	// StatusLive is assigned at registration. Only live entities can be updated.
	StatusLive Status = "Live"
	// StatusDeregistered is reached from StatusLive through a status change.
	StatusDeregistered Status = "Deregistered"
	// StatusDeleted is terminal and is only set by entity deletion.
	StatusDeleted Status = "Deleted"
)

// ParseStatus converts a status name into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusLive, StatusDeregistered, StatusDeleted:
		return Status(s), nil
	default:
		return "", NewValidationError("status", fmt.Sprintf("unknown status %q", s))
	}
}

// String returns the status name.
func (s Status) String() string {
	return string(s)
}

// Agent is the single agent sub-record of a business entity.
// AgentAddress is a postal address and is not indexed.
type Agent struct {
	AgentID        string   `json:"agentId"`
	AgentName      string   `json:"agentName"`
	AgentAddress   string   `json:"agentAddress"`
	AgentTelephone string   `json:"agentTelephone"`
	AgentEmail     string   `json:"agentEmail"`
	AgentAccess    []string `json:"agentAccess"`
}

// Admin is an entry of the admins list.
type Admin struct {
	AdminAddress common.Address `json:"adminAddress"`
	Verified     bool           `json:"verified"`
}

// ReserveAdmin is an entry of the reserve admins list.
type ReserveAdmin struct {
	ReserveAdminAddress common.Address `json:"reserveAdminAddress"`
	Verified            bool           `json:"verified"`
}

// Owner is an entry of the owners list. Shares are caller supplied and
// carry no sum invariant across the list.
type Owner struct {
	OwnerAddress common.Address `json:"ownerAddress"`
	OwnerShares  uint64         `json:"ownerShares"`
	OwnerAccess  []string       `json:"ownerAccess"`
	Verified     bool           `json:"verified"`
}

// NotificationParty is an entry of the notification parties list.
type NotificationParty struct {
	PartyAddress common.Address `json:"partyAddress"`
	PartyAccess  []string       `json:"partyAccess"`
	Verified     bool           `json:"verified"`
}

// Document references a document submitted for the entity.
type Document struct {
	SubmittedAt time.Time `json:"submittedAt"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
}

// BusinessEntity is the registry record. BEAddress is assigned by the
// registry at registration and never changes afterwards.
type BusinessEntity struct {
	ID                  string              `json:"id"`
	BEAddress           common.Address      `json:"beAddress"`
	Status              Status              `json:"status"`
	Visibility          string              `json:"visibility"`
	OwnerManaged        bool                `json:"ownerManaged"`
	Verified            bool                `json:"verified"`
	Agent               Agent               `json:"agent"`
	Admins              []Admin             `json:"admins"`
	ReserveAdmins       []ReserveAdmin      `json:"reserveAdmins"`
	Threshold           uint64              `json:"threshold"`
	AccessMode          string              `json:"accessMode"`
	Restricted          bool                `json:"restricted"`
	Owners              []Owner             `json:"owners"`
	Locked              bool                `json:"locked"`
	NotificationParties []NotificationParty `json:"notificationParties"`
	Documents           []Document          `json:"documents"`
	Archived            bool                `json:"archived"`
	ExpiresAt           time.Time           `json:"expiresAt"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
	Suspended           bool                `json:"suspended"`
	LastActionAt        time.Time           `json:"lastActionAt"`
	Active              bool                `json:"active"`
}

// Clone returns a deep copy of the entity.
func (e BusinessEntity) Clone() BusinessEntity {
	c := e
	c.Agent.AgentAccess = slices.Clone(e.Agent.AgentAccess)
	c.Admins = slices.Clone(e.Admins)
	c.ReserveAdmins = slices.Clone(e.ReserveAdmins)
	c.Documents = slices.Clone(e.Documents)

	if e.Owners != nil {
		c.Owners = make([]Owner, len(e.Owners))
		for i, o := range e.Owners {
			o.OwnerAccess = slices.Clone(o.OwnerAccess)
			c.Owners[i] = o
		}
	}
	if e.NotificationParties != nil {
		c.NotificationParties = make([]NotificationParty, len(e.NotificationParties))
		for i, p := range e.NotificationParties {
			p.PartyAccess = slices.Clone(p.PartyAccess)
			c.NotificationParties[i] = p
		}
	}
	return c
}

// AssociatedAddresses returns every distinct address from the admins,
// reserve admins, owners and notification parties lists, in that order.
// The agent is not included.
func (e BusinessEntity) AssociatedAddresses() []common.Address {
	seen := make(map[common.Address]struct{})
	var res []common.Address
	add := func(addr common.Address) {
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		res = append(res, addr)
	}

	for _, a := range e.Admins {
		add(a.AdminAddress)
	}
	for _, a := range e.ReserveAdmins {
		add(a.ReserveAdminAddress)
	}
	for _, o := range e.Owners {
		add(o.OwnerAddress)
	}
	for _, p := range e.NotificationParties {
		add(p.PartyAddress)
	}
	return res
}

// IsExpired reports whether the entity is expired at the given time.
// An entity expiring exactly at now counts as expired.
func (e BusinessEntity) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// StoredEntity is a record as kept by an EntityStore, including tombstones.
type StoredEntity struct {
	Entity     BusinessEntity `json:"entity"`
	Tombstoned bool           `json:"tombstoned"`
}

// UserEntities is the result of a per-user query, partitioned by expiry.
type UserEntities struct {
	NotExpired []BusinessEntity `json:"notExpired"`
	Expired    []BusinessEntity `json:"expired"`
}

// LogicInfo describes the registry entry point and the logic installed behind it.
type LogicInfo struct {
	Registry common.Address `json:"registry"`
	Version  string         `json:"version"`
}

// Clock supplies the current time to registry operations.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns the wall clock in UTC at full resolution, so
// consecutive changes to an entity carry distinct timestamps.
var SystemClock Clock = ClockFunc(func() time.Time {
	return time.Now().UTC()
})
