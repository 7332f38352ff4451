package logic

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/interfaces"
)

// validatePayload checks the list and capability-tag invariants of an
// entity payload. Fields the registry assigns itself are not checked.
func validatePayload(data interfaces.BusinessEntity) error {
	if err := uniqueTags("agent.agentAccess", data.Agent.AgentAccess); err != nil {
		return err
	}

	admins := make([]common.Address, len(data.Admins))
	for i, a := range data.Admins {
		admins[i] = a.AdminAddress
	}
	if err := uniqueAddresses("admins", admins); err != nil {
		return err
	}

	reserveAdmins := make([]common.Address, len(data.ReserveAdmins))
	for i, a := range data.ReserveAdmins {
		reserveAdmins[i] = a.ReserveAdminAddress
	}
	if err := uniqueAddresses("reserveAdmins", reserveAdmins); err != nil {
		return err
	}

	owners := make([]common.Address, len(data.Owners))
	for i, o := range data.Owners {
		owners[i] = o.OwnerAddress
		if err := uniqueTags(fmt.Sprintf("owners[%d].ownerAccess", i), o.OwnerAccess); err != nil {
			return err
		}
	}
	if err := uniqueAddresses("owners", owners); err != nil {
		return err
	}

	parties := make([]common.Address, len(data.NotificationParties))
	for i, p := range data.NotificationParties {
		parties[i] = p.PartyAddress
		if err := uniqueTags(fmt.Sprintf("notificationParties[%d].partyAccess", i), p.PartyAccess); err != nil {
			return err
		}
	}
	return uniqueAddresses("notificationParties", parties)
}

func uniqueAddresses(field string, addrs []common.Address) error {
	seen := make(map[common.Address]int, len(addrs))
	for i, addr := range addrs {
		if addr == (common.Address{}) {
			return interfaces.NewValidationError(fmt.Sprintf("%s[%d]", field, i), "zero address")
		}
		if first, ok := seen[addr]; ok {
			return interfaces.NewValidationError(field,
				fmt.Sprintf("address %s listed at %d and %d", addr.Hex(), first, i))
		}
		seen[addr] = i
	}
	return nil
}

func uniqueTags(field string, tags []string) error {
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			return interfaces.NewValidationError(field, fmt.Sprintf("duplicate tag %q", tag))
		}
		seen[tag] = struct{}{}
	}
	return nil
}
