package enums

import "fmt"

// AgentRole mirrors the role field served by the agent directory.
type AgentRole string

const (
	AgentRoleBuyer  AgentRole = "buyer"
	AgentRoleSeller AgentRole = "seller"
	AgentRoleDual   AgentRole = "dual"
)

var validAgentRoles = []AgentRole{
	AgentRoleBuyer,
	AgentRoleSeller,
	AgentRoleDual,
}

// IsValid reports whether the value is a known AgentRole.
func (r AgentRole) IsValid() bool {
	for _, candidate := range validAgentRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanBuy reports whether the role is allowed to post asks.
func (r AgentRole) CanBuy() bool {
	return r == AgentRoleBuyer || r == AgentRoleDual
}

// CanSell reports whether the role is allowed to place bids.
func (r AgentRole) CanSell() bool {
	return r == AgentRoleSeller || r == AgentRoleDual
}

// ParseAgentRole converts raw input into an AgentRole.
func ParseAgentRole(value string) (AgentRole, error) {
	for _, candidate := range validAgentRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agent role %q", value)
}
