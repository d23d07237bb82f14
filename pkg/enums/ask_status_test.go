package enums

import "testing"

func TestAskStatusTransitions(t *testing.T) {
	allowed := []struct {
		from AskStatus
		to   AskStatus
	}{
		{AskStatusOpen, AskStatusInProgress},
		{AskStatusOpen, AskStatusCancelled},
		{AskStatusInProgress, AskStatusCompleted},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct {
		from AskStatus
		to   AskStatus
	}{
		{AskStatusOpen, AskStatusCompleted},
		{AskStatusInProgress, AskStatusCancelled},
		{AskStatusInProgress, AskStatusOpen},
		{AskStatusCompleted, AskStatusOpen},
		{AskStatusCancelled, AskStatusInProgress},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("%s -> %s must be illegal", tc.from, tc.to)
		}
	}
}

func TestAgentRoleCapabilities(t *testing.T) {
	if !AgentRoleBuyer.CanBuy() || AgentRoleBuyer.CanSell() {
		t.Fatal("buyer role should buy only")
	}
	if AgentRoleSeller.CanBuy() || !AgentRoleSeller.CanSell() {
		t.Fatal("seller role should sell only")
	}
	if !AgentRoleDual.CanBuy() || !AgentRoleDual.CanSell() {
		t.Fatal("dual role should do both")
	}
}
