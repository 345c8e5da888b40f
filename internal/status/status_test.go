package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowedTransitions(t *testing.T) {
	rules := NewRules(false)

	allowed := map[Status][]Status{
		Pending:        {Confirmed, Cancelled},
		Confirmed:      {Shipped, Cancelled},
		Shipped:        {InTransit, Delivered, Cancelled},
		InTransit:      {ReadyForPickup, Delivered, Cancelled},
		ReadyForPickup: {Delivered, Returned, Cancelled},
		Delivered:      {Completed, Returned},
	}

	for from, succs := range allowed {
		set := map[Status]bool{}
		for _, to := range succs {
			set[to] = true
			require.NoError(t, rules.Validate(from, to), "%s -> %s should be allowed", from, to)
		}
		for _, to := range All {
			if set[to] {
				continue
			}
			err := rules.Validate(from, to)
			require.Error(t, err, "%s -> %s should be rejected", from, to)

			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			require.Equal(t, from, invalid.From)
			require.Equal(t, to, invalid.To)
		}
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	rules := NewRules(false)

	for _, terminal := range []Status{Cancelled, Returned, Completed} {
		require.True(t, rules.IsTerminal(terminal))
		require.Empty(t, rules.Successors(terminal))
		for _, to := range All {
			require.Error(t, rules.Validate(terminal, to), "%s -> %s must be rejected", terminal, to)
		}
	}
}

func TestDirectDispatchFlag(t *testing.T) {
	require.False(t, NewRules(false).CanTransition(Pending, Shipped))
	require.True(t, NewRules(true).CanTransition(Pending, Shipped))

	// The flag only touches the PENDING row.
	withFlag := NewRules(true)
	require.False(t, withFlag.CanTransition(Confirmed, Pending))
	require.True(t, withFlag.CanTransition(Pending, Confirmed))
	require.True(t, withFlag.CanTransition(Pending, Cancelled))
}

func TestSelfTransitionRejected(t *testing.T) {
	rules := NewRules(false)
	for _, s := range All {
		require.Error(t, rules.Validate(s, s))
	}
}

func TestInvalidTransitionErrorMessage(t *testing.T) {
	err := &InvalidTransitionError{From: Shipped, To: Pending}
	require.Equal(t, "invalid status transition from SHIPPED to PENDING", err.Error())
}

func TestIsValid(t *testing.T) {
	for _, s := range All {
		require.True(t, IsValid(s))
	}
	require.False(t, IsValid(Status("LOST")))
	require.False(t, IsValid(Status("")))
}
