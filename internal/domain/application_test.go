package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	allowed := map[ApplicationStatus]map[Transition]ApplicationStatus{
		ApplicationStatusPending: {
			TransitionScheduleCall: ApplicationStatusCallScheduled,
			TransitionApprove:      ApplicationStatusApproved,
			TransitionDecline:      ApplicationStatusDeclined,
		},
		ApplicationStatusCallScheduled: {
			TransitionApprove: ApplicationStatusApproved,
			TransitionDecline: ApplicationStatusDeclined,
		},
	}
	statuses := []ApplicationStatus{
		ApplicationStatusPending, ApplicationStatusCallScheduled,
		ApplicationStatusApproved, ApplicationStatusDeclined,
	}
	all := []Transition{TransitionScheduleCall, TransitionApprove, TransitionDecline}

	for _, from := range statuses {
		for _, tr := range all {
			next, err := NextStatus(from, tr)
			if want, ok := allowed[from][tr]; ok {
				require.NoError(t, err, "%s --%s-->", from, tr)
				assert.Equal(t, want, next)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidTransition), "%s --%s--> should be rejected", from, tr)
				assert.Empty(t, next)
			}
		}
	}
}

func TestNextStatus_UnknownTransition(t *testing.T) {
	_, err := NextStatus(ApplicationStatusPending, Transition("reopen"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplication_ScheduleCall(t *testing.T) {
	at := time.Date(2026, 11, 2, 14, 30, 0, 0, time.UTC)

	t.Run("Pending", func(t *testing.T) {
		app := &Application{Status: ApplicationStatusPending}
		require.NoError(t, app.ScheduleCall(at, 7))
		assert.Equal(t, ApplicationStatusCallScheduled, app.Status)
		assert.Equal(t, at, *app.CallScheduledAt)
		assert.Equal(t, int32(7), *app.CallScheduledByID)
		assert.Nil(t, app.ProcessedByAdminID)
	})

	t.Run("AlreadyScheduled", func(t *testing.T) {
		first := at.Add(-time.Hour)
		app := &Application{Status: ApplicationStatusCallScheduled, CallScheduledAt: &first}
		assert.ErrorIs(t, app.ScheduleCall(at, 7), ErrInvalidTransition)
		assert.Equal(t, first, *app.CallScheduledAt)
	})

	t.Run("Declined", func(t *testing.T) {
		app := &Application{Status: ApplicationStatusDeclined}
		assert.ErrorIs(t, app.ScheduleCall(at, 7), ErrInvalidTransition)
		assert.Nil(t, app.CallScheduledAt)
	})
}

func TestApplication_Decide(t *testing.T) {
	notes := "ok"

	t.Run("Approve", func(t *testing.T) {
		app := &Application{Status: ApplicationStatusCallScheduled}
		require.NoError(t, app.Decide(TransitionApprove, &notes, 3))
		assert.Equal(t, ApplicationStatusApproved, app.Status)
		assert.Equal(t, int32(3), *app.ProcessedByAdminID)
		assert.Equal(t, "ok", *app.DecisionNotes)
	})

	t.Run("DeclineWithoutNotes", func(t *testing.T) {
		app := &Application{Status: ApplicationStatusPending}
		require.NoError(t, app.Decide(TransitionDecline, nil, 3))
		assert.Equal(t, ApplicationStatusDeclined, app.Status)
		assert.Nil(t, app.DecisionNotes)
	})

	t.Run("SecondDecisionRejected", func(t *testing.T) {
		app := &Application{Status: ApplicationStatusApproved}
		err := app.Decide(TransitionDecline, &notes, 4)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, ApplicationStatusApproved, app.Status)
		assert.Nil(t, app.ProcessedByAdminID)
	})

	t.Run("ScheduleCallIsNotADecision", func(t *testing.T) {
		app := &Application{Status: ApplicationStatusPending}
		assert.ErrorIs(t, app.Decide(TransitionScheduleCall, nil, 4), ErrInvalidTransition)
		assert.Equal(t, ApplicationStatusPending, app.Status)
	})
}

func TestMembershipType_RoleSlug(t *testing.T) {
	cases := map[MembershipType]RoleSlug{
		MembershipTypeCommunity: RoleSlugCommunity,
		MembershipTypeSupporter: RoleSlugSupporter,
		MembershipTypeMember:    RoleSlugMember,
	}
	for tier, want := range cases {
		got, ok := tier.RoleSlug()
		assert.True(t, ok)
		assert.Equal(t, want, got)
		assert.True(t, tier.IsValid())
	}

	_, ok := MembershipType("patron").RoleSlug()
	assert.False(t, ok)
}

func TestAdditionalData_ScanValue(t *testing.T) {
	var d AdditionalData
	require.NoError(t, d.Scan([]byte(`{"city":"Prague"}`)))
	assert.Equal(t, "Prague", d["city"])

	require.NoError(t, d.Scan(nil))
	assert.Nil(t, d)

	v, err := AdditionalData(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, d.Scan(42))
}
