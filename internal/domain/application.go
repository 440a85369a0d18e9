package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type ApplicationStatus string

const (
	ApplicationStatusPending       ApplicationStatus = "pending"
	ApplicationStatusCallScheduled ApplicationStatus = "call_scheduled"
	ApplicationStatusApproved      ApplicationStatus = "approved"
	ApplicationStatusDeclined      ApplicationStatus = "declined"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusCallScheduled, ApplicationStatusApproved, ApplicationStatusDeclined:
		return true
	}
	return false
}

// IsProcessed reports whether a decision has been recorded. Processed
// applications are immutable.
func (s ApplicationStatus) IsProcessed() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusDeclined
}

type MembershipType string

const (
	MembershipTypeCommunity MembershipType = "community"
	MembershipTypeSupporter MembershipType = "supporter"
	MembershipTypeMember    MembershipType = "member"
)

func (m MembershipType) IsValid() bool {
	_, ok := membershipRoles[m]
	return ok
}

// membershipRoles is the fixed tier to role mapping applied on approval.
var membershipRoles = map[MembershipType]RoleSlug{
	MembershipTypeCommunity: RoleSlugCommunity,
	MembershipTypeSupporter: RoleSlugSupporter,
	MembershipTypeMember:    RoleSlugMember,
}

// RoleSlug returns the slug of the role granted when an application for
// this tier is approved.
func (m MembershipType) RoleSlug() (RoleSlug, bool) {
	slug, ok := membershipRoles[m]
	return slug, ok
}

// AdditionalData is the tier-specific intake payload, stored as JSONB.
type AdditionalData map[string]any

func (d AdditionalData) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *AdditionalData) Scan(src any) error {
	if src == nil {
		*d = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported additional_data type %T", src)
	}
	if len(raw) == 0 {
		*d = nil
		return nil
	}
	return json.Unmarshal(raw, d)
}

type Application struct {
	ID                    int32             `json:"id"`
	UserID                int32             `json:"user_id"`
	DesiredMembershipType MembershipType    `json:"desired_membership_type"`
	Status                ApplicationStatus `json:"status"`
	Motivation            *string           `json:"motivation"`
	AdditionalData        AdditionalData    `json:"additional_data"`
	CallScheduledAt       *time.Time        `json:"call_scheduled_at"`
	CallScheduledByID     *int32            `json:"call_scheduled_by_id"`
	ProcessedByAdminID    *int32            `json:"processed_by_admin_id"`
	DecisionNotes         *string           `json:"decision_notes"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`

	User             *User `json:"user,omitempty"`               // Populated in staff views
	ProcessedByAdmin *User `json:"processed_by_admin,omitempty"` // Populated in staff views
}

// ApplicationFilter narrows staff listings.
type ApplicationFilter struct {
	Status *ApplicationStatus
	Search string
	Page   int32
	Limit  int32
}

type Transition string

const (
	TransitionScheduleCall Transition = "schedule_call"
	TransitionApprove      Transition = "approve"
	TransitionDecline      Transition = "decline"
)

var ErrInvalidTransition = errors.New("invalid application transition")

// transitions lists every legal edge of the application lifecycle.
var transitions = map[Transition]map[ApplicationStatus]ApplicationStatus{
	TransitionScheduleCall: {
		ApplicationStatusPending: ApplicationStatusCallScheduled,
	},
	TransitionApprove: {
		ApplicationStatusPending:       ApplicationStatusApproved,
		ApplicationStatusCallScheduled: ApplicationStatusApproved,
	},
	TransitionDecline: {
		ApplicationStatusPending:       ApplicationStatusDeclined,
		ApplicationStatusCallScheduled: ApplicationStatusDeclined,
	},
}

// NextStatus returns the status reached by applying t to from, or an error
// wrapping ErrInvalidTransition when the edge does not exist.
func NextStatus(from ApplicationStatus, t Transition) (ApplicationStatus, error) {
	edges, ok := transitions[t]
	if !ok {
		return "", fmt.Errorf("%w: unknown transition %q", ErrInvalidTransition, t)
	}
	to, ok := edges[from]
	if !ok {
		if from.IsProcessed() {
			return "", fmt.Errorf("%w: application has already been processed (status: %s)", ErrInvalidTransition, from)
		}
		return "", fmt.Errorf("%w: cannot %s application with status %s", ErrInvalidTransition, t, from)
	}
	return to, nil
}

// ScheduleCall moves the application to call_scheduled.
func (a *Application) ScheduleCall(at time.Time, staffID int32) error {
	next, err := NextStatus(a.Status, TransitionScheduleCall)
	if err != nil {
		return err
	}
	a.Status = next
	a.CallScheduledAt = &at
	a.CallScheduledByID = &staffID
	return nil
}

// Decide records a terminal decision. t must be approve or decline.
func (a *Application) Decide(t Transition, notes *string, staffID int32) error {
	if t != TransitionApprove && t != TransitionDecline {
		return fmt.Errorf("%w: %s is not a decision", ErrInvalidTransition, t)
	}
	next, err := NextStatus(a.Status, t)
	if err != nil {
		return err
	}
	a.Status = next
	a.ProcessedByAdminID = &staffID
	a.DecisionNotes = notes
	return nil
}
