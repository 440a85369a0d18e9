package validation

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"voluntia-backend/internal/domain"
)

type SupporterData struct {
	City string `json:"city" validate:"required,max=255"`
}

type MemberData struct {
	FullAddress string `json:"full_address" validate:"required,max=500"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Profession  string `json:"profession,omitempty" validate:"omitempty,max=255"`
}

// CreateApplicationRequest is the public application form. The tier decides
// which of the consent flags and additional-data blocks are required.
type CreateApplicationRequest struct {
	Name                     string  `json:"name" validate:"required,max=255"`
	Email                    string  `json:"email" validate:"required,email,max=255"`
	DesiredMembershipType    string  `json:"desiredMembershipType" validate:"required,oneof=community supporter member"`
	Motivation               *string `json:"motivation" validate:"omitempty,max=5000"`
	PhoneNumber              *string `json:"phone_number" validate:"omitempty,max=50"`
	GDPRConsent              bool    `json:"gdprConsent"`
	SupporterStatutesConsent bool    `json:"supporterStatutesConsent"`
	PartyStatutesConsent     bool    `json:"partyStatutesConsent"`
	NoOtherPartyMembership   bool    `json:"noOtherPartyMembership"`

	AdditionalDataSupporter *SupporterData `json:"additionalDataSupporter"`
	AdditionalDataMember    *MemberData    `json:"additionalDataMember"`
}

// applicationTierRules enforces the per-tier requirements.
func applicationTierRules(sl validator.StructLevel) {
	req := sl.Current().Interface().(CreateApplicationRequest)

	if !req.GDPRConsent {
		sl.ReportError(req.GDPRConsent, "gdprConsent", "GDPRConsent", "accepted", "")
	}

	tier := domain.MembershipType(req.DesiredMembershipType)
	if tier == domain.MembershipTypeSupporter || tier == domain.MembershipTypeMember {
		if blank(req.PhoneNumber) {
			sl.ReportError(req.PhoneNumber, "phone_number", "PhoneNumber", "required_if", "")
		}
		if blank(req.Motivation) {
			sl.ReportError(req.Motivation, "motivation", "Motivation", "required_if", "")
		}
	}

	switch tier {
	case domain.MembershipTypeSupporter:
		if !req.SupporterStatutesConsent {
			sl.ReportError(req.SupporterStatutesConsent, "supporterStatutesConsent", "SupporterStatutesConsent", "accepted", "")
		}
		if req.AdditionalDataSupporter == nil {
			sl.ReportError(req.AdditionalDataSupporter, "additionalDataSupporter", "AdditionalDataSupporter", "required_if", "")
		}
		if req.AdditionalDataMember != nil {
			sl.ReportError(req.AdditionalDataMember, "additionalDataMember", "AdditionalDataMember", "excluded_unless", "")
		}
	case domain.MembershipTypeMember:
		if !req.PartyStatutesConsent {
			sl.ReportError(req.PartyStatutesConsent, "partyStatutesConsent", "PartyStatutesConsent", "accepted", "")
		}
		if !req.NoOtherPartyMembership {
			sl.ReportError(req.NoOtherPartyMembership, "noOtherPartyMembership", "NoOtherPartyMembership", "accepted", "")
		}
		if req.AdditionalDataMember == nil {
			sl.ReportError(req.AdditionalDataMember, "additionalDataMember", "AdditionalDataMember", "required_if", "")
		}
		if req.AdditionalDataSupporter != nil {
			sl.ReportError(req.AdditionalDataSupporter, "additionalDataSupporter", "AdditionalDataSupporter", "excluded_unless", "")
		}
	case domain.MembershipTypeCommunity:
		if req.AdditionalDataSupporter != nil {
			sl.ReportError(req.AdditionalDataSupporter, "additionalDataSupporter", "AdditionalDataSupporter", "excluded_unless", "")
		}
		if req.AdditionalDataMember != nil {
			sl.ReportError(req.AdditionalDataMember, "additionalDataMember", "AdditionalDataMember", "excluded_unless", "")
		}
	}
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// AdditionalData returns only the block that belongs to the requested tier.
func (r *CreateApplicationRequest) AdditionalData() domain.AdditionalData {
	switch domain.MembershipType(r.DesiredMembershipType) {
	case domain.MembershipTypeSupporter:
		if r.AdditionalDataSupporter != nil {
			return domain.AdditionalData{"city": r.AdditionalDataSupporter.City}
		}
	case domain.MembershipTypeMember:
		if m := r.AdditionalDataMember; m != nil {
			data := domain.AdditionalData{
				"full_address":  m.FullAddress,
				"date_of_birth": m.DateOfBirth,
			}
			if m.Profession != "" {
				data["profession"] = m.Profession
			}
			return data
		}
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72,password_strength,nefield=CurrentPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

type ScheduleCallRequest struct {
	CallScheduledAt time.Time `json:"callScheduledAt" validate:"required"`
}

type DecisionRequest struct {
	DecisionNotes *string `json:"decisionNotes" validate:"omitempty,max=5000"`
}

type ApplicationQuery struct {
	Status string `json:"status" validate:"omitempty,oneof=pending call_scheduled approved declined"`
	Search string `json:"search" validate:"omitempty,max=255"`
	Page   int32  `json:"page" validate:"gte=1"`
	Limit  int32  `json:"limit" validate:"gte=1,lte=100"`
}

// UpdateProfileRequest is a partial profile edit; omitted fields are kept.
type UpdateProfileRequest struct {
	Name      *string   `json:"name" validate:"omitempty,max=255"`
	AvatarURL *string   `json:"avatarUrl" validate:"omitempty,url,max=512"`
	Location  *string   `json:"location" validate:"omitempty,max=255"`
	Bio       *string   `json:"bio" validate:"omitempty,max=5000"`
	Tags      *[]string `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

func (r *UpdateProfileRequest) ProfileUpdate() domain.ProfileUpdate {
	return domain.ProfileUpdate{
		Name:      r.Name,
		AvatarURL: r.AvatarURL,
		Location:  r.Location,
		Bio:       r.Bio,
		Tags:      r.Tags,
	}
}

type UserQuery struct {
	RoleSlug string `json:"roleSlug" validate:"omitempty,max=100,role_slug"`
	Search   string `json:"search" validate:"omitempty,max=255"`
	Page     int32  `json:"page" validate:"gte=1"`
	Limit    int32  `json:"limit" validate:"gte=1,lte=100"`
}
