package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voluntia-backend/internal/domain"
)

func strPtr(s string) *string { return &s }

func validMember() CreateApplicationRequest {
	return CreateApplicationRequest{
		Name:                   "Jana Novak",
		Email:                  "jana@example.org",
		DesiredMembershipType:  "member",
		Motivation:             strPtr("I want to help"),
		PhoneNumber:            strPtr("+420123456789"),
		GDPRConsent:            true,
		PartyStatutesConsent:   true,
		NoOtherPartyMembership: true,
		AdditionalDataMember: &MemberData{
			FullAddress: "Main Street 1, Prague",
			DateOfBirth: "1990-12-31",
		},
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	verr, ok := err.(*Error)
	require.True(t, ok, "expected *validation.Error, got %T", err)
	return verr.Fields
}

func TestCreateApplicationRequest_Community(t *testing.T) {
	req := CreateApplicationRequest{
		Name:                  "Petr",
		Email:                 "petr@example.org",
		DesiredMembershipType: "community",
		GDPRConsent:           true,
	}
	assert.NoError(t, Struct(req))
	assert.Nil(t, req.AdditionalData())

	req.GDPRConsent = false
	assert.Contains(t, fieldsOf(t, Struct(req)), "gdprConsent")
}

func TestCreateApplicationRequest_Supporter(t *testing.T) {
	req := CreateApplicationRequest{
		Name:                  "Eva",
		Email:                 "eva@example.org",
		DesiredMembershipType: "supporter",
		GDPRConsent:           true,
	}

	fields := fieldsOf(t, Struct(req))
	assert.Contains(t, fields, "phone_number")
	assert.Contains(t, fields, "motivation")
	assert.Contains(t, fields, "supporterStatutesConsent")
	assert.Contains(t, fields, "additionalDataSupporter")

	req.PhoneNumber = strPtr("+420111222333")
	req.Motivation = strPtr("Support the cause")
	req.SupporterStatutesConsent = true
	req.AdditionalDataSupporter = &SupporterData{City: "Brno"}
	require.NoError(t, Struct(req))
	assert.Equal(t, domain.AdditionalData{"city": "Brno"}, req.AdditionalData())

	req.AdditionalDataSupporter.City = ""
	assert.Contains(t, fieldsOf(t, Struct(req)), "additionalDataSupporter.city")
}

func TestCreateApplicationRequest_Member(t *testing.T) {
	req := validMember()
	require.NoError(t, Struct(req))
	assert.Equal(t, domain.AdditionalData{
		"full_address":  "Main Street 1, Prague",
		"date_of_birth": "1990-12-31",
	}, req.AdditionalData())

	t.Run("MissingDeclarations", func(t *testing.T) {
		r := validMember()
		r.PartyStatutesConsent = false
		r.NoOtherPartyMembership = false
		fields := fieldsOf(t, Struct(r))
		assert.Equal(t, "must be accepted", fields["partyStatutesConsent"])
		assert.Equal(t, "must be accepted", fields["noOtherPartyMembership"])
	})

	t.Run("BadDateOfBirth", func(t *testing.T) {
		r := validMember()
		r.AdditionalDataMember.DateOfBirth = "31.12.1990"
		assert.Equal(t, "must be a date in YYYY-MM-DD format", fieldsOf(t, Struct(r))["additionalDataMember.date_of_birth"])
	})

	t.Run("OtherTierBlockRejected", func(t *testing.T) {
		r := validMember()
		r.AdditionalDataSupporter = &SupporterData{City: "Brno"}
		assert.Contains(t, fieldsOf(t, Struct(r)), "additionalDataSupporter")
	})

	t.Run("ProfessionKept", func(t *testing.T) {
		r := validMember()
		r.AdditionalDataMember.Profession = "Nurse"
		assert.Equal(t, "Nurse", r.AdditionalData()["profession"])
	})
}

func TestCreateApplicationRequest_BasicFields(t *testing.T) {
	req := validMember()
	req.Email = "not-an-email"
	req.DesiredMembershipType = "vip"
	fields := fieldsOf(t, Struct(req))
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Contains(t, fields, "desiredMembershipType")
}

func TestChangePasswordRequest(t *testing.T) {
	ok := ChangePasswordRequest{CurrentPassword: "OldPass123", NewPassword: "NewPass123", ConfirmPassword: "NewPass123"}
	assert.NoError(t, Struct(ok))

	weak := ok
	weak.NewPassword, weak.ConfirmPassword = "alllowercase1", "alllowercase1"
	assert.Contains(t, fieldsOf(t, Struct(weak)), "newPassword")

	mismatch := ok
	mismatch.ConfirmPassword = "Different123"
	assert.Equal(t, "does not match", fieldsOf(t, Struct(mismatch))["confirmPassword"])

	same := ok
	same.NewPassword, same.ConfirmPassword = "OldPass123", "OldPass123"
	assert.Contains(t, fieldsOf(t, Struct(same)), "newPassword")
}

func TestScheduleCallRequest_ZeroTime(t *testing.T) {
	assert.Contains(t, fieldsOf(t, Struct(ScheduleCallRequest{})), "callScheduledAt")
	assert.NoError(t, Struct(ScheduleCallRequest{CallScheduledAt: time.Now().Add(time.Hour)}))
}

func TestApplicationQuery(t *testing.T) {
	assert.NoError(t, Struct(ApplicationQuery{Status: "pending", Page: 1, Limit: 10}))
	fields := fieldsOf(t, Struct(ApplicationQuery{Status: "archived", Page: 0, Limit: 101}))
	assert.Contains(t, fields, "status")
	assert.Contains(t, fields, "page")
	assert.Contains(t, fields, "limit")
}

func TestUpdateProfileRequest(t *testing.T) {
	assert.NoError(t, Struct(UpdateProfileRequest{}))

	tags := []string{"housing", "transport"}
	assert.NoError(t, Struct(UpdateProfileRequest{
		Name:      strPtr("Jana"),
		AvatarURL: strPtr("https://cdn.example.org/jana.png"),
		Location:  strPtr(""),
		Tags:      &tags,
	}))

	tooMany := make([]string, 11)
	for i := range tooMany {
		tooMany[i] = "tag"
	}
	fields := fieldsOf(t, Struct(UpdateProfileRequest{AvatarURL: strPtr("not a url"), Tags: &tooMany}))
	assert.Equal(t, "must be a valid URL", fields["avatarUrl"])
	assert.Equal(t, "must have at most 10 items", fields["tags"])

	long := []string{strings.Repeat("x", 51)}
	fields = fieldsOf(t, Struct(UpdateProfileRequest{Tags: &long}))
	assert.Contains(t, fields, "tags[0]")
}

func TestUserQuery(t *testing.T) {
	assert.NoError(t, Struct(UserQuery{Page: 1, Limit: 10}))
	assert.NoError(t, Struct(UserQuery{RoleSlug: "member", Page: 1, Limit: 100}))
	assert.NoError(t, Struct(UserQuery{RoleSlug: "regional-coordinator", Page: 1, Limit: 10}))

	fields := fieldsOf(t, Struct(UserQuery{RoleSlug: "Party Member", Page: 1, Limit: 101}))
	assert.Equal(t, "must be a role slug such as member", fields["roleSlug"])
	assert.Contains(t, fields, "limit")
}

func TestError_Message(t *testing.T) {
	err := &Error{Fields: map[string]string{"b": "is required", "a": "is invalid"}}
	assert.Equal(t, "validation failed: a: is invalid; b: is required", err.Error())
}
