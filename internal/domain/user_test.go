package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestProfileUpdate_Apply(t *testing.T) {
	user := User{
		Name:      "Ada",
		AvatarURL: strPtr("https://cdn.example.com/ada.png"),
		Location:  strPtr("Prague"),
		Bio:       strPtr("Volunteer"),
		Tags:      []string{"housing"},
	}

	tags := []string{" transport ", "", "housing", "transport"}
	ProfileUpdate{
		Name:     strPtr("  Ada Lovelace "),
		Location: strPtr("   "),
		Tags:     &tags,
	}.Apply(&user)

	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Nil(t, user.Location, "blank clears the field")
	assert.Equal(t, []string{"transport", "housing"}, user.Tags)
	assert.Equal(t, "https://cdn.example.com/ada.png", *user.AvatarURL, "unset fields are kept")
	assert.Equal(t, "Volunteer", *user.Bio)
}

func TestProfileUpdate_IsEmpty(t *testing.T) {
	assert.True(t, ProfileUpdate{}.IsEmpty())
	assert.False(t, ProfileUpdate{Bio: strPtr("")}.IsEmpty())

	var none []string
	assert.False(t, ProfileUpdate{Tags: &none}.IsEmpty())
}
