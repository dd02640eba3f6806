package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hocvui-edu/hocvui_api/model"
)

func TestNewIdentityInfo_CarriesDisplayName(t *testing.T) {
	info := NewIdentityInfo(&model.Identity{
		ID:        "id-1",
		FirstName: "An",
		LastName:  "Nguyen",
		Email:     "a@x.com",
		Role:      model.RoleUser,
		CreatedAt: time.Now(),
	})

	require.NotNil(t, info)
	assert.Equal(t, "An Nguyen", info.DisplayName)
	assert.Equal(t, "a@x.com", info.Email)
}

func TestNewIdentityInfo_NilIdentity(t *testing.T) {
	assert.Nil(t, NewIdentityInfo(nil))
}

func TestNewSessionResponse_AttachesIdentityOnlyWhenAuthenticated(t *testing.T) {
	guest := &model.Session{Token: "tok-1", State: model.SessionGuest, GuestProgress: model.NewGuestProgress()}
	resp := NewSessionResponse(guest, nil)
	assert.Nil(t, resp.Identity)
	assert.Equal(t, model.SessionGuest, resp.State)

	authed := &model.Session{Token: "tok-2", State: model.SessionAuthenticated, IdentityID: "id-1"}
	resp = NewSessionResponse(authed, &model.Identity{ID: "id-1", FirstName: "An", LastName: "Nguyen"})
	require.NotNil(t, resp.Identity)
	assert.Equal(t, "An Nguyen", resp.Identity.DisplayName)
}
