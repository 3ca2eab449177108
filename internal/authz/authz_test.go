package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muzikuj/internal/models"
)

func TestEnforcer(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	user := &models.User{AccountType: models.AccountIndividual}
	company := &models.User{AccountType: models.AccountCompany}
	mod := &models.User{IsModerator: true}
	admin := &models.User{IsAdmin: true}

	tests := []struct {
		name string
		u    *models.User
		obj  string
		act  string
		want bool
	}{
		{"guest cannot report", nil, ObjReport, "create", false},
		{"user can report", user, ObjReport, "create", true},
		{"user cannot moderate", user, ObjModeration, "manage", false},
		{"user cannot publish ads", user, ObjAd, "publish", false},
		{"company publishes ads", company, ObjAd, "publish", true},
		{"company publishes events", company, ObjEvent, "publish", true},
		{"moderator moderates", mod, ObjModeration, "manage", true},
		{"moderator inherits user", mod, ObjReport, "create", true},
		{"moderator has no dashboard", mod, ObjDashboard, "view", false},
		{"admin dashboard", admin, ObjDashboard, "view", true},
		{"admin publishes", admin, ObjAd, "publish", true},
		{"admin moderates", admin, ObjModeration, "manage", true},
		{"user sends messages", user, ObjMessage, "send", true},
		{"guest cannot send messages", nil, ObjMessage, "send", false},
		{"company creates classifieds", company, ObjClassified, "create", true},
		{"user posts in forum", user, ObjForum, "post", true},
		{"user cannot mark answers", user, ObjForum, "answer", false},
		{"user creates quick requests", user, ObjQuickRequest, "create", true},
		{"user cannot close quick requests", user, ObjQuickRequest, "close", false},
		{"user cannot handle ad reports", user, ObjAdReport, "handle", false},
		{"moderator handles ad reports", mod, ObjAdReport, "handle", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Can(tt.u, tt.obj, tt.act))
		})
	}
}
