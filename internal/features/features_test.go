package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"muzikuj/internal/models"
)

func TestPlan(t *testing.T) {
	assert.Equal(t, PlanGuest, Plan(nil))
	assert.Equal(t, "free", Plan(&models.User{}))
	assert.Equal(t, "business", Plan(&models.User{Plan: models.PlanBusiness}))
	assert.Equal(t, "pro", Plan(&models.User{Plan: models.PlanFree, IsVIP: true}))
}

func TestHas(t *testing.T) {
	tests := []struct {
		name string
		u    *models.User
		key  string
		want bool
	}{
		{"guest", nil, DopytyView, false},
		{"free", &models.User{Plan: "free"}, DopytyView, false},
		{"pro", &models.User{Plan: "pro"}, DopytyView, true},
		{"pro lacks business tools", &models.User{Plan: "pro"}, BusinessTools, false},
		{"business tools", &models.User{Plan: "business"}, BusinessTools, true},
		{"vip acts as pro", &models.User{Plan: "free", IsVIP: true}, Calendar, true},
		{"vip stays pro", &models.User{Plan: "business", IsVIP: true}, BusinessTools, false},
		{"admin bypass", &models.User{Plan: "free", IsAdmin: true}, BusinessTools, true},
		{"unknown key", &models.User{Plan: "business"}, "nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Has(tt.u, tt.key))
		})
	}
}

func TestQuota(t *testing.T) {
	assert.Equal(t, 2, Quota(&models.User{Plan: "free"}, BazaarMaxItems, 0))
	assert.Equal(t, 50, Quota(&models.User{IsVIP: true}, GalleryMaxPhotos, 0))
	assert.Equal(t, Unlimited, Quota(&models.User{IsAdmin: true}, BazaarMaxItems, 0))
	assert.Equal(t, 7, Quota(nil, BazaarMaxItems, 7))
	assert.Equal(t, 9, Quota(&models.User{Plan: "pro"}, "other", 9))
}
