// Package features maps subscription plans to feature flags and quotas.
package features

import "muzikuj/internal/models"

const (
	DopytyView    = "dopyty:view"
	SearchVisible = "search:visible"
	Calendar      = "calendar"
	BusinessTools = "business.tools"
	InvoicePDF    = "invoice.pdf"

	BazaarMaxItems   = "bazaar.max_items"
	GalleryMaxPhotos = "gallery.max_photos"
	MessagesMax      = "messages.max"
)

// Unlimited is the quota returned for admins.
const Unlimited = 10_000_000

const PlanGuest = "guest"

type plan struct {
	flags  map[string]bool
	quotas map[string]int
}

var plans = map[string]plan{
	models.PlanFree: {
		flags:  map[string]bool{DopytyView: false, SearchVisible: false, Calendar: false, BusinessTools: false, InvoicePDF: false},
		quotas: map[string]int{BazaarMaxItems: 2, GalleryMaxPhotos: 3, MessagesMax: 50},
	},
	models.PlanPro: {
		flags:  map[string]bool{DopytyView: true, SearchVisible: true, Calendar: true, BusinessTools: false, InvoicePDF: true},
		quotas: map[string]int{BazaarMaxItems: 20, GalleryMaxPhotos: 50, MessagesMax: 1000},
	},
	models.PlanBusiness: {
		flags:  map[string]bool{DopytyView: true, SearchVisible: true, Calendar: true, BusinessTools: true, InvoicePDF: true},
		quotas: map[string]int{BazaarMaxItems: 50, GalleryMaxPhotos: 100, MessagesMax: 10000},
	},
}

// Plan returns the effective plan name. VIP members behave as pro.
func Plan(u *models.User) string {
	switch {
	case u == nil:
		return PlanGuest
	case u.IsVIP:
		return models.PlanPro
	case u.Plan == "":
		return models.PlanFree
	default:
		return u.Plan
	}
}

func Has(u *models.User, key string) bool {
	if u != nil && u.IsAdmin {
		return true
	}
	return plans[Plan(u)].flags[key]
}

// Quota returns the numeric limit for key, or def when the plan does not define it.
func Quota(u *models.User, key string, def int) int {
	if u != nil && u.IsAdmin {
		return Unlimited
	}
	p, ok := plans[Plan(u)]
	if !ok {
		return def
	}
	if q, ok := p.quotas[key]; ok {
		return q
	}
	return def
}
