// Package authz answers role questions (may this user moderate, publish ads,
// see the dashboard) with a casbin RBAC model embedded in the binary.
//
// Roles form a chain admin > moderator > user. Company accounts (account type
// "ico") additionally hold the company role, which admins inherit too.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"muzikuj/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

const (
	ObjModeration   = "moderation"
	ObjDashboard    = "dashboard"
	ObjAd           = "ad"
	ObjEvent        = "event"
	ObjAdReport     = "ad_report"
	ObjQuickRequest = "quick_request"
	ObjForum        = "forum"
	ObjReport       = "report"
	ObjMessage      = "message"
	ObjClassified   = "classified"
)

type Enforcer struct {
	e *casbin.SyncedEnforcer
}

func New() (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := loadPolicy(e, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Enforcer{e: e}, nil
}

func loadPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := e.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := e.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("bad policy line %q", line)
		}
	}
	return nil
}

func subjects(u *models.User) []string {
	if u == nil {
		return nil
	}
	subs := []string{u.Role()}
	if u.AccountType == models.AccountCompany {
		subs = append(subs, "company")
	}
	return subs
}

// Can reports whether u may perform act on obj. Anonymous users may do nothing.
func (e *Enforcer) Can(u *models.User, obj, act string) bool {
	for _, sub := range subjects(u) {
		ok, err := e.e.Enforce(sub, obj, act)
		if err == nil && ok {
			return true
		}
	}
	return false
}

func (e *Enforcer) IsStaff(u *models.User) bool { return e.Can(u, ObjModeration, "manage") }

func (e *Enforcer) CanPublish(u *models.User) bool { return e.Can(u, ObjAd, "publish") }
