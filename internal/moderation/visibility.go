package moderation

import (
	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
)

// RequestContext describes the shape of a read request
type RequestContext struct {
	Detail    bool // single-listing lookup by id
	MineView  bool // ?mine=true
	AdminView bool // ?admin=true
}

// Scope is the family of listings a predicate admits
type Scope int

const (
	ScopeApproved Scope = iota
	ScopeAll
	ScopeOwned
	ScopeOwnedOrApproved
)

func (s Scope) String() string {
	switch s {
	case ScopeApproved:
		return "approved"
	case ScopeAll:
		return "all"
	case ScopeOwned:
		return "owned"
	case ScopeOwnedOrApproved:
		return "owned_or_approved"
	}
	return "unknown"
}

// Predicate is a boolean function over listings, kept as data so storage
// backends can render it natively.
type Predicate struct {
	Scope   Scope
	OwnerID string
}

// Approved admits approved listings only. It is the zero Predicate.
func Approved() Predicate { return Predicate{Scope: ScopeApproved} }

// All admits every listing
func All() Predicate { return Predicate{Scope: ScopeAll} }

// OwnedBy admits every listing owned by ownerID, in any state
func OwnedBy(ownerID string) Predicate { return Predicate{Scope: ScopeOwned, OwnerID: ownerID} }

// OwnedByOrApproved admits listings owned by ownerID plus approved ones
func OwnedByOrApproved(ownerID string) Predicate {
	return Predicate{Scope: ScopeOwnedOrApproved, OwnerID: ownerID}
}

// Matches evaluates the predicate against l
func (p Predicate) Matches(l *model.Listing) bool {
	if l == nil {
		return false
	}
	switch p.Scope {
	case ScopeAll:
		return true
	case ScopeOwned:
		return p.OwnerID != "" && l.OwnerID == p.OwnerID
	case ScopeOwnedOrApproved:
		return (p.OwnerID != "" && l.OwnerID == p.OwnerID) || l.ModerationState == model.StateApproved
	default:
		return l.ModerationState == model.StateApproved
	}
}

// Rule is one entry of the ordered visibility cascade
type Rule struct {
	Name      string
	Applies   func(model.Actor, RequestContext) bool
	Predicate func(model.Actor) Predicate
}

// DefaultRules is the visibility cascade, evaluated top to bottom with the
// first match winning. admin_view is unreachable for detail requests since
// detail_moderator already admits moderators there.
var DefaultRules = []Rule{
	{
		Name: "detail_moderator",
		Applies: func(a model.Actor, c RequestContext) bool {
			return c.Detail && a.IsModerator()
		},
		Predicate: func(model.Actor) Predicate { return All() },
	},
	{
		Name: "detail_authenticated",
		Applies: func(a model.Actor, c RequestContext) bool {
			return c.Detail && a.Authenticated
		},
		Predicate: func(a model.Actor) Predicate { return OwnedByOrApproved(a.ID) },
	},
	{
		Name: "admin_view",
		Applies: func(a model.Actor, c RequestContext) bool {
			return c.AdminView && a.IsModerator()
		},
		Predicate: func(model.Actor) Predicate { return All() },
	},
	{
		Name: "mine_view",
		Applies: func(a model.Actor, c RequestContext) bool {
			return c.MineView && a.Authenticated
		},
		Predicate: func(a model.Actor) Predicate { return OwnedBy(a.ID) },
	},
	{
		Name:      "public",
		Applies:   func(model.Actor, RequestContext) bool { return true },
		Predicate: func(model.Actor) Predicate { return Approved() },
	},
}

// Resolver selects the visibility predicate for a request
type Resolver struct {
	rules []Rule
}

// NewResolver creates a resolver over rules; nil selects DefaultRules
func NewResolver(rules []Rule) *Resolver {
	if rules == nil {
		rules = DefaultRules
	}
	return &Resolver{rules: rules}
}

// Resolve returns the predicate of the first matching rule and its name.
// With no matching rule it falls back to approved listings only.
func (r *Resolver) Resolve(actor model.Actor, ctx RequestContext) (Predicate, string) {
	for _, rule := range r.rules {
		if rule.Applies(actor, ctx) {
			return rule.Predicate(actor), rule.Name
		}
	}
	return Approved(), "fallback"
}

// Operation is a mutation an actor may attempt on a listing
type Operation string

const (
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpApprove Operation = "approve"
	OpReject  Operation = "reject"
)

// CanMutate reports whether actor may perform op on listing. Edits and
// deletes are open to the owner and to moderators; approve and reject are
// moderator-only, ownership notwithstanding.
func CanMutate(actor model.Actor, listing *model.Listing, op Operation) bool {
	switch op {
	case OpUpdate, OpDelete:
		return actor.IsModerator() || actor.Owns(listing)
	case OpApprove, OpReject:
		return actor.IsModerator()
	}
	return false
}
