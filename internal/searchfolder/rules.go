// Package searchfolder evaluates search-folder rule sets against items.
package searchfolder

import (
	"strings"

	"feedcore/internal/domain"
)

// Matches reports whether item satisfies rule set rs. An empty rule set
// matches nothing (a search folder with no rules has no members).
func Matches(item *domain.Item, rs domain.RuleSet) bool {
	if len(rs.Rules) == 0 {
		return false
	}

	if rs.Combinator == domain.CombinatorAny {
		for _, r := range rs.Rules {
			if evalRule(item, r) {
				return true
			}
		}
		return false
	}

	for _, r := range rs.Rules {
		if !evalRule(item, r) {
			return false
		}
	}
	return true
}

func evalRule(item *domain.Item, r domain.Rule) bool {
	var v bool
	switch r.Kind {
	case domain.RuleTitleContains:
		v = containsFold(item.Title, r.Value)
	case domain.RuleBodyContains:
		v = containsFold(item.Description, r.Value)
	case domain.RuleTitleOrBodyContains:
		v = containsFold(item.Title, r.Value) || containsFold(item.Description, r.Value)
	case domain.RuleFeedTitleContains:
		v = containsFold(item.RealSourceTitle, r.Value)
	case domain.RuleUnread:
		v = !item.Read
	case domain.RuleFlagged:
		v = item.Flag
	case domain.RuleUpdated:
		v = item.Updated
	case domain.RuleHasEnclosure:
		v = item.HasEnclosure
	}
	if r.Negate {
		return !v
	}
	return v
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// ReferencesField reports whether any rule in rs inspects the given item
// field, so the merge engine can limit rematch work to search folders
// that actually care about what changed.
func ReferencesField(rs domain.RuleSet, field string) bool {
	for _, r := range rs.Rules {
		switch field {
		case "title":
			if r.Kind == domain.RuleTitleContains || r.Kind == domain.RuleTitleOrBodyContains {
				return true
			}
		case "description":
			if r.Kind == domain.RuleBodyContains || r.Kind == domain.RuleTitleOrBodyContains {
				return true
			}
		case "read":
			if r.Kind == domain.RuleUnread {
				return true
			}
		case "flag":
			if r.Kind == domain.RuleFlagged {
				return true
			}
		case "updated":
			if r.Kind == domain.RuleUpdated {
				return true
			}
		case "enclosure":
			if r.Kind == domain.RuleHasEnclosure {
				return true
			}
		}
	}
	return false
}
