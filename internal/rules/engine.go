// Package rules is the Casbin-backed profile and account content policy
// engine (spec.md §4.3's REJECTED_BLOCKED_BY_RULE, SPEC_FULL.md §4.12). It
// implements two distinct gates against one shared enforcer:
//
//   - AllowedAtIngest(accountKey, candidate): account/source-level policy,
//     applied before a candidate is normalized, independent of any
//     profile (internal/ingest.RuleEngine).
//   - Allowed(profileKey, work): per-profile content policy (allow/deny
//     lists, rating cap) consulted at read/play time, per
//     internal/nx/entities.go's ProfileRule doc comment.
//
// Both gates share one casbin.SyncedEnforcer and model so a single policy
// store backs account and profile decisions, following the teacher's
// internal/authz.Enforcer pattern (embedded model/policy, cache-then-
// enforce, role-based default fallback) adapted from RBAC-for-HTTP-routes
// to content gating.
package rules

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/karlokarate/nxcatalog/internal/config"
	"github.com/karlokarate/nxcatalog/internal/ingest"
	"github.com/karlokarate/nxcatalog/internal/normalize"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

var _ ingest.RuleEngine = (*Engine)(nil)

// ratingTiers orders known rating tags from least to most restrictive.
// RatingCap denies every tier at or above the cap's index.
var ratingTiers = []string{"g", "pg", "pg-13", "r", "nc-17", "adult"}

// capabilityBlockPrefix marks a SourceAccount.Capabilities entry as an
// ingest-time media-kind block, e.g. "block:live".
const capabilityBlockPrefix = "block:"

// Engine is the Casbin-backed rule engine. The zero value is not usable;
// construct with New.
type Engine struct {
	enforcer *casbin.SyncedEnforcer
	store    nx.EntityStore

	mu             sync.Mutex
	syncedAccounts map[string]bool
	syncedProfiles map[string]bool
}

// New builds an Engine over the embedded default model/policy, adding
// per-account and per-profile rules lazily as they're first consulted.
func New(store nx.EntityStore) (*Engine, error) {
	return NewWithConfig(store, config.RulesConfig{})
}

// NewWithConfig builds an Engine, loading the Casbin model/policy from
// cfg.ModelPath/PolicyPath when those files exist and falling back to the
// embedded defaults otherwise. AutoReload enables Casbin's own polling
// file watcher against PolicyPath, so an operator can edit the policy CSV
// without restarting the server.
func NewWithConfig(store nx.EntityStore, cfg config.RulesConfig) (*Engine, error) {
	var m model.Model
	var err error
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("rules: parse model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		adapter := fileadapter.NewAdapter(cfg.PolicyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("rules: new enforcer: %w", err)
	}
	enforcer.EnableLog(false)

	if cfg.AutoReload && cfg.PolicyPath != "" {
		enforcer.StartAutoLoadPolicy(cfg.ReloadInterval)
	}

	return &Engine{
		enforcer:       enforcer,
		store:          store,
		syncedAccounts: make(map[string]bool),
		syncedProfiles: make(map[string]bool),
	}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// loadEmbeddedPolicy parses a plain Casbin CSV policy string ("p, ..." /
// "g, ...") directly into enforcer, mirroring the teacher's authz package's
// manual line parser for embedded policy text (no file adapter needed for
// a static default set).
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		switch fields[0] {
		case "p":
			args := toAnySlice(fields[1:])
			if _, err := enforcer.AddPolicy(args...); err != nil {
				return fmt.Errorf("add policy %q: %w", line, err)
			}
		case "g":
			args := toAnySlice(fields[1:])
			if _, err := enforcer.AddGroupingPolicy(args...); err != nil {
				return fmt.Errorf("add grouping policy %q: %w", line, err)
			}
		default:
			return fmt.Errorf("unrecognized policy line prefix %q", fields[0])
		}
	}
	return nil
}

func toAnySlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// AllowedAtIngest implements internal/ingest.RuleEngine: it blocks a
// candidate whose media kind is in its account's explicit block list,
// independent of any profile. Unknown accounts are allowed (no policy
// configured for them yet).
func (e *Engine) AllowedAtIngest(ctx context.Context, accountKey string, candidate normalize.RawRecord) (bool, string, error) {
	account, err := e.store.SourceAccounts().Get(ctx, accountKey)
	if err == nx.ErrNotFound {
		return true, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("rules: load account %s: %w", accountKey, err)
	}

	if err := e.ensureAccountSynced(account); err != nil {
		return false, "", err
	}

	allowed, err := e.enforcer.Enforce(accountKey, string(candidate.MediaKind), "ingest")
	if err != nil {
		return false, "", fmt.Errorf("rules: enforce ingest for %s: %w", accountKey, err)
	}
	if !allowed {
		return false, fmt.Sprintf("account %s blocks ingest of %s content", accountKey, candidate.MediaKind), nil
	}
	return true, "", nil
}

// Allowed is the profile-scoped, read/play-time content gate
// (internal/nx/entities.go's ProfileRule doc comment): it checks the
// profile's kind-level rating default, its ProfileRule rating cap, and its
// explicit allow/deny/category lists, in that order. Unknown profiles are
// allowed (no policy configured for them yet).
func (e *Engine) Allowed(ctx context.Context, profileKey string, work nx.Work) (bool, string, error) {
	profile, err := e.store.Profiles().Get(ctx, profileKey)
	if err == nx.ErrNotFound {
		return true, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("rules: load profile %s: %w", profileKey, err)
	}

	if err := e.ensureProfileSynced(ctx, profile); err != nil {
		return false, "", err
	}

	ratingObj := ratingObject(work)
	allowed, err := e.enforcer.Enforce(profileKey, ratingObj, "play")
	if err != nil {
		return false, "", fmt.Errorf("rules: enforce play for %s: %w", profileKey, err)
	}
	if !allowed {
		return false, fmt.Sprintf("profile %s (%s) blocks rating %s", profileKey, profile.Kind, ratingObj), nil
	}

	if blocked, reason := categoryBlocked(ctx, e.store, profileKey, work); blocked {
		return false, reason, nil
	}

	return true, "", nil
}

// ensureAccountSynced maps accountKey to the shared "account" role once
// and adds one explicit deny policy per "block:<kind>" capability. Callers
// must not rely on sub-millisecond latency here: the sync happens at most
// once per account's lifetime in this Engine's memory.
func (e *Engine) ensureAccountSynced(account nx.SourceAccount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.syncedAccounts[account.AccountKey] {
		return nil
	}

	if _, err := e.enforcer.AddGroupingPolicy(account.AccountKey, "account"); err != nil {
		return fmt.Errorf("rules: sync account role for %s: %w", account.AccountKey, err)
	}
	for _, capability := range account.Capabilities {
		kind, ok := strings.CutPrefix(capability, capabilityBlockPrefix)
		if !ok {
			continue
		}
		if _, err := e.enforcer.AddPolicy(account.AccountKey, kind, "ingest", "deny"); err != nil {
			return fmt.Errorf("rules: sync block capability %q for %s: %w", capability, account.AccountKey, err)
		}
	}

	e.syncedAccounts[account.AccountKey] = true
	return nil
}

// ensureProfileSynced maps profileKey to its Profile.Kind role once, then
// layers in every ProfileRule recorded for it as explicit policies.
func (e *Engine) ensureProfileSynced(ctx context.Context, profile nx.Profile) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.syncedProfiles[profile.ProfileKey] {
		return nil
	}

	if _, err := e.enforcer.AddGroupingPolicy(profile.ProfileKey, string(profile.Kind)); err != nil {
		return fmt.Errorf("rules: sync profile role for %s: %w", profile.ProfileKey, err)
	}

	for _, ruleKind := range []string{"content"} {
		rule, err := e.store.ProfileRules().Get(ctx, profile.ProfileKey+"|"+ruleKind)
		if err == nx.ErrNotFound {
			continue
		}
		if err != nil {
			return fmt.Errorf("rules: load profile rule for %s: %w", profile.ProfileKey, err)
		}
		if err := e.applyProfileRule(profile.ProfileKey, rule); err != nil {
			return err
		}
	}

	e.syncedProfiles[profile.ProfileKey] = true
	return nil
}

func (e *Engine) applyProfileRule(profileKey string, rule nx.ProfileRule) error {
	if rule.RatingCap != "" {
		capIdx := ratingTierIndex(rule.RatingCap)
		for i, tier := range ratingTiers {
			if i < capIdx {
				continue
			}
			if _, err := e.enforcer.AddPolicy(profileKey, tier, "play", "deny"); err != nil {
				return fmt.Errorf("rules: apply rating cap for %s: %w", profileKey, err)
			}
		}
	}
	for _, obj := range rule.AllowList {
		if _, err := e.enforcer.AddPolicy(profileKey, obj, "play", "allow"); err != nil {
			return fmt.Errorf("rules: apply allow list for %s: %w", profileKey, err)
		}
	}
	for _, obj := range rule.DenyList {
		if _, err := e.enforcer.AddPolicy(profileKey, obj, "play", "deny"); err != nil {
			return fmt.Errorf("rules: apply deny list for %s: %w", profileKey, err)
		}
	}
	return nil
}

func ratingTierIndex(cap string) int {
	cap = strings.ToLower(cap)
	for i, tier := range ratingTiers {
		if tier == cap {
			return i
		}
	}
	return len(ratingTiers)
}

// ratingObject maps a Work to one of ratingTiers. Work carries only a
// numeric Rating (no MPAA-style string), so the mapping is a deliberately
// coarse maturity heuristic: IsAdult always wins, otherwise higher numeric
// ratings are treated as skewing toward more mature content.
func ratingObject(work nx.Work) string {
	switch {
	case work.IsAdult:
		return "adult"
	case work.Rating >= 8:
		return "r"
	case work.Rating >= 6:
		return "pg-13"
	case work.Rating >= 3:
		return "pg"
	default:
		return "g"
	}
}

// categoryBlocked checks work's WorkCategoryRefs against profileKey's
// category-filter ProfileRule, if any. A non-empty CategoryFilters list is
// an allow-list: a work with no ref into any listed category is blocked.
// CategoryFilters entries are Category.CategoryKey() values, so membership
// is a direct WorkCategoryRef key lookup rather than a full-store scan.
func categoryBlocked(ctx context.Context, store nx.EntityStore, profileKey string, work nx.Work) (bool, string) {
	rule, err := store.ProfileRules().Get(ctx, profileKey+"|content")
	if err != nil || len(rule.CategoryFilters) == 0 {
		return false, ""
	}

	for _, categoryKey := range rule.CategoryFilters {
		ref := nx.WorkCategoryRef{WorkKey: work.WorkKey, CategoryKey: categoryKey}
		if _, err := store.WorkCategoryRefs().Get(ctx, ref.EntityKey()); err == nil {
			return false, ""
		}
	}
	return true, fmt.Sprintf("profile %s category filter excludes %s", profileKey, work.WorkKey)
}
