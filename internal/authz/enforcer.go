// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package authz

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/merkato/internal/cache"
	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/logging"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

const policyReloadInterval = 30 * time.Second

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authz_decisions_total",
		Help: "Authorization decisions by object and outcome",
	},
	[]string{"object", "decision", "cached"},
)

// Enforcer answers "may role do action on object".
type Enforcer struct {
	enforcer   *casbin.SyncedEnforcer
	decisions  *cache.LRU[bool]
	autoReload bool
}

// NewEnforcer loads the embedded model and policy, or the files named in
// cfg when they exist.
func NewEnforcer(cfg config.CasbinConfig) (*Enforcer, error) {
	var (
		m   model.Model
		err error
	)
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	fromFile := cfg.PolicyPath != "" && fileExists(cfg.PolicyPath)
	var enforcer *casbin.SyncedEnforcer
	if fromFile {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(embeddedPolicy))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{enforcer: enforcer}
	if fromFile {
		enforcer.StartAutoLoadPolicy(policyReloadInterval)
		e.autoReload = true
	}
	if cfg.CacheEnabled {
		e.decisions = cache.NewLRU[bool](1024, cfg.CacheTTL)
	}

	logging.Info().
		Bool("policy_file", fromFile).
		Bool("cache", cfg.CacheEnabled).
		Msg("Authorization enforcer ready")
	return e, nil
}

// Enforce reports whether role may perform action on object.
func (e *Enforcer) Enforce(role, object, action string) (bool, error) {
	key := role + ":" + object + ":" + action
	if e.decisions != nil {
		if allowed, ok := e.decisions.Get(key); ok {
			decisionsTotal.WithLabelValues(object, decisionLabel(allowed), "true").Inc()
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(role, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	if e.decisions != nil {
		e.decisions.Set(key, allowed)
	}
	decisionsTotal.WithLabelValues(object, decisionLabel(allowed), "false").Inc()
	return allowed, nil
}

// Permissions lists the (object, action) pairs granted to role, including
// inherited ones.
func (e *Enforcer) Permissions(role string) ([][]string, error) {
	perms, err := e.enforcer.GetImplicitPermissionsForUser(role)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(perms))
	for _, p := range perms {
		if len(p) >= 3 {
			out = append(out, []string{p[1], p[2]})
		}
	}
	return out, nil
}

// Reload re-reads the policy and drops cached decisions.
func (e *Enforcer) Reload() error {
	if err := e.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("reload policy: %w", err)
	}
	if e.decisions != nil {
		e.decisions.Clear()
	}
	return nil
}

// Close stops policy auto-reload.
func (e *Enforcer) Close() {
	if e.autoReload {
		e.enforcer.StopAutoLoadPolicy()
	}
}

func decisionLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
