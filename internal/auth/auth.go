// Package auth decides which hook API actions a bearer token may perform.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Action is one operation of the hook API.
type Action string

const (
	// ActionPlan computes a dry-run plan (GET /v1/jobs/{job}/plan).
	ActionPlan Action = "plan"
	// ActionCleanup runs a phase explicitly (POST /v1/jobs/{job}/cleanup/{phase}).
	ActionCleanup Action = "cleanup"
	// ActionHook delivers a build lifecycle event (POST /v1/hooks/{event}).
	ActionHook Action = "hook"
	// ActionListRuns reads the run log (GET /v1/runs).
	ActionListRuns Action = "runs"
)

// AllScope grants every action. The admin api_key carries it.
const AllScope = "*"

// scopeActions is the scope vocabulary accepted in api.auth.tokens.
var scopeActions = map[string][]Action{
	AllScope:     {ActionPlan, ActionCleanup, ActionHook, ActionListRuns},
	"cleanup:ro": {ActionPlan},
	"cleanup:rw": {ActionPlan, ActionCleanup, ActionHook},
	"hooks":      {ActionHook},
	"runs:ro":    {ActionListRuns},
}

var (
	// ErrNoCredentials is returned when the request carries no usable bearer token.
	ErrNoCredentials = errors.New("missing bearer token")
	// ErrInvalidToken is returned when the token matches no configured key.
	ErrInvalidToken = errors.New("invalid API key")
)

// Scopes lists the accepted scope names, sorted.
func Scopes() []string {
	out := make([]string, 0, len(scopeActions))
	for s := range scopeActions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// KnownScope reports whether s is an accepted scope name.
func KnownScope(s string) bool {
	_, ok := scopeActions[strings.TrimSpace(s)]
	return ok
}

// Grant is the set of actions a token may perform.
type Grant map[Action]struct{}

// GrantFor expands scope names into actions. Blank entries are ignored and an
// unknown scope is an error.
func GrantFor(scopes []string) (Grant, error) {
	g := Grant{}
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		actions, ok := scopeActions[s]
		if !ok {
			return nil, fmt.Errorf("unknown scope %q (expected one of %s)", s, strings.Join(Scopes(), ", "))
		}
		for _, a := range actions {
			g[a] = struct{}{}
		}
	}
	return g, nil
}

// Allows reports whether the grant covers a.
func (g Grant) Allows(a Action) bool {
	_, ok := g[a]
	return ok
}

// TokenConfig is a bearer token with a set of scopes.
type TokenConfig struct {
	Token  string
	Scopes []string
}

type key struct {
	secret []byte
	grant  Grant
}

// Keyring holds the configured bearer tokens.
type Keyring struct {
	keys []key
}

// NewKeyring builds a keyring from the admin key (may be empty) and scoped
// tokens.
func NewKeyring(adminKey string, tokens []TokenConfig) (*Keyring, error) {
	k := &Keyring{}
	if adminKey != "" {
		all, _ := GrantFor([]string{AllScope})
		k.keys = append(k.keys, key{secret: []byte(adminKey), grant: all})
	}
	for i, t := range tokens {
		if t.Token == "" {
			return nil, fmt.Errorf("token %d: empty token", i)
		}
		g, err := GrantFor(t.Scopes)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		k.keys = append(k.keys, key{secret: []byte(t.Token), grant: g})
	}
	return k, nil
}

// Authenticate returns the grant of the request's bearer token.
func (k *Keyring) Authenticate(r *http.Request) (Grant, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	presented := []byte(token)
	for _, key := range k.keys {
		if subtle.ConstantTimeCompare(presented, key.secret) == 1 {
			return key.grant, nil
		}
	}
	return nil, ErrInvalidToken
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNoCredentials
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}

type grantKey struct{}

// WithGrant stores g on the request context.
func WithGrant(ctx context.Context, g Grant) context.Context {
	return context.WithValue(ctx, grantKey{}, g)
}

// GrantFromContext returns the grant stored by WithGrant.
func GrantFromContext(ctx context.Context) (Grant, bool) {
	g, ok := ctx.Value(grantKey{}).(Grant)
	return g, ok
}
