// Package gate decides whether a protected admin surface may render. The
// access check is a Strategy picked once at startup.
package gate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/session"
)

type Decision int

const (
	Pending Decision = iota
	Allowed
	Unauthenticated
	Denied
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case Denied:
		return "denied"
	}
	return "pending"
}

type Strategy interface {
	Check(ctx context.Context) (Decision, error)
}

// Handlers are the three outcomes of a guard plus the loading state.
// Loading runs before the check; exactly one of the others runs after.
type Handlers struct {
	Loading  func()
	Render   func()
	Redirect func()
	Deny     func(err error)
}

type Gate struct {
	strategy Strategy
	log      *zap.Logger
}

func New(strategy Strategy, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{strategy: strategy, log: logger.Named("gate")}
}

func (g *Gate) Guard(ctx context.Context, h Handlers) Decision {
	if h.Loading != nil {
		h.Loading()
	}
	d, err := g.strategy.Check(ctx)
	if err != nil && d == Allowed {
		d = Denied
	}
	g.dispatch(d, err, h)
	return d
}

func (g *Gate) dispatch(d Decision, err error, h Handlers) {
	switch d {
	case Allowed:
		if h.Render != nil {
			h.Render()
		}
	case Denied:
		g.log.Info("access denied", zap.Error(err))
		if h.Deny != nil {
			h.Deny(err)
		}
	default:
		if h.Redirect != nil {
			h.Redirect()
		}
	}
}

// TokenStrategy allows while a stored session token is unexpired. No network
// call is made.
type TokenStrategy struct {
	Tokens *session.TokenStore
}

func (s TokenStrategy) Check(ctx context.Context) (Decision, error) {
	c, err := s.Tokens.Current()
	if err != nil {
		return Unauthenticated, err
	}
	if c == nil {
		return Unauthenticated, nil
	}
	return Allowed, nil
}

// FlagStrategy trusts a stored boolean. There is no expiry.
type FlagStrategy struct {
	Flags *session.FlagStore
}

func (s FlagStrategy) Check(ctx context.Context) (Decision, error) {
	if s.Flags.Authenticated() {
		return Allowed, nil
	}
	return Unauthenticated, nil
}

const (
	KindToken     = "token"
	KindFlag      = "flag"
	KindWhitelist = "whitelist"
)

type Deps struct {
	Storage   session.Storage
	Identity  IdentitySource
	Whitelist WhitelistChecker
}

// FromConfig builds the strategy named by kind.
func FromConfig(kind string, deps Deps) (Strategy, error) {
	switch kind {
	case "", KindToken:
		return TokenStrategy{Tokens: session.NewTokenStore(deps.Storage)}, nil
	case KindFlag:
		return FlagStrategy{Flags: session.NewFlagStore(deps.Storage)}, nil
	case KindWhitelist:
		if deps.Identity == nil || deps.Whitelist == nil {
			return nil, fmt.Errorf("gate: whitelist strategy needs an identity source and a whitelist checker")
		}
		return &WhitelistStrategy{Identity: deps.Identity, Whitelist: deps.Whitelist}, nil
	}
	return nil, fmt.Errorf("gate: unknown strategy %q", kind)
}
