package pop3

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/yam-go/popclient/internal/collab"
	"github.com/yam-go/popclient/internal/config"
	"github.com/yam-go/popclient/internal/dedup"
)

// AccountResult pairs one account's outcome with its name, so a caller
// iterating several accounts can report per-account success or failure
// without losing track of which account produced which stats (§5
// "multi-account iteration loop").
type AccountResult struct {
	Account string
	Stats   SessionStats
	Err     error
}

// RunAccounts drives every active account in accounts through a full
// session in turn, aggregating stats and collecting per-account errors.
// One account's failure does not stop the remaining accounts from
// running (§9 supplement: "a single account's connection failure must
// not abort the run of the others").
//
// newSession is injected so callers can build each account's Session with
// whatever collaborators, TLS config, and timeouts are appropriate —
// RunAccounts itself has no opinion about wiring.
func RunAccounts(
	ctx context.Context,
	accounts []config.AccountConfig,
	newSession func(account config.AccountConfig) (*Session, error),
) ([]AccountResult, SessionStats) {
	var results []AccountResult
	var total SessionStats

	for _, account := range accounts {
		if !account.Active {
			continue
		}
		if ctx.Err() != nil {
			results = append(results, AccountResult{Account: account.Name, Err: ctx.Err()})
			continue
		}

		session, err := newSession(account)
		if err != nil {
			results = append(results, AccountResult{Account: account.Name, Err: fmt.Errorf("constructing session: %w", err)})
			continue
		}

		stats, err := session.Run(ctx)
		results = append(results, AccountResult{Account: account.Name, Stats: stats, Err: err})
		total.Add(stats)
	}

	return results, total
}

// SessionBuilder captures everything shared across every account's Session
// in one run — the dedup store, the TLS baseline, and the collaborators —
// so a caller can produce a newSession closure for RunAccounts with one
// call instead of repeating this wiring per account.
type SessionBuilder struct {
	Global        config.GlobalConfig
	DupSet        *dedup.Set
	UserInitiated bool
	Collaborators Collaborators
}

// NewSessionFor builds a Session for account using the builder's shared
// settings, deriving the account's TLS config from the global TLS policy.
func (b SessionBuilder) NewSessionFor(account config.AccountConfig) (*Session, error) {
	tlsConfig := &tls.Config{
		MinVersion:         b.Global.TLS.MinTLSVersion(),
		InsecureSkipVerify: b.Global.TLS.InsecureSkipVerify,
		ServerName:         account.Hostname,
	}

	warnSizeBytes := b.Global.WarnSizeKB * 1024

	session := NewSession(
		account,
		tlsConfig,
		b.Global.Timeouts.CommandTimeout(),
		warnSizeBytes,
		b.Global.UIDLMaxAge,
		b.DupSet,
		b.UserInitiated,
		b.Collaborators,
	)
	return session, nil
}

// NoopLogger discards every log message, used when no logging collaborator
// is configured.
type NoopLogger struct{}

// Logf implements collab.Logger by doing nothing.
func (NoopLogger) Logf(level string, format string, args ...any) {}

var _ collab.Logger = NoopLogger{}
