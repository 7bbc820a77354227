package pop3

import "errors"

// Sentinel errors for conditions the orchestrator detects itself, as
// distinct from *CommandError (a -ERR from the peer) and *transport.Error
// (a connection failure). Grouped here the way the teacher groups protocol
// sentinels in one errors.go per package.
var (
	// ErrNoAPOPChallenge is returned when APOP auth is configured but the
	// banner carried no "<...>" challenge token.
	ErrNoAPOPChallenge = errors.New("pop3: server banner carried no APOP challenge")

	// ErrAborted is returned when the session's abort flag was observed
	// between protocol steps (§5, §7 UserAbort).
	ErrAborted = errors.New("pop3: session aborted")

	// ErrNoPassword is returned when an account has no password and no
	// prompt collaborator was supplied to ask the user for one.
	ErrNoPassword = errors.New("pop3: no password configured and no prompt available")

	// ErrMalformedListLine is returned when a LIST/UIDL line cannot be
	// parsed as "index token".
	ErrMalformedListLine = errors.New("pop3: malformed listing line")
)
