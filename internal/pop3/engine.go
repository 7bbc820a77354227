package pop3

import (
	"fmt"
	"strings"

	"github.com/yam-go/popclient/internal/logging"
	"github.com/yam-go/popclient/internal/transport"
)

// Command identifies one of the RFC 1939 / RFC 2595 POP3 commands, plus the
// pseudo-command CONNECT used to read the server's banner (§4.C).
type Command string

const (
	CmdConnect Command = "CONNECT"
	CmdUser    Command = "USER"
	CmdPass    Command = "PASS"
	CmdQuit    Command = "QUIT"
	CmdStat    Command = "STAT"
	CmdList    Command = "LIST"
	CmdRetr    Command = "RETR"
	CmdDele    Command = "DELE"
	CmdNoop    Command = "NOOP"
	CmdRset    Command = "RSET"
	CmdApop    Command = "APOP"
	CmdTop     Command = "TOP"
	CmdUidl    Command = "UIDL"
	CmdStls    Command = "STLS"
)

// CommandError reports a -ERR response to a POP3 command (§4.C, §7
// ProtocolError). The Response field has already been through
// logging.Sanitize so it is always safe to log or display.
type CommandError struct {
	Command  Command
	Response string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("pop3: %s: %s", e.Command, e.Response)
}

// lineSender is the subset of *transport.Transport the engine needs to send
// a command line.
type lineSender interface {
	SendLine(string) error
	RecvLine() (string, error)
}

// Engine formats and sends POP3 commands and parses the +OK/-ERR status
// line. It never interprets multi-line payloads — those are pulled by the
// session orchestrator via the decoder (§4.C).
type Engine struct {
	t lineSender
}

// NewEngine wraps a transport for command/response exchange.
func NewEngine(t *transport.Transport) *Engine {
	return &Engine{t: t}
}

// Send issues cmd with an optional single argument, returning the text that
// followed "+OK " (or the empty string if the response had no payload), or
// a *CommandError if the server replied -ERR.
//
// CONNECT never writes to the wire; it only reads the line the server sent
// unprompted (the banner).
func (e *Engine) Send(cmd Command, arg string) (string, error) {
	if cmd != CmdConnect {
		line := string(cmd)
		if arg != "" {
			line += " " + arg
		}
		if err := e.t.SendLine(line); err != nil {
			return "", err
		}
	}

	resp, err := e.t.RecvLine()
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(resp, "+OK") {
		return strings.TrimSpace(strings.TrimPrefix(resp, "+OK")), nil
	}

	safe := logging.Sanitize(string(cmd), resp)
	return "", &CommandError{Command: cmd, Response: safe}
}
