package pop3

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yam-go/popclient/internal/collab"
	"github.com/yam-go/popclient/internal/config"
	"github.com/yam-go/popclient/internal/dedup"
	"github.com/yam-go/popclient/internal/transport"
)

// Collaborators bundles the narrow external collaborators a Session needs
// (§6). Every field is optional; a nil collaborator simply means that
// phase of the session does nothing (no remote filter pass, no header
// caching, no preselection prompt, and so on). The one exception is
// Prompter: an account with an empty password and no Prompter fails
// authentication with ErrNoPassword.
type Collaborators struct {
	Examiner    collab.MailExaminer
	Ingest      collab.FolderIngest
	Filterer    collab.RemoteFilterer
	Prompter    collab.Prompter
	Progress    collab.ProgressReporter
	Preselector collab.Preselector
	Logger      collab.Logger
	Metrics     collab.Metrics
}

// Session drives one account through the full login-through-quit protocol
// (§4.D). A Session is single-use: construct a fresh one per account per
// run via NewSession.
type Session struct {
	account config.AccountConfig

	tlsConfig     *tls.Config
	ioTimeout     time.Duration
	warnSizeBytes int64
	uidlMaxAge    int
	userInitiated bool

	dedup *dedup.Set

	examiner    collab.MailExaminer
	ingest      collab.FolderIngest
	filterer    collab.RemoteFilterer
	prompter    collab.Prompter
	progress    collab.ProgressReporter
	preselector collab.Preselector
	logger      collab.Logger
	metrics     collab.Metrics

	transport *transport.Transport
	engine    *Engine

	entries TransferList
	stats   SessionStats

	banner        string
	apopChallenge string
	finished      bool
}

// NewSession constructs a Session for one account. userInitiated controls
// whether PRESELECT is honored; an unattended run still computes PRESELECT
// flags per the policy table but never suspends for a user decision.
func NewSession(
	account config.AccountConfig,
	tlsConfig *tls.Config,
	ioTimeout time.Duration,
	warnSizeBytes int64,
	uidlMaxAge int,
	dupSet *dedup.Set,
	userInitiated bool,
	collaborators Collaborators,
) *Session {
	return &Session{
		account:       account,
		tlsConfig:     tlsConfig,
		ioTimeout:     ioTimeout,
		warnSizeBytes: warnSizeBytes,
		uidlMaxAge:    uidlMaxAge,
		userInitiated: userInitiated,
		dedup:         dupSet,
		examiner:      collaborators.Examiner,
		ingest:        collaborators.Ingest,
		filterer:      collaborators.Filterer,
		prompter:      collaborators.Prompter,
		progress:      collaborators.Progress,
		preselector:   collaborators.Preselector,
		logger:        collaborators.Logger,
		metrics:       collaborators.Metrics,
	}
}

// recordMetric calls fn against the session's metrics collaborator if one
// was configured, otherwise it is a no-op.
func (s *Session) recordMetric(fn func(collab.Metrics)) {
	if s.metrics == nil {
		return
	}
	fn(s.metrics)
}

// Stats returns a snapshot of the session's counters (§5: "the UI reads
// snapshots via explicit accessor messages, never by direct mutation").
func (s *Session) Stats() SessionStats { return s.stats }

// Entries returns the transfer list discovered at LIST time, in server
// enumeration order.
func (s *Session) Entries() []*TransferEntry { return s.entries.All() }

// Abort requests cooperative cancellation of any in-flight or future I/O.
func (s *Session) Abort() {
	if s.transport != nil {
		s.transport.Abort()
	}
}

// KeepAlive sends STAT (not NOOP, which some servers ignore for
// idle-timeout purposes) to hold the connection open during a long
// preselection pause (§5 Keep-alive, §9 supplement #2). It shares the
// session's single-command-at-a-time serialisation discipline: callers
// must not invoke KeepAlive concurrently with any other session method.
func (s *Session) KeepAlive(ctx context.Context) error {
	_, err := s.engine.Send(CmdStat, "")
	return err
}

// Run drives the full session state machine: Connecting through Quitting,
// or Error/Aborted to Closed on failure (§4.D). It returns the session's
// final stats regardless of outcome.
func (s *Session) Run(ctx context.Context) (SessionStats, error) {
	s.stats.StartTime = time.Now()
	defer s.cleanup()

	s.recordMetric(func(m collab.Metrics) { m.SessionStarted(s.account.Name) })
	stats, err := s.run(ctx)
	s.recordMetric(func(m collab.Metrics) { m.SessionFinished(s.account.Name, err == nil) })
	if err != nil {
		kind := "ProtocolError"
		var terr *transport.Error
		switch {
		case errors.Is(err, ErrAborted):
			kind = "UserAbort"
		case errors.As(err, &terr):
			kind = "ConnError"
			if terr.Kind == transport.ErrAborted {
				kind = "UserAbort"
			}
		}
		s.recordMetric(func(m collab.Metrics) { m.ErrorObserved(s.account.Name, kind) })
	}
	return stats, err
}

// run is Run's body, split out so metrics recording can wrap every exit
// path without repeating itself at each early return.
func (s *Session) run(ctx context.Context) (SessionStats, error) {
	if err := s.connect(ctx); err != nil {
		s.stats.Error = true
		return s.stats, err
	}

	if err := s.readBanner(); err != nil {
		s.stats.Error = true
		return s.stats, err
	}

	if s.account.Transport == config.TransportSTLS {
		if err := s.upgradeSTLS(); err != nil {
			s.stats.Error = true
			return s.stats, err
		}
	}

	if err := s.authenticate(); err != nil {
		s.stats.Error = true
		return s.stats, err
	}

	count, err := s.stat()
	if err != nil {
		s.stats.Error = true
		return s.stats, err
	}
	s.stats.OnServer = count
	if count == 0 {
		s.finished = true
		return s.stats, s.finalize()
	}

	if err := s.listMessages(); err != nil {
		s.stats.Error = true
		return s.stats, err
	}

	for _, entry := range s.entries.All() {
		if err := s.applyRemoteFilter(entry); err != nil {
			s.logf("warn", "remote filter entry %d: %v", entry.Index, err)
		}
	}

	if err := s.uidlPhase(); err != nil {
		s.logf("warn", "uidl phase: %v", err)
	}

	if err := s.preselectPhase(); err != nil {
		s.stats.Error = true
		return s.stats, err
	}

	if err := s.retrievePhase(); err != nil {
		s.stats.Error = true
		return s.stats, err
	}

	s.deletePhase()

	s.finished = true
	return s.stats, s.finalize()
}

func (s *Session) connect(ctx context.Context) error {
	var t *transport.Transport
	var err error
	if s.account.Transport == config.TransportImplicitTLS {
		t, err = transport.DialTLS(ctx, s.account.Hostname, s.account.Port, s.tlsConfig, s.ioTimeout)
		if err == nil {
			s.logf("info", "tls established for %s", s.account.Hostname)
			s.recordMetric(func(m collab.Metrics) { m.TLSConnectionEstablished(s.account.Name) })
		}
	} else {
		t, err = transport.Dial(ctx, s.account.Hostname, s.account.Port, s.ioTimeout)
	}
	if err != nil {
		return err
	}
	s.transport = t
	s.engine = NewEngine(t)
	return nil
}

func (s *Session) readBanner() error {
	banner, err := s.engine.Send(CmdConnect, "")
	if err != nil {
		return err
	}
	s.banner = banner
	s.apopChallenge = apopChallenge(banner)
	return nil
}

func (s *Session) upgradeSTLS() error {
	if _, err := s.engine.Send(CmdStls, ""); err != nil {
		return err
	}
	if err := s.transport.UpgradeTLS(s.tlsConfig); err != nil {
		return err
	}
	s.logf("info", "tls established for %s via STLS", s.account.Hostname)
	s.recordMetric(func(m collab.Metrics) { m.TLSConnectionEstablished(s.account.Name) })
	return s.readBanner()
}

func (s *Session) authenticate() error {
	err := s.doAuthenticate()
	s.recordMetric(func(m collab.Metrics) { m.AuthAttempt(s.account.Name, err == nil) })
	return err
}

func (s *Session) doAuthenticate() error {
	password := s.account.Password
	if password == "" {
		if s.prompter == nil {
			return ErrNoPassword
		}
		answer, ok := s.prompter.StringRequest(fmt.Sprintf("Password for %s@%s", s.account.Username, s.account.Hostname))
		if !ok {
			return ErrAborted
		}
		password = answer
	}

	if s.account.Auth == config.AuthAPOP {
		if s.apopChallenge == "" {
			return ErrNoAPOPChallenge
		}
		digest := apopDigest(s.apopChallenge, password)
		_, err := s.engine.Send(CmdApop, s.account.Username+" "+digest)
		return err
	}

	if _, err := s.engine.Send(CmdUser, s.account.Username); err != nil {
		return err
	}
	_, err := s.engine.Send(CmdPass, password)
	return err
}

func (s *Session) stat() (int, error) {
	resp, err := s.engine.Send(CmdStat, "")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(resp)
	if len(fields) == 0 {
		return 0, ErrMalformedListLine
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("parsing STAT response %q: %w", resp, err)
	}
	return count, nil
}

func (s *Session) listMessages() error {
	if _, err := s.engine.Send(CmdList, ""); err != nil {
		return err
	}

	var buf bytes.Buffer
	dec := &decoder{}
	if _, err := dec.Decode(s.transport, &buf); err != nil {
		return err
	}

	preselection := preselectionFromConfig(s.account.Preselection)

	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return ErrMalformedListLine
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("parsing LIST line %q: %w", line, err)
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parsing LIST line %q: %w", line, err)
		}

		flags := FlagPolicy(s.account.DownloadLarge, s.account.Purge, s.userInitiated, size, s.warnSizeBytes, preselection)
		s.entries.Add(&TransferEntry{Index: idx, Size: size, Flags: flags, Position: -1})
	}
	return scanner.Err()
}

func preselectionFromConfig(mode config.PreselectionMode) PreselectionMode {
	switch mode {
	case config.PreselectionLarge:
		return PreselectionLarge
	case config.PreselectionAlways:
		return PreselectionAlways
	default:
		return PreselectionNever
	}
}

// fetchEntryHeader issues TOP n 0 for entry, decodes the header-only
// payload to a temp file, and hands it to the MIME-parsing collaborator,
// caching the result on entry.Header. It is the shared plumbing behind
// applyRemoteFilter and obtainUIDL's synthetic-UIDL fallback — both need
// a message's headers before LIST's RETR phase has downloaded anything.
func (s *Session) fetchEntryHeader(entry *TransferEntry) (collab.MailHeader, error) {
	if entry.Header.MessageID != "" || entry.Header.Subject != "" || entry.Header.From != "" {
		return collab.MailHeader{
			From:      entry.Header.From,
			To:        entry.Header.To,
			ReplyTo:   entry.Header.ReplyTo,
			Subject:   entry.Header.Subject,
			Date:      entry.Header.Date,
			MessageID: entry.Header.MessageID,
		}, nil
	}
	if s.examiner == nil {
		return collab.MailHeader{}, nil
	}

	tmp, err := os.CreateTemp("", "popclient-hdr-*.eml")
	if err != nil {
		return collab.MailHeader{}, err
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := s.engine.Send(CmdTop, fmt.Sprintf("%d 0", entry.Index)); err != nil {
		tmp.Close()
		return collab.MailHeader{}, err
	}
	dec := &decoder{}
	if _, err := dec.Decode(s.transport, tmp); err != nil {
		tmp.Close()
		return collab.MailHeader{}, err
	}
	if err := tmp.Close(); err != nil {
		return collab.MailHeader{}, err
	}

	header, err := s.examiner.ExamineMail(path)
	if err != nil {
		return collab.MailHeader{}, err
	}

	entry.Header = Header{
		From:      header.From,
		To:        header.To,
		ReplyTo:   header.ReplyTo,
		Subject:   header.Subject,
		Date:      header.Date,
		MessageID: header.MessageID,
	}
	return header, nil
}

// applyRemoteFilter runs the user's configured server-side filter rules
// against entry immediately after LIST, before the UIDL phase (§9
// supplement #3, resolving Open Question (a) as a distinct operation from
// obtainUIDL). A rejected entry is routed away from download and toward
// server-side cleanup rather than silently dropped.
func (s *Session) applyRemoteFilter(entry *TransferEntry) error {
	if s.filterer == nil {
		return nil
	}
	header, err := s.fetchEntryHeader(entry)
	if err != nil {
		return err
	}
	if !s.filterer.ApplyRemoteFilters(entry.Index, header) {
		entry.Flags &^= FlagLoad
		entry.Flags |= FlagDelete
	}
	return nil
}

// obtainUIDL computes entry's synthesised UIDL (Message-Id@hostname) when
// the server's own UIDL command is unavailable (§9 supplement #3, the
// second of the two operations resolving Open Question (a)).
func (s *Session) obtainUIDL(entry *TransferEntry) (string, error) {
	header, err := s.fetchEntryHeader(entry)
	if err != nil {
		return "", err
	}
	msgID := header.MessageID
	if msgID == "" {
		msgID = fmt.Sprintf("<generated-%d@%s>", entry.Index, s.account.Hostname)
	}
	return msgID + "@" + s.account.Hostname, nil
}

func (s *Session) uidlPhase() error {
	if !s.account.AvoidDupes {
		return nil
	}

	resp, err := s.engine.Send(CmdUidl, "")
	if err != nil {
		if _, ok := err.(*CommandError); ok {
			return s.uidlFallback()
		}
		return err
	}
	_ = resp

	var buf bytes.Buffer
	dec := &decoder{}
	if _, err := dec.Decode(s.transport, &buf); err != nil {
		return err
	}

	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return ErrMalformedListLine
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("parsing UIDL line %q: %w", line, err)
		}
		entry := s.entries.ByIndex(idx)
		if entry == nil {
			continue
		}
		entry.UIDL = fields[1] + "@" + s.account.Hostname
		s.checkDuplicate(entry)
	}
	return scanner.Err()
}

func (s *Session) uidlFallback() error {
	for _, entry := range s.entries.All() {
		uidl, err := s.obtainUIDL(entry)
		if err != nil {
			return err
		}
		entry.UIDL = uidl
		s.checkDuplicate(entry)
	}
	return nil
}

func (s *Session) checkDuplicate(entry *TransferEntry) {
	if s.dedup == nil || entry.UIDL == "" {
		return
	}
	if s.dedup.Contains(entry.UIDL) {
		entry.Flags &^= FlagLoad
		s.stats.DupSkipped++
		s.recordMetric(func(m collab.Metrics) { m.DuplicateSkipped(s.account.Name) })
	}
	s.dedup.Mark(entry.UIDL)
}

func (s *Session) preselectPhase() error {
	if !s.userInitiated || s.preselector == nil {
		return nil
	}

	var pending []collab.PreselectEntry
	for _, entry := range s.entries.All() {
		if !entry.Flags.Has(FlagPreselect) {
			continue
		}
		entry.Position = len(pending)
		pending = append(pending, collab.PreselectEntry{
			Index:   entry.Index,
			Size:    entry.Size,
			Flags:   collab.Flags(entry.Flags),
			UIDL:    entry.UIDL,
			Subject: entry.Header.Subject,
			From:    entry.Header.From,
		})
	}
	if len(pending) == 0 {
		return nil
	}

	decisions, ok := s.preselector.Preselect(pending)
	if !ok {
		return ErrAborted
	}
	for _, entry := range s.entries.All() {
		if flags, ok := decisions[entry.Index]; ok {
			entry.Flags = TransferFlag(flags)
		}
	}
	return nil
}

func (s *Session) retrievePhase() error {
	folder := s.account.Name
	total := 0
	for _, entry := range s.entries.All() {
		if entry.Flags.Has(FlagLoad) {
			total++
		}
	}

	done := 0
	for _, entry := range s.entries.All() {
		if s.transport.Aborted() {
			return ErrAborted
		}
		if !entry.Flags.Has(FlagLoad) {
			continue
		}

		if err := s.retrieveOne(folder, entry); err != nil {
			s.logf("warn", "RETR %d: %v", entry.Index, err)
			s.stats.Error = true
			continue
		}

		done++
		s.stats.Downloaded++
		s.recordMetric(func(m collab.Metrics) { m.MessageDownloaded(s.account.Name, entry.Size) })
		if s.progress != nil {
			s.progress.Progress(done, total, entry.Size, fmt.Sprintf("message %d", entry.Index))
		}
	}
	return nil
}

func (s *Session) retrieveOne(folder string, entry *TransferEntry) error {
	var path string
	var err error
	if s.ingest != nil {
		path, err = s.ingest.NewMailFile(folder)
		if err != nil {
			return err
		}
	} else {
		tmp, terr := os.CreateTemp("", "popclient-msg-*.eml")
		if terr != nil {
			return terr
		}
		path = tmp.Name()
		tmp.Close()
	}

	if _, err := s.engine.Send(CmdRetr, strconv.Itoa(entry.Index)); err != nil {
		os.Remove(path)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	dec := &decoder{}
	_, err = dec.Decode(s.transport, f)
	closeErr := f.Close()
	if err != nil {
		os.Remove(path)
		return err
	}
	if closeErr != nil {
		os.Remove(path)
		return closeErr
	}

	if s.ingest != nil {
		if _, err := s.ingest.AddMailToList(folder, path); err != nil {
			return err
		}
	}

	if s.examiner != nil {
		if header, err := s.examiner.ExamineMail(path); err == nil {
			entry.Header = Header{
				From:      header.From,
				To:        header.To,
				ReplyTo:   header.ReplyTo,
				Subject:   header.Subject,
				Date:      header.Date,
				MessageID: header.MessageID,
				MailFile:  path,
			}
		}
	}
	return nil
}

func (s *Session) deletePhase() {
	for _, entry := range s.entries.All() {
		if !entry.Flags.Has(FlagDelete) {
			continue
		}
		if _, err := s.engine.Send(CmdDele, strconv.Itoa(entry.Index)); err != nil {
			s.logf("warn", "DELE %d failed: %v", entry.Index, err)
			continue
		}
		s.stats.Deleted++
		s.recordMetric(func(m collab.Metrics) { m.MessageDeleted(s.account.Name) })
	}
}

// finalize ends the UIDL set's bookkeeping for this account, attempts a
// graceful QUIT if the transport hasn't already faulted, and closes the
// connection (§4.D Quitting).
func (s *Session) finalize() error {
	if s.dedup != nil {
		if err := s.dedup.EndSession(s.uidlMaxAge); err != nil {
			s.logf("warn", "uidl set end-session: %v", err)
		}
	}

	var err error
	if s.transport.LastError() == nil {
		_, err = s.engine.Send(CmdQuit, "")
	}
	if cerr := s.transport.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// cleanup runs on every Run exit path, including ones that returned before
// reaching finalize (§4.D "on any fatal path, close without QUIT").
func (s *Session) cleanup() {
	if s.finished || s.transport == nil {
		return
	}
	s.transport.Close()
}

func (s *Session) logf(level, format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Logf(level, format, args...)
}
