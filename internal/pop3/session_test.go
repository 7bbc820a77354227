package pop3

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yam-go/popclient/internal/collab"
	"github.com/yam-go/popclient/internal/config"
	"github.com/yam-go/popclient/internal/dedup"
	"github.com/yam-go/popclient/internal/transport"
)

// scriptedServer replies to each line the client sends with the next
// canned response in order, mirroring the teacher's in-process pipe-driven
// protocol tests rather than hitting a real socket.
func scriptedServer(t *testing.T, conn net.Conn, banner string, responses []string) {
	t.Helper()
	go func() {
		defer conn.Close()
		w := bufio.NewWriter(conn)
		w.WriteString(banner)
		w.Flush()

		r := bufio.NewReader(conn)
		for _, resp := range responses {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
			w.WriteString(resp)
			if err := w.Flush(); err != nil {
				return
			}
		}
	}()
}

func newTestSession(t *testing.T, clientConn net.Conn, account config.AccountConfig, collaborators Collaborators) *Session {
	t.Helper()
	tr := transport.New(clientConn, 2*time.Second)
	return &Session{
		account:       account,
		warnSizeBytes: 1024 * 1024,
		transport:     tr,
		engine:        NewEngine(tr),
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

func testAccount() config.AccountConfig {
	return config.AccountConfig{
		Name:       "acme",
		Hostname:   "pop.example.com",
		Port:       110,
		Username:   "alice",
		Password:   "secret",
		Transport:  config.TransportPlain,
		Auth:       config.AuthUserPass,
		Active:     true,
		AvoidDupes: true,
	}
}

func TestSessionHappyPathDownloadsOneMessage(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	scriptedServer(t, serverConn, "+OK POP3 ready\r\n", []string{
		"+OK\r\n",                     // USER
		"+OK\r\n",                     // PASS
		"+OK 1 120\r\n",               // STAT
		"+OK\r\n1 120\r\n.\r\n",       // LIST
		"+OK\r\n1 abc123\r\n.\r\n",    // UIDL
		"+OK\r\nSubject: hi\r\n\r\nbody\r\n.\r\n", // RETR
		"+OK\r\n",                     // DELE
		"+OK bye\r\n",                 // QUIT
	})

	account := testAccount()
	account.Purge = true

	ingest := &fakeIngest{}
	session := newTestSession(t, clientConn, account, Collaborators{Ingest: ingest})

	if err := session.readBanner(); err != nil {
		t.Fatalf("readBanner() error = %v", err)
	}
	if err := session.authenticate(); err != nil {
		t.Fatalf("authenticate() error = %v", err)
	}
	count, err := session.stat()
	if err != nil {
		t.Fatalf("stat() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("stat() count = %d, want 1", count)
	}
	session.stats.OnServer = count

	if err := session.listMessages(); err != nil {
		t.Fatalf("listMessages() error = %v", err)
	}
	if session.entries.Len() != 1 {
		t.Fatalf("entries.Len() = %d, want 1", session.entries.Len())
	}
	entry := session.entries.ByIndex(1)
	if !entry.Flags.Has(FlagLoad) || !entry.Flags.Has(FlagDelete) {
		t.Fatalf("entry flags = %v, want LOAD|DELETE (purge=true)", entry.Flags)
	}

	if err := session.uidlPhase(); err != nil {
		t.Fatalf("uidlPhase() error = %v", err)
	}
	if entry.UIDL != "abc123@pop.example.com" {
		t.Fatalf("entry.UIDL = %q, want %q", entry.UIDL, "abc123@pop.example.com")
	}

	if err := session.retrievePhase(); err != nil {
		t.Fatalf("retrievePhase() error = %v", err)
	}
	if session.stats.Downloaded != 1 {
		t.Fatalf("stats.Downloaded = %d, want 1", session.stats.Downloaded)
	}
	if len(ingest.added) != 1 {
		t.Fatalf("ingest recorded %d messages, want 1", len(ingest.added))
	}

	session.deletePhase()
	if session.stats.Deleted != 1 {
		t.Fatalf("stats.Deleted = %d, want 1", session.stats.Deleted)
	}

	if err := session.finalize(); err != nil {
		t.Fatalf("finalize() error = %v", err)
	}
}

func TestSessionUIDLFallbackOnErrResponse(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	scriptedServer(t, serverConn, "+OK POP3 ready\r\n", []string{
		"-ERR UIDL not supported\r\n",               // UIDL
		"+OK\r\nMessage-Id: <abc@x.y>\r\n\r\n.\r\n", // TOP 1 0
	})

	account := testAccount()
	examiner := &fakeExaminer{header: collab.MailHeader{MessageID: "<abc@x.y>"}}
	session := newTestSession(t, clientConn, account, Collaborators{Examiner: examiner})
	session.entries.Add(&TransferEntry{Index: 1, Size: 10, Flags: FlagLoad, Position: -1})

	if err := session.readBanner(); err != nil {
		t.Fatalf("readBanner() error = %v", err)
	}

	if err := session.uidlPhase(); err != nil {
		t.Fatalf("uidlPhase() error = %v", err)
	}

	entry := session.entries.ByIndex(1)
	want := "<abc@x.y>@pop.example.com"
	if entry.UIDL != want {
		t.Errorf("entry.UIDL = %q, want %q", entry.UIDL, want)
	}
}

func TestSessionDuplicateSkipNilGuard(t *testing.T) {
	account := testAccount()
	session := &Session{account: account, dedup: nil}
	session.entries.Add(&TransferEntry{Index: 1, Flags: FlagLoad, Position: -1})
	entry := session.entries.ByIndex(1)
	entry.UIDL = "known@pop.example.com"

	session.checkDuplicate(entry)
	if !entry.Flags.Has(FlagLoad) {
		t.Errorf("expected flags unchanged when no dedup set is configured")
	}
}

func TestSessionDuplicateSkipClearsLoad(t *testing.T) {
	account := testAccount()
	set, err := dedup.Open(filepath.Join(t.TempDir(), "seen.db"))
	if err != nil {
		t.Fatalf("dedup.Open() error = %v", err)
	}
	defer set.Close()
	set.Mark("known@pop.example.com")

	session := &Session{account: account, dedup: set}
	session.entries.Add(&TransferEntry{Index: 1, Flags: FlagLoad, Position: -1})
	entry := session.entries.ByIndex(1)
	entry.UIDL = "known@pop.example.com"

	session.checkDuplicate(entry)
	if entry.Flags.Has(FlagLoad) {
		t.Errorf("expected FlagLoad cleared for a known duplicate UIDL")
	}
	if session.stats.DupSkipped != 1 {
		t.Errorf("stats.DupSkipped = %d, want 1", session.stats.DupSkipped)
	}
}

type fakeIngest struct {
	added []string
}

func (f *fakeIngest) NewMailFile(folder string) (string, error) {
	file, err := os.CreateTemp("", "fake-ingest-*.eml")
	if err != nil {
		return "", err
	}
	defer file.Close()
	return file.Name(), nil
}

func (f *fakeIngest) AddMailToList(folder, mailFile string) (collab.MailRef, error) {
	f.added = append(f.added, mailFile)
	return collab.MailRef{Folder: folder, File: mailFile}, nil
}

type fakeExaminer struct {
	header collab.MailHeader
}

func (f *fakeExaminer) ExamineMail(path string) (collab.MailHeader, error) {
	return f.header, nil
}

