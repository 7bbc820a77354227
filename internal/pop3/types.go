package pop3

import "time"

// TransferFlag is a bit in a TransferEntry's flag set (§3).
type TransferFlag uint8

const (
	// FlagLoad means the message should be downloaded.
	FlagLoad TransferFlag = 1 << iota
	// FlagDelete means the message should be DELE'd server-side after
	// processing (set independently of FlagLoad: §3's invariant that a
	// message with FlagLoad cleared and FlagDelete set still gets purged).
	FlagDelete
	// FlagPreselect means the message should be surfaced to the user
	// before any download decision is finalised.
	FlagPreselect
	// FlagTransfer marks an entry as part of an mbox export run rather
	// than a POP3 retrieval (§3's "Mailbox export task").
	FlagTransfer
)

// Has reports whether all bits in want are set.
func (f TransferFlag) Has(want TransferFlag) bool { return f&want == want }

// Header holds the lazily-filled metadata a TOP-based ExamineMail call
// populates on a TransferEntry (§3).
type Header struct {
	From       string
	To         string
	ReplyTo    string
	Subject    string
	Date       time.Time
	MessageID  string
	MailFile   string
}

// TransferEntry is one message known to be on the server during a session
// (§3). Index is 1-based and matches the server's own enumeration.
type TransferEntry struct {
	Index    int
	Size     int64
	Flags    TransferFlag
	UIDL     string
	Position int // preselection position, -1 if not preselected
	Header   Header
}

// TransferList is the ordered sequence of entries discovered at LIST time.
// Lookup by index is linear, which is acceptable at the list sizes a POP3
// mailbox realistically has (hundreds, not millions).
type TransferList struct {
	entries []*TransferEntry
}

// Add appends an entry, preserving server enumeration order.
func (l *TransferList) Add(e *TransferEntry) { l.entries = append(l.entries, e) }

// All returns the entries in server enumeration order.
func (l *TransferList) All() []*TransferEntry { return l.entries }

// Len returns the number of known entries.
func (l *TransferList) Len() int { return len(l.entries) }

// ByIndex finds the entry with the given 1-based server index, or nil.
func (l *TransferList) ByIndex(index int) *TransferEntry {
	for _, e := range l.entries {
		if e.Index == index {
			return e
		}
	}
	return nil
}

// SessionStats accumulates the per-session counters of §3.
type SessionStats struct {
	OnServer   int
	Downloaded int
	Deleted    int
	DupSkipped int
	Error      bool
	StartTime  time.Time
}

// Add folds another SessionStats into this one, used by the multi-account
// run loop to aggregate across accounts (SPEC_FULL "multi-account
// iteration loop").
func (s *SessionStats) Add(other SessionStats) {
	s.OnServer += other.OnServer
	s.Downloaded += other.Downloaded
	s.Deleted += other.Deleted
	s.DupSkipped += other.DupSkipped
	s.Error = s.Error || other.Error
}
