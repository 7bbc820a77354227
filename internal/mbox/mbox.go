// Package mbox implements component F of the retrieval core: a streaming
// mboxrd exporter that rewrites a sequence of stored message files into a
// single mbox stream with envelope-From synthesis, Status/X-Status header
// rewriting, and ">From" quoting.
package mbox

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/yam-go/popclient/internal/collab"
)

// StatusFlag is a bit in a message's stored status, used to synthesise the
// Status/X-Status header lines the way common mbox readers expect them
// (§4.F).
type StatusFlag uint8

const (
	StatusSeen StatusFlag = 1 << iota
	StatusAnswered
	StatusFlagged
	StatusDeleted
	StatusDraft
)

// Has reports whether all bits in want are set.
func (f StatusFlag) Has(want StatusFlag) bool { return f&want == want }

// ctimeLayout renders a Date header the way the original exporter's
// unix ctime() call did: "Www Mmm dd hh:mm:ss yyyy", TZ-neutral.
const ctimeLayout = "Mon Jan _2 15:04:05 2006"

// Entry is one message to append to an mbox stream (§4.F's ordered list of
// message references).
type Entry struct {
	Folder      string
	MailFile    string
	Date        time.Time
	FromAddress string
	Status      StatusFlag
}

// ToStatusHeader renders the Status: header value: "R" if the message has
// been seen, followed by "O", which is always written, following the
// conventional two-letter mbox Status vocabulary.
func (e Entry) ToStatusHeader() string {
	var b strings.Builder
	if e.Status.Has(StatusSeen) {
		b.WriteByte('R')
	}
	b.WriteByte('O')
	return b.String()
}

// ToXStatusHeader renders the X-Status: header value from the answered/
// flagged/deleted/draft bits, in that conventional order.
func (e Entry) ToXStatusHeader() string {
	var b strings.Builder
	if e.Status.Has(StatusAnswered) {
		b.WriteByte('A')
	}
	if e.Status.Has(StatusFlagged) {
		b.WriteByte('F')
	}
	if e.Status.Has(StatusDeleted) {
		b.WriteByte('D')
	}
	if e.Status.Has(StatusDraft) {
		b.WriteByte('T')
	}
	return b.String()
}

// ErrAborted is returned when the caller's abort flag was observed between
// messages (§4.F "a write error or an abort signal aborts the whole
// export"). An abort observed in the middle of a message is returned
// wrapped with that message's file name; errors.Is still matches it.
var ErrAborted = errors.New("mbox: export aborted")

// fallbackFrom is substituted for an empty envelope-from address so the
// synthesised "From " line stays a syntactically valid mboxrd envelope
// line instead of "From  <date>" with a double space (§9 supplement #6).
const fallbackFrom = "MAILER-DAEMON"

// Export writes entries to path as a single mboxrd stream, truncating the
// file unless append is true. progress, if non-nil, is invoked once per
// message with the running count. abort, if non-nil, is polled between
// messages and checked again mid-message inside the per-line copy loop, so
// a large in-flight message doesn't delay cancellation (§9 supplement #5).
// It returns the number of messages successfully written.
func Export(path string, entries []Entry, append bool, progress collab.ProgressReporter, abort func() bool) (int, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	exported := 0
	total := len(entries)

	for _, entry := range entries {
		if abort != nil && abort() {
			return exported, ErrAborted
		}

		if err := writeEnvelope(w, entry); err != nil {
			return exported, err
		}
		if err := copyMessage(w, entry.MailFile, abort); err != nil {
			return exported, fmt.Errorf("exporting %s: %w", entry.MailFile, err)
		}

		exported++
		if progress != nil {
			progress.Progress(exported, total, 0, entry.MailFile)
		}
	}

	if err := w.Flush(); err != nil {
		return exported, err
	}
	return exported, nil
}

func writeEnvelope(w *bufio.Writer, entry Entry) error {
	from := entry.FromAddress
	if from == "" {
		from = fallbackFrom
	}
	date := entry.Date
	if date.IsZero() {
		date = time.Now()
	}

	if _, err := fmt.Fprintf(w, "From %s %s\n", from, date.Format(ctimeLayout)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Status: %s\n", entry.ToStatusHeader()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "X-Status: %s\n", entry.ToXStatusHeader()); err != nil {
		return err
	}
	return nil
}

// copyMessage streams src line by line into w, applying the header-region
// Status/X-Status drop and the mboxrd ">From" quoting rule (§4.F point 3).
func copyMessage(w *bufio.Writer, srcPath string, abort func() bool) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	inHeader := true
	atEOF := false

	for !atEOF {
		if abort != nil && abort() {
			return ErrAborted
		}

		line, err := r.ReadString('\n')
		if len(line) == 0 {
			if err == io.EOF {
				break
			}
			return err
		}
		if err != nil && err != io.EOF {
			return err
		}
		atEOF = err == io.EOF

		bare := strings.TrimRight(line, "\r\n")

		if inHeader && bare == "" {
			inHeader = false
		}

		if inHeader && (strings.HasPrefix(bare, "Status: ") || strings.HasPrefix(bare, "X-Status: ")) {
			continue
		}

		if quotingTarget(bare) {
			bare = ">" + bare
		}

		if _, werr := w.WriteString(bare); werr != nil {
			return werr
		}
		if _, werr := w.WriteString("\n"); werr != nil {
			return werr
		}
	}
	return nil
}

// quotingTarget reports whether line needs one more leading '>' under the
// mboxrd rule: its content, after any existing run of '>', begins with
// "From " (§4.F point 3, §8 boundary scenario 6).
func quotingTarget(line string) bool {
	i := 0
	for i < len(line) && line[i] == '>' {
		i++
	}
	return strings.HasPrefix(line[i:], "From ")
}
