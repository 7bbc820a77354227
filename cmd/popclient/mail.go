package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/yam-go/popclient/internal/collab"
)

// headerExaminer implements collab.MailExaminer using go-message/mail's
// header-only reader, the way the MIME parser this core treats as an
// external collaborator would be wired in a real build.
type headerExaminer struct{}

func (headerExaminer) ExamineMail(path string) (collab.MailHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return collab.MailHeader{}, err
	}
	defer f.Close()

	r, err := mail.CreateReader(f)
	if err != nil {
		return collab.MailHeader{}, fmt.Errorf("parsing message headers: %w", err)
	}
	defer r.Close()

	header := collab.MailHeader{MailFile: path}
	if from, err := r.Header.AddressList("From"); err == nil && len(from) > 0 {
		header.From = from[0].String()
	}
	if to, err := r.Header.AddressList("To"); err == nil && len(to) > 0 {
		header.To = to[0].String()
	}
	if replyTo, err := r.Header.AddressList("Reply-To"); err == nil && len(replyTo) > 0 {
		header.ReplyTo = replyTo[0].String()
	}
	if subject, err := r.Header.Subject(); err == nil {
		header.Subject = subject
	}
	if date, err := r.Header.Date(); err == nil {
		header.Date = date
	}
	if msgID, err := r.Header.MessageID(); err == nil && msgID != "" {
		header.MessageID = "<" + msgID + ">"
	}
	return header, nil
}

var _ collab.MailExaminer = headerExaminer{}

// fileIngest implements collab.FolderIngest by writing downloaded messages
// as plain files under one directory per folder, and remembers every
// message it has added so the CLI can hand the list to the mbox exporter
// once a session finishes (§6 AddMailToList/NewMailFile).
type fileIngest struct {
	baseDir string

	mu    sync.Mutex
	seq   int
	added []collab.MailRef
}

func newFileIngest(baseDir string) *fileIngest {
	return &fileIngest{baseDir: baseDir}
}

func (f *fileIngest) NewMailFile(folder string) (string, error) {
	dir := filepath.Join(f.baseDir, folder)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.mu.Unlock()

	name := fmt.Sprintf("msg-%d-%03d.eml", time.Now().Unix(), seq)
	return filepath.Join(dir, name), nil
}

func (f *fileIngest) AddMailToList(folder, mailFile string) (collab.MailRef, error) {
	ref := collab.MailRef{Folder: folder, File: mailFile}
	f.mu.Lock()
	f.added = append(f.added, ref)
	f.mu.Unlock()
	return ref, nil
}

// Added returns every message this ingest has recorded, then clears its
// bookkeeping so a subsequent account's run starts from an empty list.
func (f *fileIngest) Added() []collab.MailRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	added := f.added
	f.added = nil
	return added
}

var _ collab.FolderIngest = (*fileIngest)(nil)
