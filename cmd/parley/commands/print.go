package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"parley/internal/domain"
)

// printer renders processed envelopes and saves received files under dir.
type printer struct {
	out io.Writer
	dir string
}

func (p printer) handle(in domain.Inbound) {
	switch {
	case in.Err != nil:
		fmt.Fprintf(p.out, "! %s from %s rejected: %v\n", in.Kind, in.From, in.Err)
	case in.Skipped:
		fmt.Fprintf(p.out, "! %s from %s skipped: %v\n", in.Kind, in.From, in.Reason)
	case in.Message != nil:
		ts := time.UnixMilli(in.Message.Timestamp).Format(time.Kitchen)
		fmt.Fprintf(p.out, "[%s %s] %s\n", ts, in.Message.From, in.Message.Plaintext)
	case in.File != nil:
		p.saveFile(in.File)
	case in.Kind == domain.KindAck || in.Kind == domain.KindConfirm:
		fmt.Fprintf(p.out, "* secure session with %s established\n", in.From)
	}
}

func (p printer) saveFile(f *domain.DecryptedFile) {
	// Never trust the sender's path.
	name := filepath.Base(filepath.Clean("/" + f.FileName))
	if name == "/" || name == "." {
		name = f.FileID
	}
	path := filepath.Join(p.dir, name)
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(p.dir, f.FileID+"-"+name)
	}
	if err := os.WriteFile(path, f.Data, 0o600); err != nil {
		fmt.Fprintf(p.out, "! file %q from %s not saved: %v\n", f.FileName, f.From, err)
		return
	}
	fmt.Fprintf(p.out, "[%s] file %q (%s, %d bytes) saved to %s\n", f.From, f.FileName, f.FileType, len(f.Data), path)
}
