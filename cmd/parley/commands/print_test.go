package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain"
)

func TestPrinterSavesFilesInsideDir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	p := printer{out: &out, dir: dir}

	p.handle(domain.Inbound{Kind: domain.KindFile, File: &domain.DecryptedFile{
		FileID:   "f1",
		From:     "alice",
		FileName: "../../etc/passwd",
		Data:     []byte("x"),
	}})
	b, err := os.ReadFile(filepath.Join(dir, "passwd"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))

	// A second file with the same name is not overwritten.
	p.handle(domain.Inbound{Kind: domain.KindFile, File: &domain.DecryptedFile{
		FileID:   "f2",
		From:     "alice",
		FileName: "passwd",
		Data:     []byte("y"),
	}})
	b, err = os.ReadFile(filepath.Join(dir, "f2-passwd"))
	require.NoError(t, err)
	assert.Equal(t, "y", string(b))
}

func TestPrinterReportsOutcomes(t *testing.T) {
	var out bytes.Buffer
	p := printer{out: &out, dir: t.TempDir()}

	p.handle(domain.Inbound{Kind: domain.KindMessage, From: "bob", Message: &domain.DecryptedMessage{
		From: "bob", Plaintext: []byte("hello"),
	}})
	p.handle(domain.Inbound{Kind: domain.KindMessage, From: "bob", Skipped: true, Reason: domain.ErrNonceReplayed})
	p.handle(domain.Inbound{Kind: domain.KindInit, From: "mallory", Err: errors.New("bad")})
	p.handle(domain.Inbound{Kind: domain.KindAck, From: "bob"})

	s := out.String()
	assert.Contains(t, s, "bob] hello")
	assert.Contains(t, s, "skipped")
	assert.Contains(t, s, "key_exchange_init from mallory rejected")
	assert.Contains(t, s, "secure session with bob established")
}
