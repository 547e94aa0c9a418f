package sessions_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain"
	"parley/internal/sessions"
)

func TestSetGetRemove(t *testing.T) {
	d := sessions.NewDirectory(zerolog.Nop())
	_, ok := d.Get("bob")
	assert.False(t, ok)

	d.Set(domain.Session{Peer: "bob", Key: domain.SessionKey{1}})
	s, ok := d.Get("bob")
	require.True(t, ok)
	assert.Equal(t, byte(1), s.Key[0])
	assert.Equal(t, []domain.UserID{"bob"}, d.Peers())

	assert.True(t, d.Remove("bob"))
	assert.False(t, d.Remove("bob"))
	assert.False(t, d.Has("bob"))
}

func TestNextSequence(t *testing.T) {
	d := sessions.NewDirectory(zerolog.Nop())
	_, _, err := d.Next("bob")
	assert.ErrorIs(t, err, domain.ErrNoSession)

	d.Set(domain.Session{Peer: "bob", Key: domain.SessionKey{1}})
	for want := uint64(1); want <= 3; want++ {
		_, seq, err := d.Next("bob")
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	// A new session restarts numbering and replaces the key.
	d.Set(domain.Session{Peer: "bob", Key: domain.SessionKey{2}})
	s, seq, err := d.Next("bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, byte(2), s.Key[0])
}

func TestGetReturnsCopy(t *testing.T) {
	d := sessions.NewDirectory(zerolog.Nop())
	d.Set(domain.Session{Peer: "bob", Key: domain.SessionKey{9}})
	s, _ := d.Get("bob")
	d.Clear()
	assert.Equal(t, byte(9), s.Key[0], "copies handed out are unaffected by wiping")
	assert.Empty(t, d.Peers())
}
