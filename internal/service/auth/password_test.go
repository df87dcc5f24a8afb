package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.NoError(t, h.Compare(hash, "correct horse battery"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)
	assert.Error(t, h.Compare("not-a-hash", "anything"))
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).cost)
	assert.Equal(t, bcrypt.MinCost, NewBcryptHasher(bcrypt.MinCost).cost)
}
