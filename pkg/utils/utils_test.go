package utils

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnv(t *testing.T) {
	t.Setenv("DROPCAMP_TEST_STR", "value")
	t.Setenv("DROPCAMP_TEST_INT", "12")
	t.Setenv("DROPCAMP_TEST_BAD", "-3")

	assert.Equal(t, "value", Env("DROPCAMP_TEST_STR", "def"))
	assert.Equal(t, "def", Env("DROPCAMP_TEST_UNSET", "def"))
	assert.Equal(t, 12, EnvInt("DROPCAMP_TEST_INT", 1))
	assert.Equal(t, 1, EnvInt("DROPCAMP_TEST_BAD", 1))
	assert.Equal(t, uint64(12), EnvUint64("DROPCAMP_TEST_INT", 7))
	assert.Equal(t, uint64(7), EnvUint64("DROPCAMP_TEST_BAD", 7))
}

func TestDedup(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Dedup([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, Dedup[string](nil))
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return errors.New("closed")
}

func TestDrainAndClose(t *testing.T) {
	assert.NoError(t, DrainAndClose(nil))

	rc := &closeRecorder{Reader: strings.NewReader("leftover body")}
	assert.EqualError(t, DrainAndClose(rc), "closed")
	assert.True(t, rc.closed)
}

func TestEnvUint8(t *testing.T) {
	t.Setenv("DROPCAMP_TEST_U8", "0")
	n, err := EnvUint8("DROPCAMP_TEST_U8", 18)
	assert.NoError(t, err)
	assert.Equal(t, uint8(0), n)

	n, err = EnvUint8("DROPCAMP_TEST_U8_UNSET", 18)
	assert.NoError(t, err)
	assert.Equal(t, uint8(18), n)

	t.Setenv("DROPCAMP_TEST_U8", "256")
	_, err = EnvUint8("DROPCAMP_TEST_U8", 18)
	assert.Error(t, err)
}
