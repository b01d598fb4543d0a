package valkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	c := Wrap(nil, "azflow")

	assert.Equal(t, "azflow:chat:t1:5511@s.whatsapp.net", c.Key("chat", "t1", "5511@s.whatsapp.net"))
	assert.Equal(t, "azflow", c.Key())

	bare := Wrap(nil, "")
	assert.Equal(t, "chat:t1", bare.Key("chat", "t1"))
}
