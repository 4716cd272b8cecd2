package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSID struct {
	ssid string
	err  error
}

func (f *fakeSSID) SSID(context.Context) (string, error) {
	return f.ssid, f.err
}

func TestWifi_Check(t *testing.T) {
	ctx := context.Background()
	r := &fakeSSID{ssid: "home"}
	w := NewWifi(r)
	w.ssid = w.read(ctx)

	_, changed := w.check(ctx)
	require.False(t, changed)

	r.ssid = "office"
	c, changed := w.check(ctx)
	require.True(t, changed)
	assert.Equal(t, Context{"old_network": "home", "new_network": "office"}, c)

	r.ssid = ""
	c, changed = w.check(ctx)
	require.True(t, changed)
	assert.Equal(t, Context{"old_network": "office", "new_network": ""}, c)
}

func TestWifi_ReadErrorMeansNoNetwork(t *testing.T) {
	ctx := context.Background()
	r := &fakeSSID{ssid: "home"}
	w := NewWifi(r)
	w.ssid = w.read(ctx)

	r.err = errors.New("dbus gone")
	c, changed := w.check(ctx)
	require.True(t, changed)
	assert.Equal(t, "", c["new_network"])
}
