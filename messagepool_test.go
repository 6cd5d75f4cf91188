package wcamclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iLya2IK/wcamclient/jsonrpc"
)

func TestOutgoingPoolAddAndDrain(t *testing.T) {
	p := NewOutgoingPool()
	p.AddMsg("ping", "", nil)
	p.AddMsgRes("pong", "cam1", nil, true)
	p.AddMsgResCode("pong", "cam1", nil, 5)

	if p.LockedWaiting() != true {
		t.Fatalf("pool should report messages waiting")
	}

	batch := p.DrainForSend()
	require.Len(t, batch, 3)
	require.Equal(t, "ping", batch[0].Msg)
	require.Equal(t, jsonrpc.ResultOK, batch[1].Result)
	require.Nil(t, batch[1].Code)
	require.Equal(t, jsonrpc.ResultBad, batch[2].Result)
	require.NotNil(t, batch[2].Code)
	require.Equal(t, 5, *batch[2].Code)

	if p.LockedWaiting() {
		t.Fatalf("pool should be empty after drain")
	}
}

func TestOutgoingPoolDrainEmptyReturnsNil(t *testing.T) {
	p := NewOutgoingPool()
	if batch := p.DrainForSend(); batch != nil {
		t.Fatalf("expected nil for an empty pool, got %v", batch)
	}
}

func TestOutgoingPoolRestorePrependsBeforeNewlyAdded(t *testing.T) {
	p := NewOutgoingPool()
	p.AddMsg("first", "", nil)
	batch := p.DrainForSend()

	p.AddMsg("appended-during-send", "", nil)
	p.Restore(batch)

	got := p.DrainForSend()
	if len(got) != 2 || got[0].Msg != "first" || got[1].Msg != "appended-during-send" {
		t.Fatalf("unexpected order after restore: %+v", got)
	}
}

func TestOutgoingPoolRestoreIntoEmptyPool(t *testing.T) {
	p := NewOutgoingPool()
	p.AddMsg("x", "", nil)
	batch := p.DrainForSend()
	p.Restore(batch)

	got := p.DrainForSend()
	if len(got) != 1 || got[0].Msg != "x" {
		t.Fatalf("unexpected content after restore into empty pool: %+v", got)
	}
}

func TestIncomingPoolProceedDeliversDeviceAndMsgOnly(t *testing.T) {
	p := NewIncomingPool()
	var stamps []string
	p.SetOnStamp(func(s string) { stamps = append(stamps, s) })

	msgs := []jsonrpc.Message{
		{Device: "cam1", Msg: "frame", Params: json.RawMessage(`{"mid":1}`), Stamp: "s1"},
		{Msg: "no-device-dropped", Stamp: "s2"},
		{Device: "cam2", Msg: "", Stamp: "s3"}, // no Msg, also skipped by cb
		{Device: "cam3", Msg: "ping", Params: json.RawMessage(`{"mid":2}`)},
	}
	p.Lock()
	p.SetPoolLocked(msgs)
	p.Unlock()

	var delivered []string
	p.Proceed(func(device, kind string, params json.RawMessage, mid json.RawMessage) bool {
		delivered = append(delivered, device+":"+kind)
		return true
	}, 10)

	if len(delivered) != 2 || delivered[0] != "cam1:frame" || delivered[1] != "cam3:ping" {
		t.Fatalf("unexpected delivered set: %v", delivered)
	}
	if len(stamps) != 3 {
		t.Fatalf("expected 3 non-empty stamps observed, got %v", stamps)
	}
	if !p.LockedWaiting() {
		t.Fatalf("pool should be empty (LockedWaiting==true) after Proceed reaches the end")
	}
}

func TestIncomingPoolProceedStopsWhenCallbackReturnsFalse(t *testing.T) {
	p := NewIncomingPool()
	msgs := []jsonrpc.Message{
		{Device: "cam1", Msg: "a"},
		{Device: "cam1", Msg: "b"},
		{Device: "cam1", Msg: "c"},
	}
	p.Lock()
	p.SetPoolLocked(msgs)
	p.Unlock()

	count := 0
	p.Proceed(func(device, kind string, params, mid json.RawMessage) bool {
		count++
		return count < 2
	}, 10)

	if count != 2 {
		t.Fatalf("expected delivery to stop after the callback returns false, count=%d", count)
	}
}

func TestIncomingPoolSetPoolLockedResetsCursor(t *testing.T) {
	p := NewIncomingPool()
	p.Lock()
	p.SetPoolLocked([]jsonrpc.Message{{Device: "a", Msg: "x"}, {Device: "a", Msg: "z"}})
	p.Unlock()

	delivered := 0
	p.Proceed(func(device, kind string, params, mid json.RawMessage) bool {
		delivered++
		return false
	}, 10)
	if delivered != 1 {
		t.Fatalf("expected one delivery, got %d", delivered)
	}

	p.Lock()
	p.SetPoolLocked([]jsonrpc.Message{{Device: "b", Msg: "y"}})
	p.Unlock()

	var got string
	p.Proceed(func(device, kind string, params, mid json.RawMessage) bool {
		got = device
		return true
	}, 10)
	if got != "b" {
		t.Fatalf("expected fresh cursor to start from the new pool's first message, got %q", got)
	}
}

func TestMessageMidExtraction(t *testing.T) {
	m := jsonrpc.Message{Params: json.RawMessage(`{"mid":"abc123","other":1}`)}
	mid := m.Mid()
	require.JSONEq(t, `"abc123"`, string(mid))
}

func TestMessageMidMissingReturnsNil(t *testing.T) {
	m := jsonrpc.Message{Params: json.RawMessage(`{"other":1}`)}
	if m.Mid() != nil {
		t.Fatalf("expected nil mid, got %s", m.Mid())
	}
}
