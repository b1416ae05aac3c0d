package net

import (
	"fmt"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/block"
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/sirupsen/logrus"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.DialRetries = 0
	return opts
}

func NewTestTransport(ttype int, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport("")
		return it
	case TCP:
		tt, err := NewTCPTransport("127.0.0.1:0", "", testOptions(), common.NewTestEntry(t, logrus.InfoLevel, "net"))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

// connectPair lets trans2 reach trans1 when they are in-memory.
func connectPair(trans1, trans2 Transport) {
	if it1, ok := trans1.(*InmemTransport); ok {
		it2 := trans2.(*InmemTransport)
		it1.Connect(it2.LocalAddr(), it2)
		it2.Connect(it1.LocalAddr(), it1)
	}
}

func expectMessage(t *testing.T, ch <-chan RPC, want *message.Message) {
	t.Helper()
	select {
	case rpc := <-ch:
		if !reflect.DeepEqual(rpc.Message, want) {
			t.Fatalf("message mismatch: %#v %#v", rpc.Message, want)
		}
		rpc.Respond(nil)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout")
	}
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
		if err := trans.Send("127.0.0.1:1", message.New("x", &message.PeerDiscovery{})); err == nil {
			t.Fatalf("Send after Close should fail")
		}
	}
}

func TestTransport_Send(t *testing.T) {
	tx := block.NewAt(1, 10, block.Post{Body: "hello"}, "prev")

	payloads := []message.Payload{
		&message.Chat{Message: "hi there"},
		&message.PeerGossip{Peers: []string{"a:1", "b:2"}},
		&message.BlockchainTx{Block: tx},
	}

	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, t)
		defer trans1.Close()
		trans2 := NewTestTransport(ttype, t)
		defer trans2.Close()
		connectPair(trans1, trans2)

		for _, p := range payloads {
			m := message.New(trans2.AdvertiseAddr(), p)
			if err := trans2.Send(trans1.AdvertiseAddr(), m); err != nil {
				t.Fatalf("err: %v", err)
			}
			expectMessage(t, trans1.Consumer(), m)
		}
	}
}

func TestTransport_Order(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, t)
		defer trans1.Close()
		trans2 := NewTestTransport(ttype, t)
		defer trans2.Close()
		connectPair(trans1, trans2)

		const count = 20
		go func() {
			for i := 0; i < count; i++ {
				m := message.New(trans2.AdvertiseAddr(), &message.Chat{Message: fmt.Sprint(i)})
				if err := trans2.Send(trans1.AdvertiseAddr(), m); err != nil {
					t.Errorf("err: %v", err)
					return
				}
			}
		}()

		for i := 0; i < count; i++ {
			expectMessage(t, trans1.Consumer(), message.New(trans2.AdvertiseAddr(), &message.Chat{Message: fmt.Sprint(i)}))
		}
	}
}

func TestTransport_Unreachable(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, t)
		defer trans.Close()

		// nothing listens there and nothing is connected in memory
		if err := trans.Send("127.0.0.1:1", message.New(trans.AdvertiseAddr(), &message.PeerDiscovery{})); err == nil {
			t.Fatalf("expected an error sending to an unreachable peer")
		}
	}
}

func TestTCPTransport_BadAddr(t *testing.T) {
	_, err := NewTCPTransport("0.0.0.0:0", "", testOptions(), common.NewTestEntry(t, logrus.InfoLevel, "net"))
	if err != errNotAdvertisable {
		t.Fatalf("err: %v", err)
	}
}

func TestTCPTransport_Advertise(t *testing.T) {
	trans, err := NewTCPTransport("0.0.0.0:0", "127.0.0.1:1234", testOptions(), common.NewTestEntry(t, logrus.InfoLevel, "net"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Close()

	if trans.AdvertiseAddr() != "127.0.0.1:1234" {
		t.Fatalf("bad advertise addr: %v", trans.AdvertiseAddr())
	}
}

func TestTCPTransport_SkipsUndecodableFrames(t *testing.T) {
	trans := NewTestTransport(TCP, t)
	defer trans.Close()

	conn, err := net.Dial("tcp", trans.AdvertiseAddr())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer conn.Close()

	good := message.New("127.0.0.1:9999", &message.Chat{Message: "still here"})
	frame, err := message.Encode(good)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	raw := "not json\n" + `{"sender":"x","payload":{"type":"Unknown"}}` + "\n" + string(frame)
	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("err: %v", err)
	}

	expectMessage(t, trans.Consumer(), good)
}

func TestTCPTransport_FrameTooLarge(t *testing.T) {
	opts := testOptions()
	opts.MaxFrameSize = 128

	trans, err := NewTCPTransport("127.0.0.1:0", "", opts, common.NewTestEntry(t, logrus.InfoLevel, "net"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	go trans.Listen()
	defer trans.Close()

	conn, err := net.Dial("tcp", trans.AdvertiseAddr())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer conn.Close()

	big := message.New("a:1", &message.Chat{Message: strings.Repeat("x", 1024)})
	frame, _ := message.Encode(big)
	conn.Write(frame)

	select {
	case rpc := <-trans.Consumer():
		t.Fatalf("oversized frame should not be delivered: %v", rpc.Message)
	case <-time.After(200 * time.Millisecond):
	}

	// the connection was dropped
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected the connection to be closed")
	}
}

func TestReadFrameNoTrailingNewline(t *testing.T) {
	trans := NewTestTransport(TCP, t)
	defer trans.Close()

	conn, err := net.Dial("tcp", trans.AdvertiseAddr())
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	m := message.New("a:1", &message.BlockchainRequest{})
	frame, _ := message.Encode(m)
	conn.Write(frame[:len(frame)-1])
	conn.Close()

	expectMessage(t, trans.Consumer(), m)
}

func newTCPPair(t *testing.T) (*NetworkTransport, *NetworkTransport) {
	logger := common.NewTestEntry(t, logrus.InfoLevel, "net")

	a, err := NewTCPTransport("127.0.0.1:0", "", testOptions(), logger)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	go a.Listen()

	b, err := NewTCPTransport("127.0.0.1:0", "", testOptions(), logger)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	go b.Listen()

	return a, b
}

func pooled(n *NetworkTransport, target string) int {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()
	return len(n.connPool[target])
}

func TestTCPTransport_ReusesLiveConn(t *testing.T) {
	a, b := newTCPPair(t)
	defer a.Close()
	defer b.Close()

	target := b.AdvertiseAddr()

	for i := 0; i < 3; i++ {
		m := message.New(a.AdvertiseAddr(), &message.Chat{Message: fmt.Sprint(i)})
		if err := a.Send(target, m); err != nil {
			t.Fatalf("err: %v", err)
		}
		expectMessage(t, b.Consumer(), m)

		if p := pooled(a, target); p != 1 {
			t.Fatalf("send %d: pool should hold 1 connection, not %d", i, p)
		}
	}
}

func TestTCPTransport_SendAfterPeerClosed(t *testing.T) {
	a, b := newTCPPair(t)
	defer a.Close()

	target := b.AdvertiseAddr()

	one := message.New(a.AdvertiseAddr(), &message.Chat{Message: "one"})
	if err := a.Send(target, one); err != nil {
		t.Fatalf("err: %v", err)
	}
	expectMessage(t, b.Consumer(), one)

	if p := pooled(a, target); p != 1 {
		t.Fatalf("pool should hold 1 connection, not %d", p)
	}

	b.Close()

	two := message.New(a.AdvertiseAddr(), &message.Chat{Message: "two"})
	if err := a.Send(target, two); err == nil {
		t.Fatalf("Send to a closed peer should fail")
	}

	if p := pooled(a, target); p != 0 {
		t.Fatalf("closed connection should leave the pool, %d left", p)
	}
}
