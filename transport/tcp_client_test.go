package transport

import (
	"net"
	"sync"
	"testing"
	"time"
)

func TestDialingClientConnectsAndInvokesOnConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	e := NewEngine()
	defer e.Close()

	var mu sync.Mutex
	var gotConn Connection
	connected := make(chan struct{}, 1)

	dc := NewDialingClient(e, ClientConfig{Addr: ln.Addr().String(), Width: LengthWidth2, MaxPayload: DefaultMaxPayload}, func(c Connection) {
		mu.Lock()
		gotConn = c
		mu.Unlock()
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	defer dc.Stop()
	go dc.Run()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted a connection")
	}

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("onConnect never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotConn == nil {
		t.Fatal("onConnect fired with nil Connection")
	}
}

func TestDialingClientBackoffBoundsMatchSpec(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	dc := NewDialingClient(e, ClientConfig{Addr: "127.0.0.1:1"}, func(Connection) {})
	defer dc.Stop()

	b := dc.backoff()
	// Sampling the first several intervals should never exceed the max.
	for i := 0; i < 5; i++ {
		d := b.NextBackOff()
		if d > ReconnectMaxBackoff {
			t.Fatalf("backoff interval %v exceeds max %v", d, ReconnectMaxBackoff)
		}
	}
}
