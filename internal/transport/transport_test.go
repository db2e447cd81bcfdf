// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func listenTCP(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestOptionsAddrAndURL(t *testing.T) {
	o := Options{Host: "10.0.0.5", Port: 7654, Path: "leds"}
	if got := o.Addr(); got != "10.0.0.5:7654" {
		t.Errorf("Addr() = %q", got)
	}
	if got := o.URL(); got != "ws://10.0.0.5:7654/leds" {
		t.Errorf("URL() = %q", got)
	}
}

func TestDialUnknownKind(t *testing.T) {
	_, err := Dial(context.Background(), Options{Kind: "carrier-pigeon"})
	if !errors.Is(err, ErrConnectFailure) {
		t.Fatalf("error = %v, want ErrConnectFailure", err)
	}
}

func TestDialRefusedIsConnectFailure(t *testing.T) {
	ln, port := listenTCP(t)
	ln.Close() // Nothing listens on port any more.

	_, err := Dial(context.Background(), Options{
		Kind:        KindTCP,
		Host:        "127.0.0.1",
		Port:        port,
		DialTimeout: time.Second,
	})
	if !errors.Is(err, ErrConnectFailure) {
		t.Fatalf("error = %v, want ErrConnectFailure", err)
	}
}

func TestTCPSendReachesPeer(t *testing.T) {
	ln, port := listenTCP(t)
	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	tr, err := Dial(context.Background(), Options{
		Kind:         KindTCP,
		Host:         "127.0.0.1",
		Port:         port,
		DialTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	frames := [][]byte{{4, 0, 0, 0, 0}, {4, 2, 10, 20, 30}}
	for _, f := range frames {
		if err := tr.Send(f); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case got := <-received:
		want := bytes.Join(frames, nil)
		if !bytes.Equal(got, want) {
			t.Errorf("peer received %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received data")
	}
}

func TestTCPReconnectAfterDrop(t *testing.T) {
	ln, port := listenTCP(t)
	accepted := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	tr, err := DialTCP(context.Background(), "127.0.0.1:"+strconv.Itoa(port), time.Second, time.Second)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer tr.Close()
	first := <-accepted
	defer first.Close()

	fresh, err := tr.Reconnect(context.Background())
	if err != nil || fresh {
		t.Fatalf("Reconnect on healthy conn = (%v, %v), want (false, nil)", fresh, err)
	}

	// Simulate a failed write dropping the connection.
	tr.mu.Lock()
	tr.dropLocked()
	tr.mu.Unlock()

	if err := tr.Send([]byte{1}); err == nil {
		t.Fatal("Send on dropped connection succeeded")
	}
	fresh, err = tr.Reconnect(context.Background())
	if err != nil || !fresh {
		t.Fatalf("Reconnect after drop = (%v, %v), want (true, nil)", fresh, err)
	}
	second := <-accepted
	defer second.Close()
	if err := tr.Send([]byte{1, 0, 1, 2, 3}); err != nil {
		t.Fatalf("Send after reconnect: %v", err)
	}
}

func TestTCPCloseIdempotent(t *testing.T) {
	_, port := listenTCP(t)
	tr, err := DialTCP(context.Background(), "127.0.0.1:"+strconv.Itoa(port), time.Second, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := tr.Send([]byte{1}); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("Send after Close error = %v", err)
	}
}

func TestUDPDatagramPerFrame(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer pc.Close()
	port := pc.LocalAddr().(*net.UDPAddr).Port

	tr, err := Dial(context.Background(), Options{Kind: KindUDP, Host: "127.0.0.1", Port: port})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tr.Close()

	frame := []byte{8, 2, 10, 20, 30, 5, 0, 0, 0}
	if err := tr.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := make([]byte, 2048)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if !bytes.Equal(buf[:n], frame) {
		t.Errorf("datagram = %v, want %v", buf[:n], frame)
	}
}

func TestWebSocketBinaryMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leds" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				received <- data
			}
		}
	}))
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)
	tr, err := Dial(context.Background(), Options{
		Kind:         KindWebSocket,
		Host:         host,
		Port:         port,
		Path:         "/leds",
		DialTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tr.Close()

	frame := []byte{4, 0, 0, 0, 0, 1, 0, 0, 0}
	if err := tr.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-received:
		if !bytes.Equal(got, frame) {
			t.Errorf("message = %v, want %v", got, frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestLoggingTransportCounts(t *testing.T) {
	lt := NewLoggingTransport()
	for i := 0; i < 3; i++ {
		if err := lt.Send([]byte{1, 0, 1, 2, 3}); err != nil {
			t.Fatal(err)
		}
	}
	if lt.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", lt.Frames())
	}
	if err := lt.Close(); err != nil {
		t.Fatal(err)
	}
}
