package control

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinytelemetry/logwatchd/internal/model"
	"github.com/tinytelemetry/logwatchd/internal/registry"
)

func listenTemp(t *testing.T) (net.Listener, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "control.sock")
	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() {
		ln.Close()
		os.Remove(path)
	})
	return ln, path
}

func readLine(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read forwarded line: %v", err)
	}
	return string(buf[:n])
}

func TestAttachInstallsWatchSink(t *testing.T) {
	ln, path := listenTemp(t)
	reg := registry.New()

	done := make(chan error, 1)
	go func() { done <- ServeAttach(ln, reg) }()

	conn, err := Attach(path)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer conn.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ServeAttach: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeAttach did not return after attach")
	}

	if !reg.Active(model.EventWatch) {
		t.Fatal("watch slot inactive after attach")
	}

	// Lines dispatched to the watch sink arrive on the client connection.
	line := "09-08 10:00:00.123  1000  1024 I am_proc_start: [0,100]\n"
	for _, e := range reg.ActiveSinks() {
		if e.Kind == model.EventWatch {
			if err := e.Sink.Write(line); err != nil {
				t.Fatalf("watch sink write: %v", err)
			}
		}
	}
	if got := readLine(t, conn); got != line {
		t.Fatalf("forwarded %q, want %q", got, line)
	}
}

func TestUnrecognizedCommandClosesConnectionAndKeepsServing(t *testing.T) {
	ln, path := listenTemp(t)
	reg := registry.New()

	done := make(chan error, 1)
	go func() { done <- ServeAttach(ln, reg) }()

	// A no-op command must not install anything; the connection closes with
	// no reply.
	if err := Noop(path); err != nil {
		t.Fatalf("Noop: %v", err)
	}

	// Garbage that is not even a full command word.
	garbage, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	garbage.Write([]byte{0xFF})
	garbage.Close()

	if reg.Active(model.EventWatch) {
		t.Fatal("watch slot active after unrecognized commands")
	}

	// The task is still accepting: a real attach succeeds.
	conn, err := Attach(path)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer conn.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ServeAttach: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeAttach did not return after attach")
	}
	if !reg.Active(model.EventWatch) {
		t.Fatal("watch slot inactive after attach")
	}
}

func TestServeAttachReturnsWhenListenerCloses(t *testing.T) {
	ln, _ := listenTemp(t)
	reg := registry.New()

	done := make(chan error, 1)
	go func() { done <- ServeAttach(ln, reg) }()

	ln.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("ServeAttach returned nil after listener close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeAttach did not return after listener close")
	}
}

func TestRacingAttachesInstallExactlyOne(t *testing.T) {
	ln, path := listenTemp(t)
	reg := registry.New()

	done := make(chan error, 1)
	go func() { done <- ServeAttach(ln, reg) }()

	first, err := Attach(path)
	if err != nil {
		t.Fatalf("first Attach: %v", err)
	}
	defer first.Close()
	second, err := Attach(path)
	if err != nil {
		t.Fatalf("second Attach: %v", err)
	}
	defer second.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ServeAttach did not return")
	}

	// Serial accept: the task installed exactly one connection and exited.
	// The loser is never installed; it just sits unaccepted until teardown.
	if !reg.Active(model.EventWatch) {
		t.Fatal("no watch sink installed")
	}
	entries := reg.ActiveSinks()
	watch := 0
	for _, e := range entries {
		if e.Kind == model.EventWatch {
			watch++
		}
	}
	if watch != 1 {
		t.Fatalf("%d watch entries installed, want 1", watch)
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "control.sock")

	// A leftover socket path nobody is listening behind.
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("seed stale socket file: %v", err)
	}

	ln2, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	ln2.Close()
}

func TestListenRejectsSecondDaemon(t *testing.T) {
	ln, path := listenTemp(t)

	// Keep the first listener accepting so the dial probe succeeds.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	if _, err := Listen(path); err == nil {
		t.Fatal("second Listen on live socket succeeded, want error")
	}
}

func TestCommandWireFormat(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		writeCommand(client, model.CmdAttachWatch)
		client.Close()
	}()

	buf := make([]byte, 4)
	if _, err := server.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := int32(binary.LittleEndian.Uint32(buf)); got != model.CmdAttachWatch {
		t.Fatalf("wire command = %d, want %d", got, model.CmdAttachWatch)
	}
}
