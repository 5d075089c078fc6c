package push

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestNATSDialErrorMapping(t *testing.T) {
	for _, err := range []error{nats.ErrAuthorization, nats.ErrAuthExpired} {
		if got := natsDialError(err); !errors.Is(got, ErrUnauthorized) {
			t.Errorf("%v mapped to %v", err, got)
		}
	}
	if got := natsDialError(nats.ErrNoServers); errors.Is(got, ErrUnauthorized) || !errors.Is(got, nats.ErrNoServers) {
		t.Fatalf("no servers mapped to %v", got)
	}
}

// Needs a NATS server without auth: NATS_TEST_URL=nats://localhost:4222
func natsURL(t *testing.T, key string) string {
	t.Helper()
	u := os.Getenv(key)
	if u == "" {
		t.Skip(key + " not set")
	}
	return u
}

func TestNATSRoundTrip(t *testing.T) {
	url := natsURL(t, "NATS_TEST_URL")
	prefix := "sfl-test-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	tr := &NATS{URL: url, Prefix: prefix, Name: "storefront-live-test", Timeout: 2 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := tr.Dial(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if err := conn.(*natsConn).nc.Flush(); err != nil {
		t.Fatal(err)
	}

	server, err := nats.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()
	commands, err := server.SubscribeSync(prefix + ".commands")
	if err != nil {
		t.Fatal(err)
	}
	if err := server.Flush(); err != nil {
		t.Fatal(err)
	}

	ev, _ := NewEvent(EventNewOrder, map[string]string{"orderNumber": "1042"})
	frame, _ := ev.MarshalFrame()
	if err := server.Publish(prefix+".events", []byte("not a frame")); err != nil {
		t.Fatal(err)
	}
	if err := server.Publish(prefix+".events", frame); err != nil {
		t.Fatal(err)
	}
	got, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != EventNewOrder || string(got.Data) != string(ev.Data) {
		t.Fatalf("read %+v", got)
	}

	join, _ := NewEvent(EventAdminJoin, map[string]string{"userId": "a1"})
	if err := conn.Emit(ctx, join); err != nil {
		t.Fatal(err)
	}
	msg, err := commands.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	sent, err := UnmarshalFrame(msg.Data)
	if err != nil || sent.Name != EventAdminJoin {
		t.Fatalf("emitted %+v %v", sent, err)
	}

	conn.Close()
	if _, err := conn.Read(ctx); err == nil {
		t.Fatal("read after close succeeded")
	}
}

// Needs a NATS server started with --auth <token>:
// NATS_TEST_TOKEN_URL=nats://localhost:4223
func TestNATSRejectedTokenIsUnauthorized(t *testing.T) {
	url := natsURL(t, "NATS_TEST_TOKEN_URL")
	tr := &NATS{URL: url, Prefix: "sfl-test", Timeout: 2 * time.Second}
	_, err := tr.Dial(context.Background(), "wrong-token")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("dial with a bad token = %v", err)
	}
}
