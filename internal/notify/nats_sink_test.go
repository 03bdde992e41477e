package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// startTestNATSServer starts an embedded NATS server for NATSSink's
// integration test, grounded on the teacher's internal/agents/heartbeat_test.go
// helper of the same name.
func startTestNATSServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	opts := &server.Options{Port: -1}
	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("create embedded nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded nats server not ready")
	}
	return ns, ns.ClientURL()
}

func TestNATSSinkPublishesActivityEntryAsJSON(t *testing.T) {
	ns, url := startTestNATSServer(t)
	defer ns.Shutdown()

	sub, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()

	received := make(chan *nats.Msg, 1)
	if _, err := sub.Subscribe("cryptofunk.activity", func(m *nats.Msg) {
		received <- m
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sink, err := NewNATSSink(url, "")
	if err != nil {
		t.Fatalf("new nats sink: %v", err)
	}
	defer sink.Close()

	entry := domain.ActivityEntry{Level: domain.ActivityTrade, Message: "opened BTCUSDT long"}
	if err := sink.Notify(context.Background(), entry); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case msg := <-received:
		var got domain.ActivityEntry
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal published payload: %v", err)
		}
		if got.Message != entry.Message || got.Level != entry.Level {
			t.Fatalf("expected %+v, got %+v", entry, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published activity entry")
	}
}

func TestNATSSinkDefaultsSubjectWhenEmpty(t *testing.T) {
	ns, url := startTestNATSServer(t)
	defer ns.Shutdown()

	sink, err := NewNATSSink(url, "")
	if err != nil {
		t.Fatalf("new nats sink: %v", err)
	}
	defer sink.Close()

	if sink.subject != "cryptofunk.activity" {
		t.Fatalf("expected default subject, got %q", sink.subject)
	}
}
