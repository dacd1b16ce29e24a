package bus

import (
	"testing"
	"time"
)

func TestPublishDeduplicatesByMessageID(t *testing.T) {
	b := New(0, 0)
	env := Envelope{MessageID: "m1", SourceIID: "a", DestIID: "b", Kind: KindNotification}
	b.Publish(env)
	b.Publish(env)
	if b.Len() != 1 {
		t.Fatalf("expected dedup to keep queue at 1, got %d", b.Len())
	}
}

func TestPendingFiltersByDestAndBroadcast(t *testing.T) {
	b := New(0, 0)
	b.Publish(Envelope{MessageID: "m1", SourceIID: "a", DestIID: "b", Kind: KindNotification})
	b.Publish(Envelope{MessageID: "m2", SourceIID: "a", DestIID: "c", Kind: KindNotification})
	b.Publish(Envelope{MessageID: "m3", SourceIID: "a", DestIID: Broadcast, Kind: KindNotification})

	pending := b.Pending("b")
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending for b (direct + broadcast), got %d", len(pending))
	}
}

func TestPerSourceFIFOOrderPreserved(t *testing.T) {
	b := New(0, 0)
	b.Publish(Envelope{MessageID: "m1", SourceIID: "a", DestIID: "b", Kind: KindNotification})
	b.Publish(Envelope{MessageID: "m2", SourceIID: "a", DestIID: "b", Kind: KindNotification})
	b.Publish(Envelope{MessageID: "m3", SourceIID: "a", DestIID: "b", Kind: KindNotification})

	pending := b.Pending("b")
	if len(pending) != 3 || pending[0].MessageID != "m1" || pending[1].MessageID != "m2" || pending[2].MessageID != "m3" {
		t.Fatalf("expected FIFO order m1,m2,m3, got %+v", pending)
	}
}

func TestQueueDropsOldestOnOverflow(t *testing.T) {
	b := New(2, 0)
	b.Publish(Envelope{MessageID: "m1", SourceIID: "a", DestIID: "b", Kind: KindNotification})
	b.Publish(Envelope{MessageID: "m2", SourceIID: "a", DestIID: "b", Kind: KindNotification})
	b.Publish(Envelope{MessageID: "m3", SourceIID: "a", DestIID: "b", Kind: KindNotification})

	if b.Len() != 2 {
		t.Fatalf("expected bounded queue at capacity 2, got %d", b.Len())
	}
	pending := b.Pending("b")
	if len(pending) != 2 || pending[0].MessageID != "m2" {
		t.Fatalf("expected oldest (m1) dropped, got %+v", pending)
	}
}

func TestAckThenPurgeRemovesMessages(t *testing.T) {
	b := New(0, time.Hour)
	b.Publish(Envelope{MessageID: "m1", SourceIID: "a", DestIID: "b", Kind: KindNotification})

	if acked := b.Ack([]string{"m1"}); acked != 1 {
		t.Fatalf("expected 1 acked, got %d", acked)
	}
	if len(b.Pending("b")) != 0 {
		t.Fatalf("expected acked message to no longer be pending")
	}
	if b.Len() != 1 {
		t.Fatalf("expected acked message to remain queued until purge")
	}
	if removed := b.Purge(time.Now().Add(2 * time.Hour)); removed != 1 {
		t.Fatalf("expected the acked message to be purged past retention, got %d", removed)
	}
	if b.Len() != 0 {
		t.Fatalf("expected queue empty after purge")
	}
}

func TestPurgeRemovesMessagesPastRetention(t *testing.T) {
	b := New(0, time.Minute)
	b.Publish(Envelope{MessageID: "m1", SourceIID: "a", DestIID: "b", Kind: KindNotification})

	removed := b.Purge(time.Now().Add(2 * time.Hour))
	if removed != 1 {
		t.Fatalf("expected 1 message purged past retention, got %d", removed)
	}
	if b.Len() != 0 {
		t.Fatalf("expected queue empty after purge")
	}
}
