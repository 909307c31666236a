package eventbus

import "testing"

func TestPublishFansOut(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TypeCheckStarted})
	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		if e.Type != TypeCheckStarted || e.Time.IsZero() {
			t.Fatalf("unexpected event %+v", e)
		}
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "first"})
	b.Publish(Event{Type: "second"}) // must not block
	if e := <-ch; e.Type != "first" {
		t.Fatalf("got %q, want first", e.Type)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected extra event %q", e.Type)
	default:
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	b.Publish(Event{Type: "after"}) // must not panic
}
