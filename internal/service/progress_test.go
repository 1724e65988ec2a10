package service

import "testing"

func TestProgressBrokerFanOut(t *testing.T) {
	b := newProgressBroker()

	ch1, cancel1 := b.Subscribe("sess-1")
	ch2, cancel2 := b.Subscribe("sess-1")
	other, cancelOther := b.Subscribe("sess-2")
	defer cancel1()
	defer cancel2()
	defer cancelOther()

	b.publish(ProgressEvent{SessionID: "sess-1", Stage: "image", ImageIndex: 0})

	for i, ch := range []<-chan ProgressEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Stage != "image" {
				t.Errorf("subscriber %d got stage %q, want image", i, ev.Stage)
			}
		default:
			t.Errorf("subscriber %d got no event", i)
		}
	}

	select {
	case ev := <-other:
		t.Errorf("sess-2 subscriber got sess-1 event: %+v", ev)
	default:
	}
}

func TestProgressBrokerFinishClosesSubscribers(t *testing.T) {
	b := newProgressBroker()

	ch, cancel := b.Subscribe("sess-1")
	defer cancel()

	b.publish(ProgressEvent{SessionID: "sess-1", Stage: "image"})
	b.finish("sess-1")

	// The buffered event is still readable, then the channel closes.
	if ev, ok := <-ch; !ok || ev.Stage != "image" {
		t.Errorf("first receive = %+v ok=%v, want the buffered event", ev, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after finish")
	}

	// Publishing to a finished session is a no-op.
	b.publish(ProgressEvent{SessionID: "sess-1", Stage: "image"})
}

func TestProgressBrokerSlowSubscriberDropsEvents(t *testing.T) {
	b := newProgressBroker()

	ch, cancel := b.Subscribe("sess-1")
	defer cancel()

	for i := 0; i < 40; i++ {
		b.publish(ProgressEvent{SessionID: "sess-1", Stage: "image", ImageIndex: i})
	}

	// The buffer holds the first 16; the rest were dropped, not blocked on.
	n := 0
	for {
		select {
		case <-ch:
			n++
			continue
		default:
		}
		break
	}
	if n != 16 {
		t.Errorf("buffered events = %d, want 16", n)
	}
}

func TestProgressBrokerCancelRemovesSubscriber(t *testing.T) {
	b := newProgressBroker()

	ch, cancel := b.Subscribe("sess-1")
	cancel()

	if _, ok := <-ch; ok {
		t.Error("cancel should close the subscriber channel")
	}

	// Publish and finish after cancel must not panic.
	b.publish(ProgressEvent{SessionID: "sess-1", Stage: "image"})
	b.finish("sess-1")
}
