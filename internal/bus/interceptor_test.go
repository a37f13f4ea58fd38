package bus

import (
	"errors"
	"testing"
)

func TestInterceptorChainRunsInRegistrationOrder(t *testing.T) {
	c := newInterceptorChain()
	var order []string

	c.add(func(_ *handlerHolder, msg *Message) (*Message, error) {
		order = append(order, "first")
		return msg, nil
	})
	c.add(func(_ *handlerHolder, msg *Message) (*Message, error) {
		order = append(order, "second")
		return msg, nil
	})

	msg := &Message{Address: "addr"}
	out, err := c.run(nil, msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != msg {
		t.Fatal("expected message to pass through unchanged")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected [first second], got %v", order)
	}
}

func TestInterceptorChainShortCircuitsOnError(t *testing.T) {
	c := newInterceptorChain()
	called := false

	c.add(func(_ *handlerHolder, msg *Message) (*Message, error) {
		return nil, errors.New("boom")
	})
	c.add(func(_ *handlerHolder, msg *Message) (*Message, error) {
		called = true
		return msg, nil
	})

	_, err := c.run(nil, &Message{})
	if err == nil {
		t.Fatal("expected error from first interceptor")
	}
	if called {
		t.Fatal("second interceptor must not run after an error")
	}
}

func TestInterceptorChainDropsOnNilMessage(t *testing.T) {
	c := newInterceptorChain()
	called := false

	c.add(func(_ *handlerHolder, msg *Message) (*Message, error) {
		return nil, nil
	})
	c.add(func(_ *handlerHolder, msg *Message) (*Message, error) {
		called = true
		return msg, nil
	})

	out, err := c.run(nil, &Message{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatal("expected nil message when an interceptor drops delivery")
	}
	if called {
		t.Fatal("later interceptors must not run once dropped")
	}
}

func TestInterceptorChainRemove(t *testing.T) {
	c := newInterceptorChain()
	removed := func(_ *handlerHolder, msg *Message) (*Message, error) {
		t.Fatal("removed interceptor must not run")
		return msg, nil
	}
	c.add(removed)
	c.remove(removed)

	if _, err := c.run(nil, &Message{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
