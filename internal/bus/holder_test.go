package bus

import "testing"

func TestHandlerHolderMarkRemovedSingleWinner(t *testing.T) {
	h := &handlerHolder{}

	if !h.markRemoved() {
		t.Fatal("expected the first markRemoved call to win")
	}
	if h.markRemoved() {
		t.Fatal("expected a second markRemoved call to lose")
	}
	if !h.isRemoved() {
		t.Fatal("expected isRemoved to report true after markRemoved")
	}
}

func TestHandlerHolderNotRemovedInitially(t *testing.T) {
	h := &handlerHolder{}
	if h.isRemoved() {
		t.Fatal("expected a fresh holder to not be removed")
	}
}
