package bus

import "testing"

func TestHeadersAddPreservesExisting(t *testing.T) {
	h := NewHeaders("k", "v1")
	h2 := h.Add("k", "v2")

	if len(h.Values("k")) != 1 {
		t.Fatalf("original headers must not be mutated, got %v", h.Values("k"))
	}
	if got := h2.Values("k"); len(got) != 2 || got[0] != "v1" || got[1] != "v2" {
		t.Fatalf("expected [v1 v2], got %v", got)
	}
}

func TestHeadersSetReplacesValues(t *testing.T) {
	h := NewHeaders("k", "v1", "k", "v2")
	h2 := h.Set("k", "v3")

	if got := h2.Values("k"); len(got) != 1 || got[0] != "v3" {
		t.Fatalf("expected [v3], got %v", got)
	}
	if got := h.Values("k"); len(got) != 2 {
		t.Fatalf("original headers must not be mutated, got %v", got)
	}
}

func TestHeadersGetReturnsFirstValueOrEmpty(t *testing.T) {
	h := NewHeaders("k", "v1", "k", "v2")
	if got := h.Get("k"); got != "v1" {
		t.Fatalf("expected v1, got %q", got)
	}
	if got := h.Get("missing"); got != "" {
		t.Fatalf("expected empty string for missing key, got %q", got)
	}
}

func TestHeadersCloneIsIndependent(t *testing.T) {
	h := NewHeaders("k", "v1")
	cloned := h.Clone()
	cloned["k"][0] = "mutated"

	if h.Get("k") != "v1" {
		t.Fatalf("expected original headers unaffected by clone mutation, got %q", h.Get("k"))
	}
}
