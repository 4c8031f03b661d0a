package deletion

import "testing"

func TestValidateAllows(t *testing.T) {
	target := Target{PubKey: "abc", Kind: 1, CreatedAt: 100}
	ok, reason := Validate(target, "abc", 200)
	if !ok || reason != Allowed {
		t.Fatalf("expected allowed, got ok=%v reason=%v", ok, reason)
	}
}

func TestValidateRejectsPubKeyMismatch(t *testing.T) {
	target := Target{PubKey: "abc", Kind: 1, CreatedAt: 100}
	ok, reason := Validate(target, "other", 200)
	if ok || reason != PubKeyMismatch {
		t.Fatalf("expected pubkey mismatch rejection, got ok=%v reason=%v", ok, reason)
	}
}

func TestValidateRejectsDeletionOfDeletion(t *testing.T) {
	target := Target{PubKey: "abc", Kind: 5, CreatedAt: 100}
	ok, reason := Validate(target, "abc", 200)
	if ok || reason != ProtectedKind {
		t.Fatalf("expected protected-kind rejection, got ok=%v reason=%v", ok, reason)
	}
}

func TestValidateAddressableWindow(t *testing.T) {
	// target postdates the deleter: a newer addressable version must survive.
	target := Target{PubKey: "abc", Kind: 30000, CreatedAt: 300}
	ok, reason := Validate(target, "abc", 200)
	if ok || reason != OutsideDeletionWindow {
		t.Fatalf("expected outside-deletion-window rejection, got ok=%v reason=%v", ok, reason)
	}

	// target predates the deleter: deletion proceeds.
	target.CreatedAt = 100
	ok, reason = Validate(target, "abc", 200)
	if !ok || reason != Allowed {
		t.Fatalf("expected allowed, got ok=%v reason=%v", ok, reason)
	}
}
