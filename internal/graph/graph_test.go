package graph

import "testing"

func TestNodeIDDeterministic(t *testing.T) {
	a := NodeID("src/a.ts", NodeClass, "A", 1)
	b := NodeID("src/a.ts", NodeClass, "A", 1)
	if a != b {
		t.Fatalf("same inputs produced different ids: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("id length = %d, want 16", len(a))
	}
}

func TestNodeIDDistinguishesInputs(t *testing.T) {
	base := NodeID("src/a.ts", NodeClass, "A", 1)
	cases := []string{
		NodeID("src/b.ts", NodeClass, "A", 1),
		NodeID("src/a.ts", NodeInterface, "A", 1),
		NodeID("src/a.ts", NodeClass, "B", 1),
		NodeID("src/a.ts", NodeClass, "A", 2),
	}
	for i, id := range cases {
		if id == base {
			t.Errorf("case %d collided with base id", i)
		}
	}
}

func TestEdgeIDDeterministic(t *testing.T) {
	a := EdgeID("n1", "n2", EdgeCalls)
	b := EdgeID("n1", "n2", EdgeCalls)
	if a != b {
		t.Fatalf("same inputs produced different ids")
	}
	if a == EdgeID("n1", "n2", EdgeUses) {
		t.Fatalf("edge type not part of identity")
	}
}

func TestRefRoundTrip(t *testing.T) {
	id := Ref(RefFunction, "a.greet")
	if id != "ref:function:a.greet" {
		t.Fatalf("Ref = %q", id)
	}
	if !IsRef(id) {
		t.Fatalf("IsRef(%q) = false", id)
	}
	kind, name, ok := ParseRef(id)
	if !ok || kind != RefFunction || name != "a.greet" {
		t.Fatalf("ParseRef = %v %v %v", kind, name, ok)
	}
	if IsRef("abcdef0123456789") {
		t.Fatalf("concrete id classified as ref")
	}
}

func TestUnresolvedEdge(t *testing.T) {
	e := UnresolvedEdge("src", RefClass, "Base", EdgeExtends, nil)
	if e.TargetID != "ref:class:Base" {
		t.Fatalf("target = %q", e.TargetID)
	}
	if !e.Unresolved() {
		t.Fatalf("edge not marked unresolved")
	}
	if e.TargetName() != "Base" {
		t.Fatalf("targetName = %q", e.TargetName())
	}
}

func TestMemberOwnerNames(t *testing.T) {
	if MemberName("A.greet") != "greet" || MemberName("greet") != "greet" {
		t.Fatalf("MemberName wrong")
	}
	if OwnerName("A.greet") != "A" || OwnerName("greet") != "" {
		t.Fatalf("OwnerName wrong")
	}
	if OwnerName("pkg.A.greet") != "pkg.A" {
		t.Fatalf("OwnerName dotted wrong")
	}
}
