package normalize

import "testing"

func TestEmail(t *testing.T) {
	in := "  John.DOE@Example.COM  "
	want := "john.doe@example.com"
	got := Email(in)
	if got != want {
		t.Fatalf("Normalize.Email(%q) = %q, want %q", in, got, want)
	}
}

func TestUsername(t *testing.T) {
	for in, want := range map[string]string{
		"ada":     "ada",
		" @Ada ":  "ada",
		"BOB_the": "bob_the",
		"   ":     "",
	} {
		if got := Username(in); got != want {
			t.Fatalf("Username(%q) = %q, want %q", in, got, want)
		}
	}
}
