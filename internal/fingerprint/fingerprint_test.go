package fingerprint

import (
	"encoding/json"
	"testing"
)

func TestOfMatchesFNV1a64Vectors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want  string
	}{
		{input: "", want: "cbf29ce484222325"},
		{input: "a", want: "af63dc4c8601ec8c"},
		{input: "foobar", want: "85944171f73967e8"},
	}

	for _, tc := range cases {
		got := Of(tc.input).Hex()
		if got != tc.want {
			t.Fatalf("unexpected fingerprint for %q: got %s want %s", tc.input, got, tc.want)
		}
	}
}

func TestOfIsDeterministic(t *testing.T) {
	t.Parallel()

	if Of("We collect emails.") != Of("We collect emails.") {
		t.Fatalf("expected equal fingerprints for equal text")
	}
	if Of("We collect emails.") == Of("We collect emails") {
		t.Fatalf("expected different fingerprints for different text")
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	fp := Of("privacy")
	parsed, err := Parse(fp.Hex())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != fp {
		t.Fatalf("unexpected parsed fingerprint: got %s want %s", parsed, fp)
	}

	padded, err := Parse("000000000000000F")
	if err != nil {
		t.Fatalf("parse padded: %v", err)
	}
	if uint64(padded) != 15 {
		t.Fatalf("unexpected padded value: got %d want 15", uint64(padded))
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "abc", "zzzzzzzzzzzzzzzz", "0123456789abcdef0"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestFingerprintJSONUsesHex(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		FP Fingerprint `json:"fp"`
	}
	raw, err := json.Marshal(wrapper{FP: Fingerprint(255)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"fp":"00000000000000ff"}` {
		t.Fatalf("unexpected json: %s", raw)
	}

	var back wrapper
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.FP != 255 {
		t.Fatalf("unexpected value: got %d want 255", uint64(back.FP))
	}
}
