package policy

import "testing"

func TestResolveCompanyName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		hint     string
		link     string
		fileName string
		want     string
	}{
		{name: "hint wins", hint: " Acme Corp ", link: "https://example.com", want: "Acme Corp"},
		{name: "simple domain", link: "https://example.com/privacy", want: "example"},
		{name: "subdomain", link: "https://www.legal.example.com/terms", want: "example"},
		{name: "multi-label suffix", link: "https://www.example.co.uk/x", want: "example"},
		{name: "ip host", link: "http://10.0.0.7/policy", want: "10.0.0.7"},
		{name: "single label", link: "http://localhost:8080/p", want: "localhost"},
		{name: "file stem", fileName: "Acme_privacy_policy.pdf", want: "Acme"},
		{name: "file words only", fileName: "Terms and Conditions.docx", want: "and"},
		{name: "file with spaces", fileName: "/tmp/Big Shop terms.txt", want: "Big Shop"},
		{name: "nothing", fileName: "privacy_policy.txt", want: UnknownCompany},
		{name: "empty", want: UnknownCompany},
	}

	for _, tc := range cases {
		got := ResolveCompanyName(tc.hint, tc.link, tc.fileName)
		if got != tc.want {
			t.Fatalf("%s: unexpected company: got %q want %q", tc.name, got, tc.want)
		}
	}
}
