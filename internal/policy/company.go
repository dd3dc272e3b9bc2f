package policy

import (
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// UnknownCompany is stored when no name can be derived.
const UnknownCompany = "Unknown"

var policyWords = regexp.MustCompile(`(?i)[_\s-]*(privacy|policy|terms|conditions|agreement)[_\s-]*`)

// ResolveCompanyName picks the display name for a new catalog entry: the
// explicit hint, then the link's registrable domain label, then the file
// name stem, then UnknownCompany.
func ResolveCompanyName(hint, link, fileName string) string {
	if name := strings.TrimSpace(hint); name != "" {
		return name
	}
	if name := companyFromLink(link); name != "" {
		return name
	}
	if name := companyFromFileName(fileName); name != "" {
		return name
	}
	return UnknownCompany
}

func companyFromLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err == nil {
		if label, _, ok := strings.Cut(registrable, "."); ok && label != "" {
			return label
		}
	}

	labels := strings.Split(host, ".")
	if len(labels) >= 2 {
		return labels[len(labels)-2]
	}
	return labels[0]
}

func companyFromFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stripped := policyWords.ReplaceAllString(stem, " ")
	return strings.Join(strings.Fields(strings.Trim(stripped, "_- ")), " ")
}
