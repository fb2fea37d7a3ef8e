package pipeline

import (
	"net/url"
	"strings"
)

// trustedDomains is the fast-path credibility registry. Entries starting
// with a dot match any host with that suffix; the rest match the host
// itself or any subdomain of it.
var trustedDomains = []string{
	// Government and education
	".gov",
	".edu",
	".ac.uk",
	".gov.uk",
	// Major wire services and outlets
	"reuters.com",
	"apnews.com",
	"bbc.com",
	"bbc.co.uk",
	"nature.com",
	"science.org",
	"arxiv.org",
	"pubmed.ncbi.nlm.nih.gov",
	// Tech authorities
	"github.com",
	"stackoverflow.com",
}

// trustedDomainBoost is added to the model's credibility score for trusted
// hosts, before the gate check.
const trustedDomainBoost = 0.15

func isTrustedDomain(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	if host == "" {
		return false
	}
	for _, td := range trustedDomains {
		if strings.HasPrefix(td, ".") {
			if strings.HasSuffix(host, td) {
				return true
			}
		} else if host == td || strings.HasSuffix(host, "."+td) {
			return true
		}
	}
	return false
}
