// Package ranker implements the pure, binary source-trust classifier (C6):
// a URL maps to 0.1 (BLOCKED) or 0.8 (USABLE) based on fixed domain sets,
// plus a best-effort date-extraction cascade over page metadata, the URL,
// and a snippet. Grounded on the source's get_rank_from_url/_extract_date.
package ranker

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	ScoreBlocked = 0.1
	ScoreUsable  = 0.8

	// Tier thresholds kept for forward compatibility; under the binary
	// scheme above, L2 never fires (no URL can score > 0.9).
	tierL2Threshold = 0.9
	tierL3Threshold = 0.5
)

// Tier is the trust class C8 files an EvidenceItem into.
type Tier int

const (
	TierBlocked Tier = iota
	TierL2HighTrust
	TierL3General
	TierL4SocialLow
)

var majorBrands = []string{
	"vnexpress", "dantri", "tuoitre", "thanhnien", "vtv", "vov",
	"bbc", "cnn", "reuters", "google", "facebook", "apple", "microsoft",
}

var suspiciousTLDs = []string{
	".xyz", ".top", ".click", ".online", ".site", ".website", ".space",
	".store", ".shop", ".info", ".tk", ".ml", ".ga", ".cf", ".gq",
}

var socialDomains = []string{
	"facebook.com", "fb.com", "fb.watch", "m.facebook.com",
	"twitter.com", "x.com", "mobile.twitter.com",
	"instagram.com", "tiktok.com", "youtube.com", "youtu.be",
	"reddit.com", "weibo.com", "telegram.org", "t.me",
	"threads.net", "mastodon.social", "bsky.app",
	"linkedin.com", "pinterest.com", "snapchat.com",
	"zalo.me", "zalo.vn",
}

var blogPlatforms = []string{
	"blogspot.com", "blogger.com", "wordpress.com", "wordpress.org",
	"tumblr.com", "substack.com", "medium.com",
	"wix.com", "weebly.com", "squarespace.com",
	"notion.so", "notion.site", "ghost.io",
	"towardsdatascience.com", "dev.to", "hashnode.dev",
}

var forumKeywords = []string{"forum", "community", "discuss", "boards", "voz.vn", "tinhte.vn", "otofun"}

var tabloidDomains = []string{
	"dailymail.co.uk", "thesun.co.uk", "mirror.co.uk", "express.co.uk",
	"nypost.com", "nationalenquirer.com", "tmz.com", "pagesix.com",
	"buzzfeed.com", "huffpost.com", "dailybeast.com",
	"infowars.com", "breitbart.com", "thegatewaypundit.com",
	"eva.vn", "afamily.vn", "ngoisao.net", "2sao.vn",
	"gamek.vn", "yan.vn", "yeah1.com", "docbao.vn",
	"webtretho.com", "tinmoi.vn", "tintuconline.com.vn",
	"soha.vn", "kienthuc.net.vn", "giadinh.net.vn",
	"anninhthudo.vn", "nguoiduatin.vn", "phapluatplus.vn",
	"congly.vn", "baomoi.com", "tiin.vn", "24h.com.vn",
	"doisongphapluat.com", "danviet.vn",
}

var propagandaDomains = []string{
	"rfa.org", "rfavietnam.com", "voatiengviet.com",
	"nguoi-viet.com", "vietbao.com", "viettan.org",
	"chantroimoimedia.com", "danchimviet.info",
	"baocalitoday.com", "saigonnhonews.com",
	"vietbf.com", "vietinfo.eu", "thoibao.de",
	"luatkhoa.org", "thevietnamese.org",
	"rt.com", "sputniknews.com", "globalresearch.ca",
	"naturalnews.com", "zerohedge.com",
	"epochtimes.com", "ntd.com", "theepochtimes.com",
}

var unreliableDomains = []string{
	"dantricdn.com", "img.vn",
	"xahoi.com.vn", "vietnamfinance.vn",
	"petrotimes.vn", "congan.com.vn",
	"giadinhvietnam.com", "giaoducthoidai.vn",
	"baophapluat.vn", "baodatviet.vn",
	"theonion.com", "babylonbee.com",
	"clickhole.com", "waterfordwhispersnews.com",
}

// Rank scores rawURL, returning ScoreBlocked or ScoreUsable. Malformed
// URLs default to usable, matching the source's except-clause fallback.
func Rank(rawURL string) float64 {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ScoreUsable
	}
	domain := strings.ToLower(parsed.Hostname())
	domain = strings.TrimPrefix(domain, "www.")
	if domain == "" {
		return ScoreUsable
	}

	if isFakeDomain(domain) {
		return ScoreBlocked
	}
	if matchesDomainSet(domain, socialDomains) {
		return ScoreBlocked
	}
	if matchesDomainSet(domain, blogPlatforms) {
		return ScoreBlocked
	}
	if containsAny(domain, forumKeywords) {
		return ScoreBlocked
	}
	if matchesDomainSet(domain, tabloidDomains) {
		return ScoreBlocked
	}
	if matchesPropaganda(domain) {
		return ScoreBlocked
	}
	if matchesDomainSet(domain, unreliableDomains) {
		return ScoreBlocked
	}
	if hasSuspiciousTLD(domain) {
		return ScoreBlocked
	}
	return ScoreUsable
}

// TierFor maps a Rank score to the trust tier C8 files an item into.
func TierFor(score float64) Tier {
	switch {
	case score <= ScoreBlocked:
		return TierBlocked
	case score > tierL2Threshold:
		return TierL2HighTrust
	case score > tierL3Threshold:
		return TierL3General
	default:
		return TierL4SocialLow
	}
}

func isFakeDomain(domain string) bool {
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(domain, tld) {
			for _, brand := range majorBrands {
				if strings.Contains(domain, brand) {
					return true
				}
			}
		}
	}
	return false
}

func matchesDomainSet(domain string, set []string) bool {
	for _, d := range set {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func matchesPropaganda(domain string) bool {
	for _, p := range propagandaDomains {
		if domain == p || strings.HasSuffix(domain, "."+p) || strings.Contains(domain, p) {
			return true
		}
	}
	return false
}

func hasSuspiciousTLD(domain string) bool {
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

var (
	urlDateYMD = regexp.MustCompile(`/(20\d{2})[\-/](\d{1,2})[\-/](\d{1,2})/`)
	urlDateDMY = regexp.MustCompile(`/(\d{1,2})[\-/](\d{1,2})[\-/](20\d{2})/`)
	isoDate    = regexp.MustCompile(`(20\d{2})-(\d{2})-(\d{2})`)
	slashDate  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(20\d{2})`)
	monthNames = map[string]string{
		"jan": "01", "feb": "02", "mar": "03", "apr": "04", "may": "05", "jun": "06",
		"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
	}
	monthNameDate = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(\d{4})\b`)
)

// ExtractDate best-effort parses a publish date to YYYY-MM-DD, trying
// metaDates (raw metadata values such as article:published_time) first,
// then the URL, then the snippet text. Returns "" if nothing parses.
func ExtractDate(metaDates []string, rawURL, snippet string) string {
	for _, d := range metaDates {
		if parsed := parseDateString(d); parsed != "" {
			return parsed
		}
	}
	if m := urlDateYMD.FindStringSubmatch(rawURL); len(m) == 4 {
		return normalizeYMD(m[1], m[2], m[3])
	}
	if m := urlDateDMY.FindStringSubmatch(rawURL); len(m) == 4 {
		return normalizeYMD(m[3], m[2], m[1])
	}
	if parsed := parseDateString(snippet); parsed != "" {
		return parsed
	}
	return ""
}

func parseDateString(s string) string {
	if m := isoDate.FindStringSubmatch(s); len(m) == 4 {
		return normalizeYMD(m[1], m[2], m[3])
	}
	if m := slashDate.FindStringSubmatch(s); len(m) == 4 {
		return normalizeYMD(m[3], m[1], m[2])
	}
	if m := monthNameDate.FindStringSubmatch(s); len(m) == 4 {
		mon, ok := monthNames[strings.ToLower(m[2][:3])]
		if !ok {
			return ""
		}
		return normalizeYMD(m[3], mon, m[1])
	}
	return ""
}

func normalizeYMD(y, m, d string) string {
	mi, errM := strconv.Atoi(m)
	di, errD := strconv.Atoi(d)
	if errM != nil || errD != nil || mi < 1 || mi > 12 || di < 1 || di > 31 {
		return ""
	}
	return y + "-" + pad2(mi) + "-" + pad2(di)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
