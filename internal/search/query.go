// Package search adapts the claim-verification pipeline's evidence
// gathering to external search backends: Google News (via RSS),
// Wikipedia, a Google Custom Search Engine, a DuckDuckGo HTML fallback,
// and the Google Fact Check Tool registry. Query cleaning and ordering
// below are grounded on app/search.py's _clean_query/_extract_english_query/
// _ensure_news_keyword/_sort_key.
package search

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/zerofake-go/verifier/internal/domain"
)

var (
	sensationalPrefix = regexp.MustCompile(`(?i)^(TIN NÓNG|NÓNG|BREAKING|TIN MỚI|SỐC|CẢNH BÁO|⚠️|🔴|📢|🚨|❗)[:!]*\s*`)
	sourceCitation     = regexp.MustCompile(`(?i)^(Theo Reuters|Theo BBC|Theo AP|Thông tin từ AP|BBC đưa tin)[:]*\s*`)
	ctaSuffix          = regexp.MustCompile(`(?i)\s*[-–]\s*(Xem ngay|Chia sẻ ngay|Đọc thêm|Click here).*$`)
)

// CleanQuery strips leading sensational prefixes, source citations, and
// trailing call-to-action phrases from a raw claim before it is used as a
// search query.
func CleanQuery(query string) string {
	query = sensationalPrefix.ReplaceAllString(query, "")
	query = sourceCitation.ReplaceAllString(query, "")
	query = ctaSuffix.ReplaceAllString(query, "")
	return strings.TrimSpace(query)
}

var vnToEnTranslations = []struct{ vn, en string }{
	{"vô địch", "won championship"},
	{"giải vô địch", "championship"},
	{"đội tuyển Việt Nam", "Vietnam national team"},
	{"bóng đá", "football soccer"},
	{"ra mắt", "launched released"},
	{"công bố", "announced"},
	{"qua đời", "died passed away"},
	{"mất tích", "missing disappeared"},
	{"tai nạn", "accident"},
	{"sập cầu", "bridge collapse"},
	{"động đất", "earthquake"},
	{"điện thoại", "smartphone phone"},
	{"máy tính", "computer"},
	{"trí tuệ nhân tạo", "artificial intelligence AI"},
	{"bầu cử", "election"},
	{"tổng thống", "president"},
	{"thủ tướng", "prime minister"},
	{"chính phủ", "government"},
	{"Việt Nam", "Vietnam"},
	{"Hà Nội", "Hanoi"},
	{"Campuchia", "Cambodia"},
	{"Thái Lan", "Thailand"},
	{"tháng", "month"},
	{"năm", "year"},
	{"vừa", "just recently"},
	{"đêm qua", "last night"},
	{"hôm nay", "today"},
	{"mới nhất", "latest"},
}

var nonQueryChars = regexp.MustCompile(`[^\w\s\-./]`)
var extraSpace = regexp.MustCompile(`\s+`)

// ExtractEnglishQuery translates recognized Vietnamese terms to English so
// international claims also reach English-language sources.
func ExtractEnglishQuery(text string) string {
	result := text
	for _, t := range vnToEnTranslations {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(t.vn))
		result = re.ReplaceAllString(result, t.en)
	}
	result = nonQueryChars.ReplaceAllString(result, " ")
	result = extraSpace.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

var newsKeywords = []string{"tin tức", "news", "thông tin", "báo", "article"}

// EnsureNewsKeyword appends a news keyword if the query doesn't already
// look news-flavored.
func EnsureNewsKeyword(query string) string {
	query = strings.TrimSpace(query)
	lower := strings.ToLower(query)
	for _, kw := range newsKeywords {
		if strings.Contains(lower, kw) {
			return query
		}
	}
	return strings.TrimSpace(query + " tin tức")
}

// SortByDateDesc orders items newest-first; items with an unparsed or
// missing date sort last.
func SortByDateDesc(items []domain.EvidenceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return dateRank(items[i].Date) > dateRank(items[j].Date)
	})
}

func dateRank(date string) int64 {
	if date == "" {
		return 0
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0
	}
	return t.Unix()
}
