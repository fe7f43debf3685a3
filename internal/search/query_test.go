package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zerofake-go/verifier/internal/domain"
)

func TestCleanQuery_StripsSensationalPrefix(t *testing.T) {
	got := CleanQuery("TIN NÓNG: cầu sập ở Hà Nội")
	assert.Equal(t, "cầu sập ở Hà Nội", got)
}

func TestCleanQuery_StripsCTASuffix(t *testing.T) {
	got := CleanQuery("Giá vàng tăng mạnh - Xem ngay để biết thêm chi tiết")
	assert.Equal(t, "Giá vàng tăng mạnh", got)
}

func TestExtractEnglishQuery_TranslatesKnownTerms(t *testing.T) {
	got := ExtractEnglishQuery("Việt Nam vô địch AFF Cup")
	assert.Contains(t, got, "Vietnam")
	assert.Contains(t, got, "won championship")
}

func TestEnsureNewsKeyword_AppendsWhenMissing(t *testing.T) {
	assert.Equal(t, "giá xăng tin tức", EnsureNewsKeyword("giá xăng"))
}

func TestEnsureNewsKeyword_LeavesAloneWhenPresent(t *testing.T) {
	assert.Equal(t, "giá xăng news hôm nay", EnsureNewsKeyword("giá xăng news hôm nay"))
}

func TestSortByDateDesc(t *testing.T) {
	items := []domain.EvidenceItem{
		{URL: "a", Date: "2024-01-01"},
		{URL: "b", Date: "2024-06-15"},
		{URL: "c", Date: ""},
	}
	SortByDateDesc(items)
	assert.Equal(t, "b", items[0].URL)
	assert.Equal(t, "a", items[1].URL)
	assert.Equal(t, "c", items[2].URL)
}
