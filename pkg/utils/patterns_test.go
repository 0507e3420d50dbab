package utils_test

import (
	"testing"

	"callwatch-service/pkg/utils"

	"github.com/stretchr/testify/assert"
)

func TestMatchDurationChainPrecedence(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"2 мин 5 сек", 125},
		{"40 сек", 40},
		{"3 мин", 180},
		{"1 мин. 1 сек", 61},
		{"длительность неизвестна", -1},
		{"", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, utils.MatchDuration(tt.text), "text %q", tt.text)
	}
}

func TestMatchPhoneChain(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		// URL-encoded form inside an href wins first
		{`href="/call?number=%2B7%20%28912%29%20345-67-89"`, "79123456789"},
		{"+7 (912) 345-67-89", "79123456789"},
		{"абонент 79123456789 позвонил", "79123456789"},
		{"+7 912 345 67 89", "79123456789"},
		{"8 912 345-67-89", "79123456789"},
		{"нет номера", ""},
		{"12345", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, utils.MatchPhone(tt.text), "text %q", tt.text)
	}
}

func TestMatchCallDate(t *testing.T) {
	assert.Equal(t, "05.03.2024 14:21:08", utils.MatchCallDate("звонок 05.03.2024 14:21:08 завершен"))
	assert.Empty(t, utils.MatchCallDate("05.03.2024"))
	assert.Empty(t, utils.MatchCallDate("вчера в 14:21"))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "79123456789", utils.NormalizePhone("+7 (912) 345-67-89"))
	assert.Equal(t, "79123456789", utils.NormalizePhone("8 (912) 345-67-89"))
	assert.Equal(t, "79123456789", utils.NormalizePhone("9123456789"))
	assert.Empty(t, utils.NormalizePhone("12345"))
	assert.Empty(t, utils.NormalizePhone(""))
}

func TestContainsLoginMarker(t *testing.T) {
	assert.True(t, utils.ContainsLoginMarker(`<input type="password">`))
	assert.True(t, utils.ContainsLoginMarker(`<h1>Войти</h1>`))
	assert.True(t, utils.ContainsLoginMarker(`<label>Remember me</label>`))
	assert.False(t, utils.ContainsLoginMarker(`<table><tr><td>звонки</td></tr></table>`))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "ООО Ромашка", utils.StripTags("  ООО <b>Ромашка</b> "))
	assert.Equal(t, "a & b", utils.StripTags("a &amp; b"))
	assert.Empty(t, utils.StripTags("<span></span>"))
}
