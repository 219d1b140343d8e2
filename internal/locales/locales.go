// Package locales provides best-effort localization keyed off the phone
// country code. The mapping is intentionally coarse: a dialing prefix picks a
// language, anything unrecognized falls back to English.
package locales

import (
	"fmt"
	"strings"
)

type rule struct {
	prefix string
	lang   string
}

// Ordered: longer prefixes first so "23" never shadows "234".
var rules = []rule{
	{"234", "en"}, // NG
	{"44", "en"},  // UK
	{"91", "hi"},
	{"55", "pt"},
	{"34", "es"},
	{"39", "it"},
	{"33", "fr"},
	{"49", "de"},
	{"62", "id"},
	{"90", "tr"},
	{"81", "ja"},
	{"82", "ko"},
	{"86", "zh"},
	{"7", "ru"},
	{"1", "en"}, // US/CA
}

// DetectByPhone guesses a language from the leading digits of a phone number
// or account identifier. Non-digit characters are stripped first.
func DetectByPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	for _, r := range rules {
		if strings.HasPrefix(digits, r.prefix) {
			return r.lang
		}
	}
	return "en"
}

var helpWords = map[string][3]string{
	"en": {"menu", "show owner", "support info"},
	"es": {"menú", "dueño", "pagos"},
	"pt": {"menu", "dono", "pagamento"},
	"fr": {"menu", "propriétaire", "paiement"},
	"de": {"Menü", "Besitzer", "Zahlung"},
	"hi": {"मेनू", "मालिक", "भुगतान"},
	"id": {"menu", "pemilik", "pembayaran"},
	"it": {"menu", "proprietario", "pagamenti"},
	"ru": {"меню", "владелец", "оплата"},
	"tr": {"menü", "sahip", "ödeme"},
	"ja": {"メニュー", "オーナー", "支払い"},
	"ko": {"메뉴", "소유자", "결제"},
	"zh": {"菜单", "所有者", "付款"},
}

// Help renders the localized command menu for the given language.
func Help(lang, botName, prefix string) string {
	words, ok := helpWords[lang]
	if !ok {
		words = helpWords["en"]
	}
	return fmt.Sprintf("*%s* commands:\n• %shelp — %s\n• %sowner — %s\n• %spayment — %s\n",
		botName, prefix, words[0], prefix, words[1], prefix, words[2])
}
