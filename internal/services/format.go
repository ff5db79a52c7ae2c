package services

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// brl prints amounts the way ledger descriptions show them to users.
var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders centavos as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	frac := strconv.FormatInt(100+cents%100, 10)[1:]
	return sign + brl.Sprintf("R$ %d", cents/100) + "," + frac
}
