package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PIX key types accepted for withdrawals.
const (
	PixKeyCPF    = "cpf"
	PixKeyCNPJ   = "cnpj"
	PixKeyEmail  = "email"
	PixKeyPhone  = "phone"
	PixKeyRandom = "random"
)

var (
	emailRE  = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	nonDigit = regexp.MustCompile(`\D`)
)

// NormalizePixKey returns the canonical form of key for keyType: digits only
// for CPF and CNPJ, lower case for e-mail and random keys, and +55 followed
// by digits for phones. It returns "" when key is not valid for keyType.
func NormalizePixKey(keyType, key string) string {
	key = strings.TrimSpace(key)
	switch strings.ToLower(keyType) {
	case PixKeyCPF:
		d := nonDigit.ReplaceAllString(key, "")
		if validCPF(d) {
			return d
		}
	case PixKeyCNPJ:
		d := nonDigit.ReplaceAllString(key, "")
		if validCNPJ(d) {
			return d
		}
	case PixKeyEmail:
		if len(key) <= 77 && emailRE.MatchString(key) {
			return strings.ToLower(key)
		}
	case PixKeyPhone:
		d := nonDigit.ReplaceAllString(key, "")
		if strings.HasPrefix(d, "55") && (len(d) == 12 || len(d) == 13) {
			d = d[2:]
		}
		if len(d) == 10 || len(d) == 11 {
			return "+55" + d
		}
	case PixKeyRandom:
		if u, err := uuid.Parse(key); err == nil {
			return u.String()
		}
	}
	return ""
}

// ValidPixKey reports whether key is acceptable for keyType.
func ValidPixKey(keyType, key string) bool { return NormalizePixKey(keyType, key) != "" }

func allSame(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}

func validCPF(d string) bool {
	if len(d) != 11 || allSame(d) {
		return false
	}
	return checkDigit(d[:9], 10) == int(d[9]-'0') && checkDigit(d[:10], 11) == int(d[10]-'0')
}

// checkDigit computes a CPF verifier digit with weights starting at w.
func checkDigit(d string, w int) int {
	sum := 0
	for i := 0; i < len(d); i++ {
		sum += int(d[i]-'0') * (w - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		r = 0
	}
	return r
}

func validCNPJ(d string) bool {
	if len(d) != 14 || allSame(d) {
		return false
	}
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return cnpjDigit(d[:12], w1) == int(d[12]-'0') && cnpjDigit(d[:13], w2) == int(d[13]-'0')
}

func cnpjDigit(d string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(d[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}
