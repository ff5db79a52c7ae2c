package domain

import "testing"

func TestNormalizePixKey(t *testing.T) {
	cases := []struct {
		name, typ, key, want string
	}{
		{"cpf formatted", PixKeyCPF, "529.982.247-25", "52998224725"},
		{"cpf bad digit", PixKeyCPF, "529.982.247-26", ""},
		{"cpf repeated", PixKeyCPF, "111.111.111-11", ""},
		{"cnpj formatted", PixKeyCNPJ, "11.222.333/0001-81", "11222333000181"},
		{"cnpj bad digit", PixKeyCNPJ, "11222333000182", ""},
		{"email", PixKeyEmail, " Ana@Example.COM ", "ana@example.com"},
		{"email missing tld", PixKeyEmail, "ana@example", ""},
		{"phone with country", PixKeyPhone, "+55 (11) 98765-4321", "+5511987654321"},
		{"phone local", PixKeyPhone, "11987654321", "+5511987654321"},
		{"phone short", PixKeyPhone, "98765", ""},
		{"random", PixKeyRandom, "123E4567-E89B-12D3-A456-426614174000", "123e4567-e89b-12d3-a456-426614174000"},
		{"random garbage", PixKeyRandom, "not-a-uuid", ""},
		{"unknown type", "iban", "DE00", ""},
		{"type case", "CPF", "52998224725", "52998224725"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizePixKey(tc.typ, tc.key); got != tc.want {
				t.Fatalf("NormalizePixKey(%q, %q) = %q; want %q", tc.typ, tc.key, got, tc.want)
			}
			if ValidPixKey(tc.typ, tc.key) != (tc.want != "") {
				t.Fatalf("ValidPixKey disagrees with NormalizePixKey")
			}
		})
	}
}
