package service_test

import (
	"testing"

	"github.com/saadjs/nutrisync/internal/service"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Chicken Biryani":       "chicken biryani",
		"  Greek   Yogurt (2%) ": "greek yogurt 2",
		"Café au lait":          "caf au lait",
		"PB&J":                  "pbj",
		"":                      "",
		"!!!":                   "",
		"eggs,\ttoast":          "eggstoast",
	}
	for in, want := range cases {
		if got := service.NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
		if again := service.NormalizeName(service.NormalizeName(in)); again != want {
			t.Fatalf("NormalizeName not idempotent for %q: %q", in, again)
		}
	}
}
