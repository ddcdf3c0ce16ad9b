package setor

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Recursos Humanos", RH},
		{"rh", RH},
		{"RH - Folha de Pagamento", RH},
		{"Treinamento Operacional", Treinamento},
		{"treinamento", Treinamento},
		{"Centro de Treinamênto", Treinamento},
		{"Medicina do Trabalho", Medicina},
		{"medicina ocupacional", Medicina},
		{"Logística", Logistica},
		{"LOGISTICA", Logistica},
		{"", ""},
		{"Suprimentos", "SUPRIMENTOS"},
	}
	for _, tc := range cases {
		if got := Resolve(tc.in); got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_FoldsAccentsAndStripsSymbols(t *testing.T) {
	if got := Normalize("Logística - Depósito"); got != "LOGISTICADEPOSITO" {
		t.Fatalf("unexpected normalization: %q", got)
	}
	if got := Normalize("  médico  "); got != "MEDICO" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	// Training outranks the RH substring check even when both would match.
	if got := Resolve("RH Treinamento"); got != Treinamento {
		t.Fatalf("Resolve = %q, want %q", got, Treinamento)
	}
}
