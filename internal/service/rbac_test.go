package service

import (
	"testing"

	"github.com/ismagro/portal/internal/repo"
)

func TestAutorizar(t *testing.T) {
	casos := []struct {
		papel      string
		permitidos []string
		esperado   bool
	}{
		{repo.RoleAdmin, PapeisGestao, true},
		{repo.RoleRH, PapeisGestao, true},
		{repo.RoleCompliance, PapeisGestao, false},
		{repo.RoleColaborador, PapeisGestao, false},
		{"  ADMIN  ", PapeisGestao, true},
		{"", PapeisGestao, false},
	}

	for _, c := range casos {
		if got := Autorizar(c.papel, c.permitidos); got != c.esperado {
			t.Errorf("Autorizar(%q) = %v, expected %v", c.papel, got, c.esperado)
		}
	}
}

func TestSuporte(t *testing.T) {
	for _, papel := range []string{repo.RoleAdmin, repo.RoleRH, repo.RoleCompliance} {
		if !Suporte(papel) {
			t.Errorf("expected %q to belong to support", papel)
		}
	}
	if Suporte(repo.RoleColaborador) {
		t.Error("colaborador must not belong to support")
	}
}
