package storage

import (
	"strings"
	"testing"
)

func TestFormatRows(t *testing.T) {
	rows := []Row{
		{"TURNO": "A", "QTDE": 500},
		{"TURNO": "B", "QTDE": 320},
	}

	got := FormatRows(rows)

	if !strings.HasPrefix(got, "📊 Resultados encontrados:\n") {
		t.Errorf("FormatRows() missing results header: %q", got)
	}

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("FormatRows() produced %d lines, want 3", len(lines))
	}

	if lines[1] != `{"QTDE":500,"TURNO":"A"}` {
		t.Errorf("row 1 = %q, want sorted-column JSON", lines[1])
	}

	if lines[2] != `{"QTDE":320,"TURNO":"B"}` {
		t.Errorf("row 2 = %q, want sorted-column JSON", lines[2])
	}
}

func TestFormatRowsEmpty(t *testing.T) {
	got := FormatRows(nil)

	if got != "❌ Nenhum resultado encontrado para sua consulta." {
		t.Errorf("FormatRows(nil) = %q, want no-results sentinel", got)
	}
}

func TestFormatRowsNilValue(t *testing.T) {
	got := FormatRows([]Row{{"COL": nil}})

	if !strings.Contains(got, `{"COL":null}`) {
		t.Errorf("FormatRows() with nil value = %q, want null", got)
	}
}
