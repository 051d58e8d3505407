package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	resultsHeader   = "📊 Resultados encontrados:"
	noResultsNotice = "❌ Nenhum resultado encontrado para sua consulta."
)

// FormatRows renders query results as the raw-data block fed to the
// humanization chain, one JSON object per row with columns in stable order.
// An empty result set yields the "no results" sentinel.
func FormatRows(rows []Row) string {
	if len(rows) == 0 {
		return noResultsNotice
	}

	var sb strings.Builder

	sb.WriteString(resultsHeader)
	sb.WriteByte('\n')

	for _, row := range rows {
		sb.WriteString(marshalRow(row))
		sb.WriteByte('\n')
	}

	return sb.String()
}

func marshalRow(row Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	sb.WriteByte('{')

	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}

		name, _ := json.Marshal(k)
		sb.Write(name)
		sb.WriteByte(':')

		value, err := json.Marshal(row[k])
		if err != nil {
			// Driver types that json cannot encode fall back to their
			// string form.
			value, _ = json.Marshal(fmt.Sprint(row[k]))
		}

		sb.Write(value)
	}

	sb.WriteByte('}')

	return sb.String()
}
