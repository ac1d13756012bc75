package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"
)

var csvHeader = []string{"at", "actor_id", "actor_email", "action", "resource", "resource_id", "diocese_id", "meta"}

// WriteCSV encodes entries with a header row.
func WriteCSV(rows []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range rows {
		meta := ""
		if len(e.Meta) > 0 {
			raw, err := json.Marshal(e.Meta)
			if err != nil {
				return nil, err
			}
			meta = string(raw)
		}
		record := []string{
			e.At.UTC().Format(time.RFC3339),
			e.ActorID,
			deref(e.ActorEmail),
			e.Action,
			e.Resource,
			e.ResourceID,
			deref(e.DioceseID),
			meta,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
