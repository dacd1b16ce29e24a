/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
)

// Format selects the export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Export writes events matching opts to filename in the given format.
func (m *Manager) Export(filename string, format Format, opts QueryOptions) error {
	events := m.Query(opts)
	switch format {
	case FormatJSON:
		return exportJSON(filename, events)
	case FormatCSV:
		return exportCSV(filename, events)
	default:
		return fmt.Errorf("audit: unknown export format %q", format)
	}
}

func exportJSON(filename string, events []Event) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("audit: create export file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("audit: encode JSON export: %w", err)
	}
	log.Info("exported audit log", "format", "json", "filename", filename, "count", len(events))
	return nil
}

func exportCSV(filename string, events []Event) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("audit: create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"timestamp", "event_type", "graph_id", "peer_iid", "target_id", "detail", "metadata"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("audit: write CSV header: %w", err)
	}
	for _, ev := range events {
		metadata := ""
		if len(ev.Metadata) > 0 {
			if b, err := json.Marshal(ev.Metadata); err == nil {
				metadata = string(b)
			}
		}
		row := []string{
			ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			string(ev.EventType), ev.GraphID, ev.PeerIID, ev.TargetID, ev.Detail, metadata,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("audit: write CSV row: %w", err)
		}
	}
	log.Info("exported audit log", "format", "csv", "filename", filename, "count", len(events))
	return nil
}
