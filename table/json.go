package table

import (
	"context"
	"encoding/json"
	"os"
	"time"

	dberrors "github.com/relvault/relvault/core/errors"
	"github.com/relvault/relvault/predicate"
)

// ExportOptions configures ExportToJson.
type ExportOptions struct {
	Where    predicate.Predicate
	Select   []string
	FilePath string // if set, written to disk and ExportToJson returns ""
	Pretty   bool
}

// exportDocument is the §6 per-table JSON export shape.
type exportDocument struct {
	Table    string           `json:"table"`
	Exported string           `json:"exported"`
	Count    int              `json:"count"`
	Data     []map[string]any `json:"data"`
}

// ExportToJson serializes matching rows to the §6 export shape. If
// FilePath is set, the document is written there and "" is returned;
// otherwise the JSON text is returned.
func (t *Table) ExportToJson(ctx context.Context, opts ExportOptions) (string, error) {
	rows, err := t.Select(ctx, SelectOptions{Where: opts.Where, Select: opts.Select})
	if err != nil {
		return "", err
	}

	doc := exportDocument{
		Table:    t.schema.Name,
		Exported: time.Now().UTC().Format(time.RFC3339),
		Count:    len(rows),
		Data:     rows,
	}

	var (
		out []byte
	)
	if opts.Pretty {
		out, err = json.MarshalIndent(doc, "", "  ")
	} else {
		out, err = json.Marshal(doc)
	}
	if err != nil {
		return "", err
	}

	if opts.FilePath != "" {
		if err := os.WriteFile(opts.FilePath, out, 0o644); err != nil {
			return "", dberrors.NewIO("write", opts.FilePath, err)
		}
		return "", nil
	}
	return string(out), nil
}

// ConflictResolution controls how ImportFromJson and SyncWith handle
// existing rows.
type ConflictResolution string

const (
	Replace ConflictResolution = "replace"
	Update  ConflictResolution = "update"
	Ignore  ConflictResolution = "ignore"
	Fail    ConflictResolution = "fail"
)

// ImportOptions configures ImportFromJson.
type ImportOptions struct {
	ConflictResolution ConflictResolution
	BatchSize          int
	ValidateSchema     bool
}

// ImportResult reports the outcome of ImportFromJson.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}

// ImportFromJson loads rows from JSON text (an export document or a bare
// array of rows) or an already-decoded []map[string]any and inserts them,
// per §4.4. `replace`
// upserts keyed by the primary column if one exists, else plain insert;
// `fail` rethrows on the first batch error; `ignore` accumulates errors
// per batch and continues.
func (t *Table) ImportFromJson(ctx context.Context, jsonOrRows any, opts ImportOptions) (ImportResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.ConflictResolution == "" {
		opts.ConflictResolution = Replace
	}

	rows, err := decodeImportRows(jsonOrRows)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	primaryCols := t.schema.PrimaryColumns()

	for start := 0; start < len(rows); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		var batchErr error
		if opts.ConflictResolution == Replace && len(primaryCols) > 0 {
			conflictCols := make([]string, len(primaryCols))
			for i, c := range primaryCols {
				conflictCols[i] = c.Name
			}
			batchErr = t.Upsert(ctx, batch, conflictCols, nil)
		} else {
			batchErr = t.Insert(ctx, batch)
		}

		if batchErr != nil {
			switch opts.ConflictResolution {
			case Fail:
				return result, batchErr
			default:
				result.Skipped += len(batch)
				result.Errors = append(result.Errors, batchErr.Error())
				continue
			}
		}
		result.Imported += len(batch)
	}
	return result, nil
}

func decodeImportRows(v any) ([]map[string]any, error) {
	switch val := v.(type) {
	case []map[string]any:
		return val, nil
	case string:
		var doc struct {
			Data []map[string]any `json:"data"`
		}
		if err := json.Unmarshal([]byte(val), &doc); err == nil && doc.Data != nil {
			return doc.Data, nil
		}
		var rows []map[string]any
		if err := json.Unmarshal([]byte(val), &rows); err != nil {
			return nil, dberrors.NewParse("JSON", "", err.Error())
		}
		return rows, nil
	default:
		return nil, &dberrors.InvalidArgumentError{Operation: "importFromJson", Message: "unsupported input type"}
	}
}

// SyncOptions configures SyncWith.
type SyncOptions struct {
	KeyColumn          string
	ConflictResolution ConflictResolution // replace (default), update, or ignore
	BatchSize          int
	OnProgress         func(processed, total int)
}

// SyncResult reports the outcome of SyncWith.
type SyncResult struct {
	Inserted int
	Updated  int
	Skipped  int
}

// SyncWith copies rows from source into t keyed by KeyColumn, per §4.4:
// absent rows are inserted; present rows follow ConflictResolution
// (replace: full overwrite, update: only non-nil source fields, ignore:
// leave target unchanged).
func (t *Table) SyncWith(ctx context.Context, source *Table, opts SyncOptions) (SyncResult, error) {
	if opts.ConflictResolution == "" {
		opts.ConflictResolution = Replace
	}

	sourceRows, err := source.Select(ctx, SelectOptions{})
	if err != nil {
		return SyncResult{}, err
	}

	var result SyncResult
	for i, row := range sourceRows {
		keyVal, ok := row[opts.KeyColumn]
		if !ok {
			result.Skipped++
			continue
		}

		existing, err := t.FindFirst(ctx, SelectOptions{Where: predicate.Predicate{Eq: map[string]any{opts.KeyColumn: keyVal}}})
		if err != nil {
			return result, err
		}

		if existing == nil {
			if err := t.Insert(ctx, []map[string]any{row}); err != nil {
				return result, err
			}
			result.Inserted++
		} else {
			switch opts.ConflictResolution {
			case Ignore:
				result.Skipped++
			case Update:
				values := make(map[string]any)
				for k, v := range row {
					if k == opts.KeyColumn || v == nil {
						continue
					}
					values[k] = v
				}
				if len(values) == 0 {
					result.Skipped++
					continue
				}
				if _, err := t.Update(ctx, predicate.Predicate{Eq: map[string]any{opts.KeyColumn: keyVal}}, values); err != nil {
					return result, err
				}
				result.Updated++
			default: // replace
				if _, err := t.Update(ctx, predicate.Predicate{Eq: map[string]any{opts.KeyColumn: keyVal}}, row); err != nil {
					return result, err
				}
				result.Updated++
			}
		}

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(sourceRows))
		}
	}
	return result, nil
}
