package geneindex

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Save writes the index as a two-column CSV (gene_id,index). The file sits
// next to the distance matrix so the matrix can be reopened by a later
// process without rebuilding the universe.
func (x *Index) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create gene index file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"gene_id", "index"}); err != nil {
		return err
	}
	for i, id := range x.ids {
		if err := w.Write([]string{id, strconv.Itoa(i)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// Load reopens a saved index. Positions must be contiguous and match the
// row order of the file, since they define matrix offsets.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gene index file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read gene index file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("gene index file %s is empty", path)
	}

	rows := records
	if records[0][0] == "gene_id" {
		rows = records[1:]
	}

	ids := make([]string, len(rows))
	position := make(map[string]int, len(rows))
	for i, rec := range rows {
		if len(rec) < 2 {
			return nil, fmt.Errorf("gene index file %s: malformed row %d", path, i)
		}
		pos, err := strconv.Atoi(rec[1])
		if err != nil || pos != i {
			return nil, fmt.Errorf("gene index file %s: non-contiguous position at row %d", path, i)
		}
		ids[i] = rec[0]
		position[rec[0]] = i
	}

	return &Index{ids: ids, position: position}, nil
}
