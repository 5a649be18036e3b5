package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"campuscore/internal/importer"
	"campuscore/pkg/domain"
)

// ImportFormat selects the row reader used by Import.
type ImportFormat string

const (
	ImportCSV  ImportFormat = "csv"
	ImportXLSX ImportFormat = "xlsx"
)

// FormatForFilename picks the import format from a file extension.
func FormatForFilename(name string) ImportFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ImportXLSX
	default:
		return ImportCSV
	}
}

// Import reads rows from r and merges them with ImportRows.
func (s *Service) Import(ctx context.Context, r io.Reader, format ImportFormat) (importer.Result, error) {
	var rows []importer.Row
	var err error
	switch format {
	case ImportXLSX:
		rows, err = importer.ReadXLSX(r)
	case ImportCSV, "":
		rows, err = importer.ReadDelimited(r)
	default:
		return importer.Result{}, domain.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported import format %q", format)}
	}
	if err != nil {
		return importer.Result{}, domain.ValidationError{Field: "file", Reason: err.Error()}
	}
	return s.ImportRows(ctx, rows)
}

// ImportRows reconciles rows against the current campuses and persists the
// new campuses and bathrooms in one transaction. Existing records are never
// modified.
func (s *Service) ImportRows(ctx context.Context, rows []importer.Row) (importer.Result, error) {
	var res importer.Result
	err := s.run(ctx, "import.rows", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			res = importer.Reconcile(tx.Snapshot().ListCampuses(), rows, s.newID)
			for i, c := range res.NewCampuses {
				created, err := tx.CreateCampus(c)
				if err != nil {
					return fmt.Errorf("create campus %q: %w", c.Name, err)
				}
				res.NewCampuses[i] = created
			}
			for i, b := range res.NewBathrooms {
				created, err := tx.CreateBathroom(b)
				if err != nil {
					return fmt.Errorf("create bathroom %q: %w", b.Code, err)
				}
				res.NewBathrooms[i] = created
			}
			return nil
		})
	})
	if err != nil {
		return importer.Result{}, err
	}
	s.logger.InfoContext(ctx, "import merged",
		"campuses", len(res.NewCampuses),
		"bathrooms", len(res.NewBathrooms),
		"skipped", len(res.Skipped))
	return res, nil
}
