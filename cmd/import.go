package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IUseTheSchwartz/flowstatemanager/internal/importer"
)

var (
	importFilePath string
	importLeadType string
	importUserID   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		req := importer.Request{
			OriginalFilename: filepath.Base(importFilePath),
			UserID:           importUserID,
			DefaultLeadType:  importLeadType,
		}

		switch strings.ToLower(filepath.Ext(importFilePath)) {
		case ".xlsx":
			rows, err := importer.ReadXLSX(importFilePath)
			if err != nil {
				return err
			}
			req.Rows = rows
		default:
			data, err := os.ReadFile(importFilePath)
			if err != nil {
				return eris.Wrap(err, "read csv file")
			}
			req.CSVText = string(data)
		}

		imp := importer.New(st, cfg.Import)
		res, err := imp.Import(ctx, req)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", importFilePath),
			zap.String("file_id", res.FileID),
			zap.Int("inserted", res.Inserted),
			zap.Int("skipped", res.Skipped),
		)
		return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX file (required)")
	importCmd.Flags().StringVar(&importLeadType, "lead-type", "", "default lead type for rows without one")
	importCmd.Flags().StringVar(&importUserID, "user", "", "uploading user recorded on the batch")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
