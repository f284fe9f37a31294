package main

import (
	"archive/tar"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/mtzanidakis/digifuse/internal/config"
	"github.com/mtzanidakis/digifuse/internal/store"
)

const archiveDBName = "digifuse.db"

func newBackupCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a zstd-compressed tar snapshot of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			size, err := runBackup(cfg.Store, outputPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup complete: %s\n", formatSize(size))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "file", "f", "", "output archive (.tar.zst)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var (
		inputPath string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the database from a backup archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := runRestore(cfg.Store.Path, inputPath, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restore complete: %s\n", cfg.Store.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "backup archive (.tar.zst)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing database")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// runBackup snapshots the store into a temporary file and archives it. It
// returns the size of the written archive.
func runBackup(cfg config.StoreConfig, outputPath string) (int64, error) {
	db, err := store.New(cfg)
	if err != nil {
		return 0, fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	tmp, err := os.MkdirTemp("", "digifuse-backup-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	snapshot := filepath.Join(tmp, archiveDBName)
	if err := db.Snapshot(snapshot); err != nil {
		return 0, err
	}
	slog.Info("database snapshot taken", "path", cfg.Path)

	if err := writeArchive(outputPath, snapshot); err != nil {
		return 0, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	return info.Size(), nil
}

func writeArchive(outputPath, dbPath string) error {
	src, err := os.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	hdr := &tar.Header{
		Name:     archiveDBName,
		Typeflag: tar.TypeReg,
		Mode:     0o600,
		Size:     info.Size(),
		ModTime:  time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("write tar data: %w", err)
	}

	// Close everything explicitly to catch write errors
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// runRestore extracts the database from an archive to dbPath. An existing
// database is only replaced when force is set.
func runRestore(dbPath, inputPath string, force bool) error {
	if _, err := os.Stat(dbPath); err == nil && !force {
		return fmt.Errorf("database %s already exists, add --force to replace it", dbPath)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := dbPath + ".restore"
	if err := extractDatabase(inputPath, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	// Stale WAL files belong to the database being replaced.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			_ = os.Remove(tmp)
			return fmt.Errorf("remove %s: %w", dbPath+suffix, err)
		}
	}

	if err := os.Rename(tmp, dbPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace database: %w", err)
	}
	slog.Info("database restored", "path", dbPath)
	return nil
}

func extractDatabase(inputPath, dest string) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("archive does not contain %s", archiveDBName)
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		if !isDatabaseEntry(hdr) {
			continue
		}

		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("create %s: %w", dest, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("write database: %w", err)
		}
		return out.Close()
	}
}

func isDatabaseEntry(hdr *tar.Header) bool {
	return hdr.Typeflag == tar.TypeReg && path.Clean("/"+hdr.Name) == "/"+archiveDBName
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
