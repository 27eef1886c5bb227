// Package orphan finds blobs on disk that no document row references.
// Document deletion treats metadata as the source of truth and never
// retries blob removal, so the occasional orphan is expected; this is the
// offline cleanup pass for them.
package orphan

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"regis/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mustDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	return gdb
}

// Scan walks base and returns keys (slash-separated, relative to base) that
// are not in the referenced set.
func Scan(base string, referenced map[string]bool) ([]string, error) {
	var orphans []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !referenced[key] {
			orphans = append(orphans, key)
		}
		return nil
	})
	return orphans, err
}

// Run loads all referenced store paths from the document table and reports
// (or with remove=true, deletes) every unreferenced file under base.
func Run(base string, remove bool) error {
	gdb := mustDBFromEnv()

	var docs []models.Document
	if err := gdb.Find(&docs).Error; err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	referenced := make(map[string]bool, len(docs)*2)
	for _, d := range docs {
		referenced[d.StorePath] = true
		if d.PreviewPath != "" {
			referenced[d.PreviewPath] = true
		}
	}

	orphans, err := Scan(base, referenced)
	if err != nil {
		return fmt.Errorf("scan %s: %w", base, err)
	}
	for _, key := range orphans {
		if remove {
			if err := os.Remove(filepath.Join(base, filepath.FromSlash(key))); err != nil {
				log.Printf("remove %s: %v", key, err)
				continue
			}
			fmt.Printf("removed orphan %s\n", key)
		} else {
			fmt.Printf("orphan %s\n", key)
		}
	}
	fmt.Printf("%d referenced, %d orphaned\n", len(referenced), len(orphans))
	return nil
}
