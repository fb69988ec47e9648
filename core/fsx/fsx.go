package fsx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// WriteFileAtomic publishes content at path via a staged temp file and
// rename, so a partially written artifact is never observable. On
// failure the previously published file, if any, is left untouched.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	parent := filepath.Dir(path)
	base := filepath.Base(path)

	staging, err := os.CreateTemp(parent, "."+base+".stage-*")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	stagingPath := staging.Name()
	published := false
	defer func() {
		if !published {
			_ = os.Remove(stagingPath)
		}
	}()

	if err := writeAndClose(staging, content, mode); err != nil {
		return err
	}
	if err := rename(stagingPath, path); err != nil {
		return err
	}
	published = true

	// Best-effort durability for the rename itself.
	if dirHandle, err := os.Open(parent); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}
	return nil
}

func writeAndClose(file *os.File, content []byte, mode os.FileMode) error {
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync staging file: %w", err)
	}
	if err := file.Chmod(mode); err != nil {
		_ = file.Close()
		return fmt.Errorf("chmod staging file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}
	return nil
}

func rename(stagingPath, path string) error {
	err := os.Rename(stagingPath, path)
	if err == nil {
		return nil
	}
	if runtime.GOOS != "windows" {
		return fmt.Errorf("publish staged file: %w", err)
	}
	if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("remove destination before rename: %w", removeErr)
	}
	if renameErr := os.Rename(stagingPath, path); renameErr != nil {
		return fmt.Errorf("publish staged file after remove: %w", renameErr)
	}
	return nil
}
