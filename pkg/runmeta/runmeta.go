// Package runmeta records the outcome of an apply run in the destination
// root, so later runs (and operators) can see when the mirror was last
// brought up to date and from where.
package runmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pathworks.io/netmirror/pkg/util"
)

// MetaFileName is the name of the mirror metadata file.
const MetaFileName = ".netmirror.meta.json"

// Content holds the contents of the metadata file.
type Content struct {
	Version      string    `json:"version"`
	TimestampUTC time.Time `json:"timestampUTC"`
	Source       string    `json:"source"`
	FilesAdded   int64     `json:"filesAdded"`
	FilesUpdated int64     `json:"filesUpdated"`
	FilesSkipped int64     `json:"filesSkipped"`
	BytesWritten int64     `json:"bytesWritten"`
}

// Write creates or overwrites the .netmirror.meta.json file in a given directory.
func Write(dirPath string, content *Content) error {
	metaFilePath := filepath.Join(dirPath, MetaFileName)
	jsonData, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal meta data: %w", err)
	}

	if err := os.WriteFile(metaFilePath, jsonData, util.UserGroupWritableFilePerms); err != nil {
		return fmt.Errorf("could not write meta file %s: %w", metaFilePath, err)
	}

	return nil
}

// Read opens and parses the .netmirror.meta.json file in a given directory.
// It returns the parsed metadata or an error if the file cannot be read or parsed.
func Read(dirPath string) (Content, error) {
	metaFilePath := filepath.Join(dirPath, MetaFileName)
	metaFile, err := os.Open(metaFilePath)
	if err != nil {
		// Note: os.IsNotExist errors are handled by the caller.
		return Content{}, err // Return the original error so os.IsNotExist works.
	}
	defer metaFile.Close()

	var content Content
	decoder := json.NewDecoder(metaFile)
	if err := decoder.Decode(&content); err != nil {
		return Content{}, fmt.Errorf("could not parse meta file %s: %w. It may be corrupt", metaFilePath, err)
	}

	return content, nil
}
