// Package models contains the data types shared by the index, search and drive packages.
package models

import (
	"path"
	"strings"
)

// Extension is a lower-cased file suffix including the dot (".pdf").
// Names ending in a recognized suffix canonicalize to one of the constants
// below; anything else keeps its raw suffix.
type Extension string

const (
	ExtPDF  Extension = ".pdf"
	ExtHWP  Extension = ".hwp"
	ExtHWPX Extension = ".hwpx"
	ExtPPT  Extension = ".ppt"
	ExtPPTX Extension = ".pptx"
	ExtDOCX Extension = ".docx"
	ExtXLSX Extension = ".xlsx"
	ExtTXT  Extension = ".txt"
)

// KnownExtensions is the closed set of document formats the search understands.
var KnownExtensions = []Extension{ExtPDF, ExtHWP, ExtHWPX, ExtPPT, ExtPPTX, ExtDOCX, ExtXLSX, ExtTXT}

// ExtensionOf returns the canonical extension of a file name.
func ExtensionOf(name string) Extension {
	n := strings.ToLower(name)
	for _, ext := range KnownExtensions {
		if strings.HasSuffix(n, string(ext)) {
			return ext
		}
	}
	return Extension(path.Ext(n))
}

// Known reports whether e is in KnownExtensions.
func (e Extension) Known() bool {
	for _, k := range KnownExtensions {
		if k == e {
			return true
		}
	}
	return false
}

// ItemType distinguishes folders from files in remote listings.
type ItemType string

const (
	TypeFolder ItemType = "folder"
	TypeFile   ItemType = "file"
)

// Item is one row of a remote directory listing or search.
type Item struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Type ItemType `json:"type"`
}

// Drive is a top-level remote storage container.
type Drive struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// FileEntry is one file leaf of an index snapshot. Path is the slash-terminated
// ancestor path relative to the drive root; RootID is the top-level scope
// folder the entry was first discovered under.
type FileEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Extension Extension `json:"ext"`
	RootID    string    `json:"root_id,omitempty"`
}

// NewFileEntry builds an entry, deriving its extension from name.
func NewFileEntry(id, name, parentPath, rootID string) FileEntry {
	if parentPath == "" {
		parentPath = "/"
	}
	return FileEntry{
		ID:        id,
		Name:      name,
		Path:      parentPath,
		Extension: ExtensionOf(name),
		RootID:    rootID,
	}
}
