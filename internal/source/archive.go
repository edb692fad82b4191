// Package source implements the postal data sources: an HTTP download, a local
// file and a SQL table. Each returns the dataset as raw geonames-layout bytes.
package source

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// DefaultMember is the file read out of a geonames country archive.
const DefaultMember = "US.txt"

var zipMagic = []byte("PK\x03\x04")

func isZip(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// unpack returns data unchanged unless it is a zip archive, in which case it
// returns the contents of member (or DefaultMember). Archives from geonames
// also carry a readme.txt, which is ignored.
func unpack(data []byte, member string) ([]byte, error) {
	if !isZip(data) {
		return data, nil
	}
	if member == "" {
		member = DefaultMember
	}

	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("could not unzip postal data: %w", err)
	}

	for _, f := range zipReader.File {
		if !strings.EqualFold(path.Base(f.Name), member) {
			continue
		}
		return readMember(f)
	}
	return nil, fmt.Errorf("archive has no %s member", member)
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open %s in archive: %w", f.Name, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("could not read %s in archive: %w", f.Name, err)
	}
	if len(body) == 0 {
		return nil, errors.New(f.Name + " is empty")
	}
	return body, nil
}
