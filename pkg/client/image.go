package client

import (
	"encoding/base64"
	"os"
)

type imageKind int

const (
	imageNone imageKind = iota
	imageFile
	imageBase64
)

// ImageSource is the input image of an image-to-image request: either a
// file on disk or data that is already base64 encoded.
type ImageSource struct {
	kind  imageKind
	value string
}

// ImageFromFile uses the contents of the file at path.
func ImageFromFile(path string) ImageSource {
	return ImageSource{kind: imageFile, value: path}
}

// ImageFromBase64 uses b64 verbatim.
func ImageFromBase64(b64 string) ImageSource {
	return ImageSource{kind: imageBase64, value: b64}
}

// ImageFromBytes encodes data.
func ImageFromBytes(data []byte) ImageSource {
	return ImageFromBase64(base64.StdEncoding.EncodeToString(data))
}

// ImageFromString picks the source kind by looking at the filesystem: if s
// names an existing regular file it is read as a file, otherwise s is taken
// as base64 data. A base64 string that happens to be a valid path is
// therefore treated as a file.
func ImageFromString(s string) ImageSource {
	if info, err := os.Stat(s); err == nil && info.Mode().IsRegular() {
		return ImageFromFile(s)
	}
	return ImageFromBase64(s)
}

// IsFile reports whether the source reads from disk.
func (s ImageSource) IsFile() bool {
	return s.kind == imageFile
}

// String returns the path or the base64 data.
func (s ImageSource) String() string {
	return s.value
}

// Encode returns the base64 representation, reading the file when needed.
func (s ImageSource) Encode() (string, error) {
	switch s.kind {
	case imageFile:
		data, err := os.ReadFile(s.value)
		if err != nil {
			return "", &InvalidArgumentError{Argument: "image", Value: s.value, Message: "cannot read image file", Err: err}
		}
		return base64.StdEncoding.EncodeToString(data), nil
	case imageBase64:
		return s.value, nil
	default:
		return "", &InvalidArgumentError{Argument: "image", Message: "no image given"}
	}
}
