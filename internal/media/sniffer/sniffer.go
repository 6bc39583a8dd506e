package sniffer

import (
	"bytes"
	"errors"
	"mime"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
)

var (
	ErrUnknownType       = errors.New("unknown media type")
	ErrExtension         = errors.New("file extension not allowed")
	ErrExtensionMismatch = errors.New("file extension does not match content")
	ErrDeclaredMismatch  = errors.New("declared content type does not match content")
)

type Result struct {
	Type MediaType
	MIME string
}

// allowed extensions and the media type each one promises
var extensionTypes = map[string]MediaType{
	".jpg":  TypeJPEG,
	".jpeg": TypeJPEG,
	".png":  TypePNG,
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	if isJPEG(head) {
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	}
	if isPNG(head) {
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	}

	return Result{}, ErrUnknownType
}

// Check sniffs data and makes sure the filename extension and the declared
// content type (when meaningful) agree with what was detected.
func Check(filename string, declared string, data []byte) (Result, error) {
	promised, ok := extensionTypes[strings.ToLower(extension(filename))]
	if !ok {
		return Result{}, ErrExtension
	}

	result, err := DetectHead(data)
	if err != nil {
		return Result{}, err
	}
	if result.Type != promised {
		return Result{}, ErrExtensionMismatch
	}

	if declared = NormalizeMIME(declared); declared != "" && declared != result.MIME {
		return Result{}, ErrDeclaredMismatch
	}
	return result, nil
}

// NormalizeMIME strips parameters and maps aliases. Generic types carry no
// claim and come back empty.
func NormalizeMIME(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	switch strings.ToLower(mediaType) {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "application/octet-stream", "binary/octet-stream":
		return ""
	default:
		return strings.ToLower(mediaType)
	}
}

func extension(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return ""
	}
	return filename[idx:]
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}
