// Package images turns inline base64 payloads and multipart uploads into validated image blobs.
package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"mime/multipart"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/storage"
)

// InlinePrefix marks a string value as an inline image
const InlinePrefix = "data:image"

const base64Separator = ";base64,"

const (
	MsgNotAFile     = "The submitted data was not a file. Check the encoding type on the form."
	MsgEmpty        = "The submitted file is empty."
	MsgInvalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
)

// MaxSize bounds the decoded size of an uploaded image
const MaxSize = 10 << 20

var formatHint = regexp.MustCompile(`^[a-z0-9.+-]+$`)

// allowedExts maps accepted file extensions and format hints to the format image.DecodeConfig reports
var allowedExts = map[string]string{
	"png":  "png",
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"gif":  "gif",
}

func extensionMessage(ext string) string {
	exts := make([]string, 0, len(allowedExts))
	for e := range allowedExts {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return fmt.Sprintf("File extension “%s” is not allowed. Allowed extensions are: %s.", ext, strings.Join(exts, ", "))
}

// Image is a decoded image ready to be stored
type Image struct {
	Data []byte
	// Ext is the detected format used as file extension, without the dot
	Ext string
}

// ContentType derives the MIME type from the extension
func (img *Image) ContentType() string {
	if ct := mime.TypeByExtension("." + img.Ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func invalid(msg string) error {
	return apierror.Validation(map[string][]string{"image": {msg}})
}

// IsInline reports whether s is an inline image descriptor
func IsInline(s string) bool {
	return strings.HasPrefix(s, InlinePrefix)
}

// DecodeInline decodes "data:image/<format>;base64,<payload>".
// Strings without the prefix are not files and are rejected like any other non-file value.
func DecodeInline(s string) (*Image, error) {
	if !IsInline(s) {
		return nil, invalid(MsgNotAFile)
	}
	descriptor, payload, ok := strings.Cut(s, base64Separator)
	if !ok {
		return nil, invalid(MsgNotAFile)
	}
	ext := strings.ToLower(descriptor[strings.LastIndex(descriptor, "/")+1:])
	if !formatHint.MatchString(ext) {
		return nil, invalid(MsgNotAFile)
	}
	if _, ok := allowedExts[ext]; !ok {
		return nil, invalid(extensionMessage(ext))
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, invalid(MsgInvalidImage)
	}
	return check(data, ext)
}

// FromUpload reads a multipart file upload
func FromUpload(fh *multipart.FileHeader) (*Image, error) {
	if fh.Size > MaxSize {
		return nil, invalid(MsgInvalidImage)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSize+1))
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fh.Filename), "."))
	if ext != "" {
		if _, ok := allowedExts[ext]; !ok {
			return nil, invalid(extensionMessage(ext))
		}
	}
	return check(data, ext)
}

// check makes sure data holds an image of an allowed format. The stored extension is
// always the detected format; a declared ext must name that same format.
func check(data []byte, ext string) (*Image, error) {
	if len(data) == 0 {
		return nil, invalid(MsgEmpty)
	}
	if len(data) > MaxSize {
		return nil, invalid(MsgInvalidImage)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, invalid(MsgInvalidImage)
	}
	if ext != "" && allowedExts[ext] != format {
		return nil, invalid(MsgInvalidImage)
	}
	if _, ok := allowedExts[format]; !ok {
		return nil, invalid(MsgInvalidImage)
	}
	return &Image{Data: data, Ext: format}, nil
}

// Save stores img under dir with a generated name and returns that name
func Save(ctx context.Context, store storage.Storage, dir string, img *Image) (string, error) {
	name := path.Join(dir, fmt.Sprintf("%s.%s", uuid.NewString(), img.Ext))
	if err := store.Save(ctx, name, bytes.NewReader(img.Data), img.ContentType()); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return name, nil
}
