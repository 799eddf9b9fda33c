// Package photo handles the ingredient photo: the data URI the UI sends, uploads from a multipart
// form, and shrinking large images before they are sent to the model.
package photo

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
)

var (
	ErrMalformedDataURI = errors.New("photo must be a data URI of the form data:<mimetype>;base64,<payload>")
	ErrNotImage         = errors.New("photo is not an image")
	ErrUnsupportedType  = errors.New("invalid file type, only JPEG, JPG, PNG and WEBP images are allowed")
)

var dataURIPattern = regexp.MustCompile(`^data:([a-zA-Z0-9!#$&^_.+-]+/[a-zA-Z0-9!#$&^_.+-]+);base64,(.+)$`)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".webp": true,
}

// Photo is a decoded image payload with its MIME type.
type Photo struct {
	MIMEType string
	Data     []byte
}

// Parse decodes a data URI. The declared type must be image/* and the payload must be standard Base64
// whose content sniffs as an image.
func Parse(dataURI string) (*Photo, error) {
	m := dataURIPattern.FindStringSubmatch(strings.TrimSpace(dataURI))
	if m == nil {
		return nil, ErrMalformedDataURI
	}
	mimeType := strings.ToLower(m[1])
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: declared type %s", ErrNotImage, mimeType)
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", ErrMalformedDataURI, err)
	}
	if detected := mimetype.Detect(data); !strings.HasPrefix(detected.String(), "image/") {
		return nil, fmt.Errorf("%w: content is %s", ErrNotImage, detected.String())
	}
	return &Photo{MIMEType: mimeType, Data: data}, nil
}

// FromUpload builds a Photo from an uploaded file. The extension must be one of the allowed image
// extensions; the MIME type is taken from the content.
func FromUpload(filename string, data []byte) (*Photo, error) {
	extension := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[extension] {
		return nil, ErrUnsupportedType
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, fmt.Errorf("%w: content is %s", ErrNotImage, detected.String())
	}
	return &Photo{MIMEType: detected.String(), Data: data}, nil
}

// DataURI encodes the photo back into its transport form.
func (p *Photo) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Downscale resizes JPEG and PNG photos wider than maxWidth, keeping the aspect ratio. Other formats,
// photos already small enough, and maxWidth <= 0 return p unchanged.
func Downscale(p *Photo, maxWidth uint) (*Photo, error) {
	if maxWidth == 0 || (p.MIMEType != "image/jpeg" && p.MIMEType != "image/png") {
		return p, nil
	}

	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if uint(img.Bounds().Dx()) <= maxWidth {
		return p, nil
	}

	img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch p.MIMEType {
	case "image/jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "image/png":
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &Photo{MIMEType: p.MIMEType, Data: buf.Bytes()}, nil
}
