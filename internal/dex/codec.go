package dex

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Current image schema version - increment when the Binary layout changes.
const imageSchemaVersion uint16 = 1

// ErrSchema reports an image written with a different schema version.
var ErrSchema = errors.New("unsupported image schema")

// Format selects the serialization of an image file.
type Format uint8

const (
	FormatMsgpack Format = iota + 1
	FormatCBOR
)

// String returns the string representation of Format.
func (f Format) String() string {
	switch f {
	case FormatMsgpack:
		return "msgpack"
	case FormatCBOR:
		return "cbor"
	default:
		return "unknown"
	}
}

// FormatForPath picks the format from the file extension: ".cbor" selects
// CBOR, anything else msgpack.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		return FormatCBOR
	}
	return FormatMsgpack
}

type image struct {
	Schema uint16  `msgpack:"schema" cbor:"1,keyasint"`
	Binary *Binary `msgpack:"binary" cbor:"2,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dex: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Encode writes b to w in the given format.
func Encode(w io.Writer, b *Binary, format Format) error {
	img := image{Schema: imageSchemaVersion, Binary: b}
	switch format {
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(&img)
	case FormatCBOR:
		return cborEncMode.NewEncoder(w).Encode(&img)
	default:
		return fmt.Errorf("unknown image format: %v", format)
	}
}

// Decode reads a binary in the given format from r.
func Decode(r io.Reader, format Format) (*Binary, error) {
	var img image
	switch format {
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&img); err != nil {
			return nil, fmt.Errorf("decode msgpack image: %w", err)
		}
	case FormatCBOR:
		if err := cbor.NewDecoder(r).Decode(&img); err != nil {
			return nil, fmt.Errorf("decode cbor image: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown image format: %v", format)
	}
	if img.Schema != imageSchemaVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrSchema, img.Schema, imageSchemaVersion)
	}
	if img.Binary == nil {
		return nil, fmt.Errorf("image has no binary")
	}
	return img.Binary, nil
}

// Load reads an image file. When the stored location is empty the file path
// becomes the binary's location.
func Load(path string) (*Binary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := Decode(bytes.NewReader(data), FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if b.Location == "" {
		b.Location = path
	}
	return b, nil
}

// Save writes b to path, replacing any existing file atomically.
func Save(path string, b *Binary) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmp)
	}()
	if err := Encode(f, b, FormatForPath(path)); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
