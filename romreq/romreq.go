// Package romreq implements the ROM manager handshake: a component
// declares what firmware or ROM images it needs via a Request, and a
// MachineBuilder resolves each request to a Source before the machine is
// built. A Source abstracts the different ways image bytes can arrive —
// a local file, an embedded byte slice (go:embed), or a streamed file too
// large to hold entirely in memory — behind a single io.ReadSeeker.
package romreq

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/embervale/machina/logger"
)

// Requirement describes how essential a requested ROM is to a component's
// operation.
type Requirement int

const (
	// Required means the component cannot function at all without the
	// image; the builder must fail if it cannot be resolved.
	Required Requirement = iota

	// Optional means the component degrades gracefully (for example, by
	// exposing open bus) if the image is absent.
	Optional

	// Sometimes means whether the image is needed depends on other
	// configuration discovered only once the component has been built
	// (for example, a cartridge mapper that needs a BIOS only in one of
	// its several operating modes).
	Sometimes
)

// Id names a requested ROM within a component's declarations.
type Id string

// ErrNoFilename is returned by NewSourceFromFilename when given an empty,
// or whitespace-only, filename.
var ErrNoFilename = errors.New("no filename")

// Source abstracts all the ways image data can be loaded into the
// emulation.
type Source struct {
	io.ReadSeeker

	// Name is a short, display-friendly identifier for this source.
	Name string

	// Filename is the path or URL the source was created from. For
	// embedded data this is whatever name the caller supplied.
	Filename string

	// HashSHA1 and HashMD5 hold the expected hash of the loaded data if
	// known in advance (checked on Open), or the computed hash of the
	// loaded data afterwards.
	HashSHA1 string
	HashMD5  string

	// Data holds the fully loaded bytes, once Open has returned. The
	// pointer-to-slice construct allows Source to be passed by value
	// while still seeing bytes loaded via a shared pointer.
	Data *[]byte

	data *bytes.Buffer

	// stream is non-nil only for sources opened with streaming enabled.
	// *stream is nil until Open succeeds.
	stream **os.File

	embedded bool
}

// NewSourceFromFilename is the preferred method of initialisation for the
// Source type when loading data from a file or URL. When streamed is
// true, the file is kept open and read incrementally via Read/Seek rather
// than being loaded entirely into memory by Open — appropriate for very
// large images.
func NewSourceFromFilename(filename string, streamed bool) (Source, error) {
	if strings.TrimSpace(filename) == "" {
		return Source{}, fmt.Errorf("romreq: %w", ErrNoFilename)
	}

	if !strings.HasPrefix(filename, "http://") && !strings.HasPrefix(filename, "https://") {
		abs, err := filepath.Abs(filename)
		if err == nil {
			filename = abs
		}
	}

	src := Source{
		Filename: filename,
		Name:     filepath.Base(filename),
	}

	data := make([]byte, 0)
	src.Data = &data

	if streamed {
		src.stream = new(*os.File)
	}

	return src, nil
}

// NewSourceFromData is the preferred method of initialisation for the
// Source type when loading data already held in memory, such as data
// embedded with go:embed.
func NewSourceFromData(name string, data []byte) (Source, error) {
	if len(data) == 0 {
		return Source{}, fmt.Errorf("romreq: embedded data for %q is empty", name)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Source{}, fmt.Errorf("romreq: no name given for embedded data")
	}

	return Source{
		Name:     name,
		Filename: name,
		Data:     &data,
		data:     bytes.NewBuffer(data),
		embedded: true,
		HashSHA1: fmt.Sprintf("%x", sha1.Sum(data)),
		HashMD5:  fmt.Sprintf("%x", md5.Sum(data)),
	}, nil
}

// Close should be called before disposing of a Source. It is a no-op
// for non-streamed and embedded sources.
//
// Implements the io.Closer interface.
func (src Source) Close() error {
	if src.stream == nil || *src.stream == nil {
		return nil
	}

	err := (**src.stream).Close()
	*src.stream = nil
	if err != nil {
		return fmt.Errorf("romreq: %w", err)
	}
	logger.Logf(logger.Allow, "romreq", "stream closed (%s)", src.Filename)

	return nil
}

// Read implements the io.Reader interface.
func (src Source) Read(p []byte) (int, error) {
	if src.stream == nil {
		return src.data.Read(p)
	}
	if *src.stream == nil {
		return 0, nil
	}
	return (*src.stream).Read(p)
}

// Seek implements the io.Seeker interface.
func (src Source) Seek(offset int64, whence int) (int64, error) {
	if src.stream == nil || *src.stream == nil {
		return 0, nil
	}
	return (*src.stream).Seek(offset, whence)
}

// Open loads the source's data. For a streamed source this opens the
// underlying file for incremental Read/Seek; for a non-streamed source it
// reads the whole file (or performs an HTTP GET, for http/https URLs)
// into Data. Embedded sources are already open and Open is a no-op for
// them. A mismatch between a previously-set HashSHA1/HashMD5 and the
// loaded data's actual hash is an error.
func (src *Source) Open() error {
	if src.embedded {
		return nil
	}

	if src.stream != nil {
		if err := src.Close(); err != nil {
			return fmt.Errorf("romreq: %w", err)
		}

		var err error
		*src.stream, err = os.Open(src.Filename)
		if err != nil {
			return fmt.Errorf("romreq: %w", err)
		}
		logger.Logf(logger.Allow, "romreq", "stream open (%s)", src.Filename)

		return nil
	}

	if src.Data != nil && len(*src.Data) > 0 {
		return nil
	}

	scheme := "file"
	if u, err := url.Parse(src.Filename); err == nil {
		scheme = u.Scheme
	}

	switch scheme {
	case "http", "https":
		resp, err := http.Get(src.Filename)
		if err != nil {
			return fmt.Errorf("romreq: %w", err)
		}
		defer resp.Body.Close()

		*src.Data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("romreq: %w", err)
		}

	default:
		f, err := os.Open(src.Filename)
		if err != nil {
			return fmt.Errorf("romreq: %w", err)
		}
		defer f.Close()

		*src.Data, err = io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("romreq: %w", err)
		}
	}

	src.data = bytes.NewBuffer(*src.Data)

	hash := fmt.Sprintf("%x", sha1.Sum(*src.Data))
	if src.HashSHA1 != "" && src.HashSHA1 != hash {
		return fmt.Errorf("romreq: unexpected SHA1 hash value for %s", src.Filename)
	}
	src.HashSHA1 = hash

	hash = fmt.Sprintf("%x", md5.Sum(*src.Data))
	if src.HashMD5 != "" && src.HashMD5 != hash {
		return fmt.Errorf("romreq: unexpected MD5 hash value for %s", src.Filename)
	}
	src.HashMD5 = hash

	return nil
}

// Request pairs an Id with a Requirement, for a component to declare as
// part of its build-time ROM requirements. A MachineBuilder resolves each
// Request to a Source before the component is activated.
type Request struct {
	Id          Id
	Requirement Requirement
}
