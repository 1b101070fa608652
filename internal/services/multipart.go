package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/desertthunder/vtx/internal/shared"
	"github.com/google/uuid"
)

// ProgressFunc receives the number of file bytes written so far and the total across all files.
type ProgressFunc func(written, total int64)

type formField struct {
	name  string
	value string
}

type formFile struct {
	field string
	path  string
}

// MultipartForm builds a multipart/form-data body whose files are re-opened on every attempt.
//
// The boundary is fixed at construction so a replayed body is byte-identical.
type MultipartForm struct {
	fields   []formField
	files    []formFile
	boundary string
	progress ProgressFunc
}

// NewMultipartForm creates an empty form.
func NewMultipartForm() *MultipartForm {
	return &MultipartForm{boundary: "vtx-" + uuid.NewString()}
}

// AddField appends a text field. Empty values are skipped.
func (f *MultipartForm) AddField(name, value string) *MultipartForm {
	if value != "" {
		f.fields = append(f.fields, formField{name: name, value: value})
	}
	return f
}

// AddFile appends a file part read from path at send time. An empty path is skipped.
func (f *MultipartForm) AddFile(field, path string) *MultipartForm {
	if path != "" {
		f.files = append(f.files, formFile{field: field, path: shared.ExpandPath(path)})
	}
	return f
}

// OnProgress sets a callback invoked as file bytes are written.
func (f *MultipartForm) OnProgress(fn ProgressFunc) *MultipartForm {
	f.progress = fn
	return f
}

// Boundary returns the part delimiter.
func (f *MultipartForm) Boundary() string { return f.boundary }

// ContentType returns the header value including the boundary.
func (f *MultipartForm) ContentType() string {
	return "multipart/form-data; boundary=" + f.boundary
}

// Validate checks that every file exists and is a regular file.
func (f *MultipartForm) Validate() error {
	for _, ff := range f.files {
		if err := shared.VerifyFile(ff.path); err != nil {
			return fmt.Errorf("%s: %w", ff.field, err)
		}
	}
	return nil
}

// Request wraps the form in a [Request].
func (f *MultipartForm) Request(method, path string) *Request {
	return &Request{Method: method, Path: path, Body: f.Body(), ContentType: f.ContentType()}
}

// Body returns a [BodyFunc] streaming the encoded form through a pipe.
//
// Files are opened before the pipe starts so missing files fail the attempt synchronously.
func (f *MultipartForm) Body() BodyFunc {
	return func() (io.ReadCloser, error) {
		opened := make([]*os.File, 0, len(f.files))
		closeAll := func() {
			for _, fh := range opened {
				fh.Close()
			}
		}

		var total int64
		for _, ff := range f.files {
			fh, err := os.Open(ff.path)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("failed to open %s: %w", ff.field, err)
			}
			opened = append(opened, fh)

			info, err := fh.Stat()
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("failed to stat %s: %w", ff.field, err)
			}
			total += info.Size()
		}

		pr, pw := io.Pipe()
		go func() {
			defer closeAll()
			pw.CloseWithError(f.write(pw, opened, total))
		}()

		return pr, nil
	}
}

func (f *MultipartForm) write(w io.Writer, files []*os.File, total int64) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(f.boundary); err != nil {
		return err
	}

	for _, field := range f.fields {
		if err := mw.WriteField(field.name, field.value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", field.name, err)
		}
	}

	var written int64
	for i, ff := range f.files {
		part, err := mw.CreatePart(filePartHeader(ff.field, ff.path))
		if err != nil {
			return fmt.Errorf("failed to create part %s: %w", ff.field, err)
		}

		var dst io.Writer = part
		if f.progress != nil {
			dst = &progressWriter{w: part, written: &written, total: total, fn: f.progress}
		}

		if _, err := io.Copy(dst, files[i]); err != nil {
			return fmt.Errorf("failed to write file %s: %w", ff.field, err)
		}
	}

	return mw.Close()
}

func filePartHeader(field, path string) textproto.MIMEHeader {
	name := filepath.Base(path)
	ct := "application/octet-stream"

	fh, err := os.Open(path)
	if err == nil {
		buf := make([]byte, 512)
		n, _ := io.ReadFull(fh, buf)
		fh.Close()
		if n > 0 {
			ct = http.DetectContentType(buf[:n])
		}
	}

	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name)},
		"Content-Type":        {ct},
	}
}

type progressWriter struct {
	w       io.Writer
	written *int64
	total   int64
	fn      ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	*p.written += int64(n)
	p.fn(*p.written, p.total)
	return n, err
}
