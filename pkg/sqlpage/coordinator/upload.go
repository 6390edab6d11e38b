package coordinator

import (
	"io"
	"net/http"
	"os"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
)

// drainUploads parses a multipart POST body, writing each uploaded file to a
// temporary path tracked in rc.Uploads keyed by form field name, with a
// sniffed MIME type for the uploaded_file_mime_type function. Non-multipart
// POST bodies are parsed as regular form values instead.
func (c *Coordinator) drainUploads(r *http.Request, rc *reqctx.RequestContext) error {
	if r.Method != http.MethodPost {
		return nil
	}

	contentType := r.Header.Get("Content-Type")
	maxSize := c.cfg.MaxUploadedFileSize
	if maxSize <= 0 {
		maxSize = 32 << 20
	}

	if len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return err
		}
		for key, values := range r.MultipartForm.Value {
			for _, v := range values {
				rc.Post.Set(key, v)
			}
		}
		for field, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			fh := headers[0]
			file, err := fh.Open()
			if err != nil {
				return err
			}
			tmp, err := os.CreateTemp("", "sqlpage-upload-*")
			if err != nil {
				file.Close()
				return err
			}
			sniffBuf := make([]byte, 512)
			n, _ := file.Read(sniffBuf)
			mimeType := http.DetectContentType(sniffBuf[:n])
			if declared := fh.Header.Get("Content-Type"); declared != "" {
				mimeType = declared
			}
			if _, err := tmp.Write(sniffBuf[:n]); err != nil {
				file.Close()
				tmp.Close()
				return err
			}
			if _, err := io.Copy(tmp, file); err != nil {
				file.Close()
				tmp.Close()
				return err
			}
			file.Close()
			tmp.Close()
			rc.Uploads[field] = reqctx.UploadedFile{
				FieldName: field,
				TempPath:  tmp.Name(),
				MimeType:  mimeType,
				FileName:  fh.Filename,
			}
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return err
	}
	for key, values := range r.PostForm {
		for _, v := range values {
			rc.Post.Set(key, v)
		}
	}
	return nil
}
