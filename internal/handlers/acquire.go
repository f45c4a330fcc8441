package handlers

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/RanjanPM/potato-disease-classification/internal/upload"
)

const (
	fileField   = "file"
	sourceField = "source"

	// sourceValueLimit bounds how much of the source field is read.
	sourceValueLimit = 32
)

// acquisition is the result of reading one picker or drop upload.
type acquisition struct {
	File   *upload.File
	Source string
}

// readAcquisition streams the multipart body and reduces the file part to an
// upload.File. At most MaxImageSize+1 bytes of the file are read: a larger
// file is reported with Size past the limit and no Data, so the controller
// rejects it without the body ever being buffered whole. A body without a
// file part yields a nil File.
func readAcquisition(reader *multipart.Reader) (*acquisition, error) {
	acq := &acquisition{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return acq, nil
		}
		if err != nil {
			return nil, err
		}

		switch part.FormName() {
		case sourceField:
			value, err := io.ReadAll(io.LimitReader(part, sourceValueLimit))
			if err != nil {
				return nil, err
			}
			acq.Source = strings.TrimSpace(string(value))
		case fileField:
			if acq.File != nil {
				// one candidate per selection; later files are ignored
				continue
			}
			file, err := readFilePart(part)
			if err != nil {
				return nil, err
			}
			acq.File = file
			if file != nil && file.Size > upload.MaxImageSize {
				return acq, nil
			}
		}
	}
}

func readFilePart(part *multipart.Part) (*upload.File, error) {
	data, err := io.ReadAll(io.LimitReader(part, upload.MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	if part.FileName() == "" && len(data) == 0 {
		// browsers send an empty part when nothing was picked
		return nil, nil
	}

	file := &upload.File{
		Name:     part.FileName(),
		MIMEType: contentType(part.Header.Get("Content-Type"), data),
		Size:     int64(len(data)),
		Data:     data,
	}
	if file.Size > upload.MaxImageSize {
		file.Data = nil
	}
	return file, nil
}

// contentType prefers the type declared by the browser and sniffs the bytes
// when none, or only the generic binary type, was sent.
func contentType(declared string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return strings.ToLower(mediaType)
	}
	detected := mimetype.Detect(data).String()
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType
	}
	return detected
}
