package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"grievance/internal/complaint/models"
	"grievance/internal/upload"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

// maxMultipartMemory bounds the form parsed into memory; larger parts spill to disk.
const (
	maxMultipartMemory = 32 << 20
	maxRequestBody     = 5*upload.MaxImageSize + 5*upload.MaxPDFSize + 1<<20
)

// complaintForm is the multipart body of create and update requests.
type complaintForm struct {
	EntityID    string
	Kind        *string
	Description *string
	Location    *string
	Files       upload.Batch

	entityID id.EntityID
}

func parseComplaintForm(w http.ResponseWriter, r *http.Request) (*complaintForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeValidation, "the uploaded files are too large")
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form")
		}
		if err := r.ParseForm(); err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid form")
		}
	}
	f := &complaintForm{EntityID: strings.TrimSpace(r.FormValue("entity_id"))}
	f.Kind = formField(r, "type")
	f.Description = formField(r, "description")
	f.Location = formField(r, "location")

	if r.MultipartForm != nil {
		var err error
		if f.Files.Images, err = readFiles(r.MultipartForm, "images"); err != nil {
			return nil, err
		}
		if f.Files.PDFs, err = readFiles(r.MultipartForm, "pdfs"); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// formField returns nil when the field is absent so updates can tell
// "unchanged" from "cleared".
func formField(r *http.Request, name string) *string {
	if _, ok := r.Form[name]; !ok {
		if r.MultipartForm == nil {
			return nil
		}
		if _, ok := r.MultipartForm.Value[name]; !ok {
			return nil
		}
	}
	v := strings.TrimSpace(r.FormValue(name))
	return &v
}

func readFiles(form *multipart.Form, field string) ([]upload.File, error) {
	headers := append(form.File[field], form.File[field+"[]"]...)
	if len(headers) > models.MaxFilesPerType {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("the %s field must not have more than %d items", field, models.MaxFilesPerType))
	}
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, upload.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "failed to read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "failed to read uploaded file")
	}
	return data, nil
}

func (f *complaintForm) validateCreate() error {
	if f.EntityID == "" {
		return dErrors.New(dErrors.CodeValidation, "the entity field is required")
	}
	entityID, err := id.ParseEntityID(f.EntityID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "the selected entity does not exist")
	}
	f.entityID = entityID
	if f.Kind == nil || *f.Kind == "" {
		return dErrors.New(dErrors.CodeValidation, "the type field is required")
	}
	if f.Description == nil || *f.Description == "" {
		return dErrors.New(dErrors.CodeValidation, "the description field is required")
	}
	return nil
}

func (f *complaintForm) changes() models.CitizenChanges {
	return models.CitizenChanges{Kind: f.Kind, Description: f.Description, Location: f.Location}
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

type ResolutionRequest struct {
	Resolution string `json:"resolution"`
}

func (r *ResolutionRequest) Normalize() { r.Resolution = strings.TrimSpace(r.Resolution) }

type DeclineRequest struct {
	Reason string `json:"reason"`
}

func (r *DeclineRequest) Normalize() { r.Reason = strings.TrimSpace(r.Reason) }

type InfoRequest struct {
	Message string `json:"message"`
}

func (r *InfoRequest) Normalize() { r.Message = strings.TrimSpace(r.Message) }

type StatusRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes"`

	status models.Status
}

func (r *StatusRequest) Normalize() {
	r.Status = strings.TrimSpace(r.Status)
	r.AdminNotes = strings.TrimSpace(r.AdminNotes)
}

func (r *StatusRequest) Validate() error {
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "the status field is required")
	}
	s, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	if len(r.AdminNotes) > 1000 {
		return dErrors.New(dErrors.CodeValidation, "admin notes must be at most 1000 characters")
	}
	r.status = s
	return nil
}

func statusFilter(r *http.Request) (*models.Status, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	s, err := models.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
