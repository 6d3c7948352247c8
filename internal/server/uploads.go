package server

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/atinyakov/kongtze/internal/models"
)

const maxUploadBytes = 10 << 20

// photoUpload is the parsed multipart body shared by homework and class-note
// uploads.
type photoUpload struct {
	subjectID int
	title     string
	filename  string
	size      int64
}

// readPhotoUpload parses subject_id, title and photo. On failure it writes
// the response and returns false.
func readPhotoUpload(w http.ResponseWriter, r *http.Request) (photoUpload, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeValidation(w, "body", "photo", "expected multipart/form-data")
		return photoUpload{}, false
	}
	var up photoUpload
	id, err := strconv.Atoi(r.FormValue("subject_id"))
	if err != nil {
		writeValidation(w, "body", "subject_id", "value is not a valid integer")
		return up, false
	}
	up.subjectID = id
	up.title = strings.TrimSpace(r.FormValue("title"))
	if up.title == "" {
		writeValidation(w, "body", "title", "field required")
		return up, false
	}
	f, hdr, err := r.FormFile("photo")
	if err != nil {
		writeValidation(w, "body", "photo", "field required")
		return up, false
	}
	defer f.Close()
	n, err := io.Copy(io.Discard, f)
	if err != nil || n == 0 || !strings.HasPrefix(hdr.Header.Get("Content-Type"), "image/") {
		writeDetail(w, http.StatusBadRequest, "Invalid image file. Please upload a valid image (JPG, PNG, etc.)")
		return up, false
	}
	up.filename = path.Base(hdr.Filename)
	up.size = n
	return up, true
}

// ocrText stands in for OCR.
func ocrText(up photoUpload) *string {
	s := fmt.Sprintf("Text extracted from %s (%d bytes)", up.filename, up.size)
	return &s
}

func (b *Backend) uploadHomework(w http.ResponseWriter, r *http.Request) {
	up, ok := readPhotoUpload(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subject(up.subjectID); !ok {
		writeDetail(w, http.StatusNotFound, "Subject not found")
		return
	}
	userID := principal(r).UserID
	now := b.now()
	h := &models.Homework{
		HomeworkID: b.nextID(),
		UserID:     userID,
		SubjectID:  up.subjectID,
		Title:      up.title,
		OCRText:    ocrText(up),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	h.PhotoPath = fmt.Sprintf("uploads/homework/%d/%d_%s", userID, h.HomeworkID, up.filename)
	b.homework[h.HomeworkID] = h
	writeJSON(w, http.StatusCreated, *h)
}

func (b *Backend) listHomework(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := queryInt(w, r, "subject_id")
	if !ok {
		return
	}
	var reviewed *bool
	if raw := r.URL.Query().Get("reviewed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeValidation(w, "query", "reviewed", "value could not be parsed to a boolean")
			return
		}
		reviewed = &v
	}
	userID := principal(r).UserID

	b.mu.Lock()
	out := []models.Homework{}
	for _, h := range b.homework {
		if h.UserID != userID ||
			(subjectID != nil && h.SubjectID != *subjectID) ||
			(reviewed != nil && h.ParentReviewed != *reviewed) {
			continue
		}
		out = append(out, *h)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].HomeworkID > out[j].HomeworkID })
	writeJSON(w, http.StatusOK, out)
}

// ownHomework must be called with mu held.
func (b *Backend) ownHomework(r *http.Request, id int) (*models.Homework, bool) {
	h, ok := b.homework[id]
	if !ok || h.UserID != principal(r).UserID {
		return nil, false
	}
	return h, true
}

func (b *Backend) getHomework(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h, found := b.ownHomework(r, id)
	if !found {
		writeDetail(w, http.StatusNotFound, "Homework not found")
		return
	}
	writeJSON(w, http.StatusOK, *h)
}

func (b *Backend) updateHomework(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.HomeworkUpdate
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h, found := b.ownHomework(r, id)
	if !found {
		writeDetail(w, http.StatusNotFound, "Homework not found")
		return
	}
	if req.ParentReviewed != nil && !principal(r).Parent {
		writeDetail(w, http.StatusForbidden, "Only parents can mark homework as reviewed")
		return
	}
	if req.Title != nil {
		h.Title = *req.Title
	}
	if req.ParentReviewed != nil {
		h.ParentReviewed = *req.ParentReviewed
	}
	h.UpdatedAt = b.now()
	writeJSON(w, http.StatusOK, *h)
}

func (b *Backend) deleteHomework(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.ownHomework(r, id); !found {
		writeDetail(w, http.StatusNotFound, "Homework not found")
		return
	}
	delete(b.homework, id)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) uploadNote(w http.ResponseWriter, r *http.Request) {
	up, ok := readPhotoUpload(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	subject, ok := b.subject(up.subjectID)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Subject not found")
		return
	}
	userID := principal(r).UserID
	now := b.now()
	n := &models.ClassNoteWithTopics{ClassNote: models.ClassNote{
		NoteID:    b.nextID(),
		UserID:    userID,
		SubjectID: up.subjectID,
		Title:     up.title,
		OCRText:   ocrText(up),
		CreatedAt: now,
	}}
	n.PhotoPath = fmt.Sprintf("uploads/class_notes/%d/%d_%s", userID, n.NoteID, up.filename)
	n.Topics = []models.Topic{{
		TopicID:     b.nextID(),
		NoteID:      n.NoteID,
		SubjectID:   up.subjectID,
		TopicName:   subject.DisplayName + ": " + up.title,
		Confidence:  0.9,
		ExtractedAt: now,
	}}
	b.notes[n.NoteID] = n
	writeJSON(w, http.StatusCreated, *n)
}

func (b *Backend) listNotes(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := queryInt(w, r, "subject_id")
	if !ok {
		return
	}
	userID := principal(r).UserID

	b.mu.Lock()
	out := []models.ClassNote{}
	for _, n := range b.notes {
		if n.UserID != userID || (subjectID != nil && n.SubjectID != *subjectID) {
			continue
		}
		out = append(out, n.ClassNote)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].NoteID > out[j].NoteID })
	writeJSON(w, http.StatusOK, out)
}

// ownNote must be called with mu held.
func (b *Backend) ownNote(r *http.Request, id int) (*models.ClassNoteWithTopics, bool) {
	n, ok := b.notes[id]
	if !ok || n.UserID != principal(r).UserID {
		return nil, false
	}
	return n, true
}

func (b *Backend) getNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n, found := b.ownNote(r, id)
	if !found {
		writeDetail(w, http.StatusNotFound, "Class note not found")
		return
	}
	writeJSON(w, http.StatusOK, *n)
}

func (b *Backend) updateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.ClassNoteUpdate
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n, found := b.ownNote(r, id)
	if !found {
		writeDetail(w, http.StatusNotFound, "Class note not found")
		return
	}
	if req.Title != nil {
		n.Title = *req.Title
	}
	writeJSON(w, http.StatusOK, n.ClassNote)
}

func (b *Backend) deleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.ownNote(r, id); !found {
		writeDetail(w, http.StatusNotFound, "Class note not found")
		return
	}
	delete(b.notes, id)
	w.WriteHeader(http.StatusNoContent)
}
