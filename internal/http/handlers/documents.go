package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/sqlinline"
)

const defaultMaxUploadBytes = 20 << 20

type documentDTO struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Kind      string    `json:"kind"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentUpload accepts a multipart upload, stores the bytes on the file
// store and the metadata row in the database.
func (a *App) DocumentUpload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	maxBytes := a.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "file field required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	kind, err := documentKind(header.Filename)
	if err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) == 0 {
		a.error(w, http.StatusBadRequest, "file is empty")
		return
	}

	docID := uuid.NewString()
	key := fmt.Sprintf("documents/%s/%s%s", userID, docID, strings.ToLower(filepath.Ext(header.Filename)))
	storedKey, err := a.Store.Write(r.Context(), key, data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("store document failed")
		a.error(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertDocument,
		docID, userID, header.Filename, kind, int64(len(data)), storedKey)
	var id string
	var createdAt time.Time
	if err := row.Scan(&id, &createdAt); err != nil {
		a.Logger.Error().Err(err).Msg("insert document failed")
		a.error(w, http.StatusInternalServerError, "failed to persist document")
		return
	}
	a.json(w, http.StatusCreated, "document uploaded", documentDTO{
		ID:        id,
		Filename:  header.Filename,
		Kind:      string(kind),
		SizeBytes: int64(len(data)),
		CreatedAt: createdAt,
	})
}

// DocumentList returns the caller's uploaded documents, newest first.
func (a *App) DocumentList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectDocumentsByUser, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list documents failed")
		a.error(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	defer rows.Close()

	docs := []documentDTO{}
	for rows.Next() {
		var (
			d          documentDTO
			ownerID    string
			storageKey string
		)
		if err := rows.Scan(&d.ID, &ownerID, &d.Filename, &d.Kind, &d.SizeBytes, &storageKey, &d.CreatedAt); err != nil {
			a.error(w, http.StatusInternalServerError, "failed to read documents")
			return
		}
		docs = append(docs, d)
	}
	a.json(w, http.StatusOK, "ok", docs)
}

func documentKind(filename string) (domain.DocumentKind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return domain.DocumentKindText, nil
	case ".xlsx":
		return domain.DocumentKindXLSX, nil
	case ".pptx":
		return domain.DocumentKindPPTX, nil
	default:
		return "", fmt.Errorf("unsupported file type %q; upload .txt, .xlsx or .pptx", filepath.Ext(filename))
	}
}
