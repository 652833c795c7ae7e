package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/SarajZimba/chatbot-llm/internal/chunker"
	"github.com/SarajZimba/chatbot-llm/internal/core"
	"github.com/SarajZimba/chatbot-llm/internal/extract"
	"github.com/SarajZimba/chatbot-llm/internal/ocr"
	"github.com/SarajZimba/chatbot-llm/internal/store"
)

const maxUploadBytes = 32 << 20

type APIHandler struct {
	dbStore  *store.SQLiteStore
	rag      *core.RAGService
	commands *core.CommandService
	menu     *core.MenuService
	images   *core.ImageService
}

func NewAPIHandler(db *store.SQLiteStore, rag *core.RAGService, commands *core.CommandService, menu *core.MenuService, images *core.ImageService) *APIHandler {
	return &APIHandler{
		dbStore:  db,
		rag:      rag,
		commands: commands,
		menu:     menu,
		images:   images,
	}
}

// statusFor maps the service error taxonomy onto HTTP statuses. Anything
// unrecognized is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, core.ErrNoTextExtracted),
		errors.Is(err, ocr.ErrNoTextDetected),
		errors.Is(err, chunker.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrScopeNotFound),
		errors.Is(err, store.ErrCommandNotFound),
		errors.Is(err, store.ErrImageNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) serviceError(w http.ResponseWriter, err error, context string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Error %s: %v", context, err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"service": "chatbot-llm",
		"status":  "running",
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

type UploadResponse struct {
	DocID      string  `json:"doc_id"`
	Filename   string  `json:"filename"`
	OutletName *string `json:"document_outlet_name,omitempty"`
	Chunks     int     `json:"chunks"`
}

func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	var outletName *string
	if v := r.FormValue("document_outlet_name"); v != "" {
		outletName = &v
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	text, err := extract.Text(header.Filename, data)
	if err != nil {
		h.serviceError(w, err, "extracting text from "+header.Filename)
		return
	}

	docID, chunks, err := h.rag.IngestDocument(r.Context(), username, header.Filename, outletName, text)
	if err != nil {
		h.serviceError(w, err, "ingesting document "+header.Filename)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(UploadResponse{
		DocID:      docID,
		Filename:   header.Filename,
		OutletName: outletName,
		Chunks:     chunks,
	})
}

type AskRequest struct {
	Question   string `json:"question"`
	DocID      string `json:"doc_id"`
	OutletName string `json:"document_outlet_name"`
}

type AskResponse struct {
	Question string `json:"question"`
	Answer   string `json:"llama_answer"`
}

func (h *APIHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	var scope core.Scope
	switch {
	case req.DocID != "":
		scope = core.DocumentScope(req.DocID)
	case req.OutletName != "":
		scope = core.OutletScope(req.OutletName)
	}

	answer, err := h.rag.Answer(r.Context(), scope, req.Question)
	if err != nil {
		h.serviceError(w, err, "answering question")
		return
	}
	json.NewEncoder(w).Encode(AskResponse{Question: req.Question, Answer: answer})
}

func (h *APIHandler) AskOutletHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" || req.OutletName == "" {
		http.Error(w, "question and document_outlet_name are required", http.StatusBadRequest)
		return
	}

	answer, err := h.rag.Answer(r.Context(), core.OutletScope(req.OutletName), req.Question)
	if err != nil {
		h.serviceError(w, err, "answering outlet question")
		return
	}
	json.NewEncoder(w).Encode(AskResponse{Question: req.Question, Answer: answer})
}

type CommandSlotsRequest struct {
	OutletName string            `json:"document_outlet_name"`
	UserID     string            `json:"user_id"`
	CommandID  *int64            `json:"command_id"`
	Slots      map[string]string `json:"slots"`
	Question   string            `json:"question"`
}

func (h *APIHandler) AskOutletCommandSlotsHandler(w http.ResponseWriter, r *http.Request) {
	var req CommandSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.OutletName == "" || req.UserID == "" {
		http.Error(w, "document_outlet_name and user_id are required", http.StatusBadRequest)
		return
	}
	if req.CommandID == nil && req.Question == "" {
		http.Error(w, "question is required when no command_id is given", http.StatusBadRequest)
		return
	}

	result, err := h.commands.Resolve(r.Context(), core.ResolveRequest{
		Outlet:    req.OutletName,
		UserID:    req.UserID,
		CommandID: req.CommandID,
		Slots:     req.Slots,
		Question:  req.Question,
	})
	if err != nil {
		h.serviceError(w, err, "resolving command slots")
		return
	}
	json.NewEncoder(w).Encode(result)
}

type MenuRequest struct {
	Question string `json:"question"`
}

func (h *APIHandler) AskMenuHandler(w http.ResponseWriter, r *http.Request) {
	var req MenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	answer, err := h.menu.Ask(r.Context(), req.Question)
	if err != nil {
		h.serviceError(w, err, "answering menu question")
		return
	}
	json.NewEncoder(w).Encode(answer)
}

func (h *APIHandler) AskImageUploadHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// The OCR program reads from a path, so the upload goes through a
	// temp file that is removed once the text is extracted.
	tmp, err := os.CreateTemp("", "ocr-*"+filepath.Ext(header.Filename))
	if err != nil {
		log.Printf("Error creating temp file for image upload: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		log.Printf("Error writing temp file for image upload: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	tmp.Close()

	result, err := h.images.Upload(r.Context(), username, header.Filename, tmp.Name())
	if err != nil {
		h.serviceError(w, err, "processing image "+header.Filename)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

type ImageQuestionRequest struct {
	ImageID  string `json:"image_id"`
	Question string `json:"question"`
}

type ImageQuestionResponse struct {
	ImageID  string `json:"image_id"`
	Question string `json:"question"`
	Answer   string `json:"llama_answer"`
}

func (h *APIHandler) AskImageQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req ImageQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ImageID == "" || req.Question == "" {
		http.Error(w, "image_id and question are required", http.StatusBadRequest)
		return
	}

	answer, err := h.images.Answer(r.Context(), req.ImageID, req.Question)
	if err != nil {
		h.serviceError(w, err, "answering image question")
		return
	}
	json.NewEncoder(w).Encode(ImageQuestionResponse{
		ImageID:  req.ImageID,
		Question: req.Question,
		Answer:   answer,
	})
}

type CreateCommandsRequest struct {
	OutletName string              `json:"document_outlet_name"`
	Commands   []store.CommandNode `json:"commands"`
}

func (h *APIHandler) CreateCommandsHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateCommandsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.OutletName == "" || len(req.Commands) == 0 {
		http.Error(w, "document_outlet_name and commands are required", http.StatusBadRequest)
		return
	}

	ids, err := h.dbStore.InsertCommandTree(req.OutletName, req.Commands)
	if err != nil {
		if errors.Is(err, store.ErrTreeTooDeep) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.serviceError(w, err, "inserting command tree")
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"command_ids": ids})
}

func (h *APIHandler) RootCommandsHandler(w http.ResponseWriter, r *http.Request) {
	outletName := r.URL.Query().Get("document_outlet_name")
	if outletName == "" {
		http.Error(w, "document_outlet_name is required", http.StatusBadRequest)
		return
	}

	commands, err := h.dbStore.RootCommands(outletName)
	if err != nil {
		h.serviceError(w, err, "listing root commands")
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"commands": commands})
}

func (h *APIHandler) ListCommandsHandler(w http.ResponseWriter, r *http.Request) {
	outletName := chi.URLParam(r, "outlet")

	var parentID *int64
	if v := r.URL.Query().Get("parent_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "parent_id must be an integer", http.StatusBadRequest)
			return
		}
		parentID = &id
	}

	commands, err := h.dbStore.ChildrenOf(outletName, parentID)
	if err != nil {
		h.serviceError(w, err, "listing commands")
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"commands": commands})
}

func (h *APIHandler) DeleteCommandHandler(w http.ResponseWriter, r *http.Request) {
	commandID, err := strconv.ParseInt(chi.URLParam(r, "commandID"), 10, 64)
	if err != nil {
		http.Error(w, "commandID must be an integer", http.StatusBadRequest)
		return
	}

	if err := h.dbStore.DeleteCommand(commandID); err != nil {
		h.serviceError(w, err, "deleting command")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type DeleteSlotsRequest struct {
	SlotIDs []int64 `json:"slot_ids"`
}

func (h *APIHandler) DeleteSlotsHandler(w http.ResponseWriter, r *http.Request) {
	var req DeleteSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.SlotIDs) == 0 {
		http.Error(w, "slot_ids is required", http.StatusBadRequest)
		return
	}

	deleted, err := h.dbStore.DeleteSlots(req.SlotIDs)
	if err != nil {
		h.serviceError(w, err, "deleting slots")
		return
	}
	json.NewEncoder(w).Encode(map[string]int64{"deleted": deleted})
}

type AddSlotsRequest struct {
	Slots []store.SlotSpec `json:"slots"`
}

func (h *APIHandler) AddSlotsHandler(w http.ResponseWriter, r *http.Request) {
	commandID, err := strconv.ParseInt(chi.URLParam(r, "commandID"), 10, 64)
	if err != nil {
		http.Error(w, "commandID must be an integer", http.StatusBadRequest)
		return
	}

	var req AddSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Slots) == 0 {
		http.Error(w, "slots is required", http.StatusBadRequest)
		return
	}

	if err := h.dbStore.AddSlots(commandID, req.Slots); err != nil {
		h.serviceError(w, err, "adding slots")
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"command_id": commandID, "added": len(req.Slots)})
}

type AttachImageRequest struct {
	ImageURL string `json:"image_url"`
}

func (h *APIHandler) AttachCommandImageHandler(w http.ResponseWriter, r *http.Request) {
	commandID, err := strconv.ParseInt(chi.URLParam(r, "commandID"), 10, 64)
	if err != nil {
		http.Error(w, "commandID must be an integer", http.StatusBadRequest)
		return
	}

	var req AttachImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ImageURL == "" {
		http.Error(w, "image_url is required", http.StatusBadRequest)
		return
	}

	imageID, err := h.dbStore.AttachCommandImage(commandID, req.ImageURL)
	if err != nil {
		h.serviceError(w, err, "attaching command image")
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int64{"image_id": imageID})
}

func (h *APIHandler) DetachCommandImageHandler(w http.ResponseWriter, r *http.Request) {
	imageID, err := strconv.ParseInt(chi.URLParam(r, "imageID"), 10, 64)
	if err != nil {
		http.Error(w, "imageID must be an integer", http.StatusBadRequest)
		return
	}

	if err := h.dbStore.DetachCommandImage(imageID); err != nil {
		h.serviceError(w, err, "detaching command image")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
