package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"studypack/internal/extract"
	"studypack/internal/models"
	"studypack/internal/services"
	"studypack/internal/srs"
)

const maxMultipartMemory = 8 << 20 // 8 MB

type Server struct {
	mux       *http.ServeMux
	extractor *extract.Extractor
	packs     *services.PackGenerator
	quiz      *services.QuizGenerator
	tutor     *services.Tutor
	reviews   *services.ReviewService
	store     *services.PackStore
	jobs      *JobManager
}

func NewServer(
	extractor *extract.Extractor,
	packs *services.PackGenerator,
	quiz *services.QuizGenerator,
	tutor *services.Tutor,
	reviews *services.ReviewService,
	store *services.PackStore,
) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		extractor: extractor,
		packs:     packs,
		quiz:      quiz,
		tutor:     tutor,
		reviews:   reviews,
		store:     store,
		jobs:      NewJobManager(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/packs", s.handlePacks)
	s.mux.HandleFunc("/api/packs/jobs", s.handleCreateJob)
	s.mux.HandleFunc("/api/packs/jobs/", s.handleJobStatus)
	s.mux.HandleFunc("/api/packs/", s.handlePackActions)
	s.mux.HandleFunc("/api/quiz", s.handleQuiz)
	s.mux.HandleFunc("/api/cards/due", s.handleDueCards)
	s.mux.HandleFunc("/api/cards/", s.handleCardActions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePacks lists packs or generates one synchronously.
func (s *Server) handlePacks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		summaries, err := s.store.ListPacks(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]map[string]any, 0, len(summaries))
		for _, summary := range summaries {
			out = append(out, map[string]any{
				"id":              summary.ID,
				"title":           summary.Title,
				"created_at":      summary.CreatedAt.Format(timeLayout),
				"flashcard_count": summary.FlashcardCount,
				"quiz_count":      summary.QuizCount,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"packs": out})

	case http.MethodPost:
		source, err := parseSource(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pack, err := s.generateAndStore(r.Context(), source, nil)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, packJSON(pack))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	source, err := parseSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, snapshot := s.jobs.CreateJob()
	go s.runGenerationJob(context.Background(), jobID, source)

	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) runGenerationJob(ctx context.Context, jobID string, source extract.Source) {
	progress := func(step, message string) {
		s.jobs.MarkProcessing(jobID, step, message)
	}
	pack, err := s.generateAndStore(ctx, source, progress)
	if err != nil {
		log.Printf("pack generation job %s failed: %v", jobID, err)
		s.jobs.MarkFailed(jobID, err.Error())
		return
	}
	s.jobs.MarkComplete(jobID, pack.ID)
}

// generateAndStore runs the full pipeline: extract, generate, persist.
func (s *Server) generateAndStore(ctx context.Context, source extract.Source, progress func(step, message string)) (*models.StudyPack, error) {
	if progress != nil {
		progress("extract", "Extracting content")
	}
	content, err := s.extractor.Extract(ctx, source)
	if err != nil {
		return nil, err
	}

	if progress != nil {
		progress("generate", "Generating study pack")
	}
	pack, err := s.packs.GeneratePack(ctx, content)
	if err != nil {
		return nil, err
	}

	if progress != nil {
		progress("save", "Saving study pack")
	}
	if err := s.store.CreatePack(ctx, pack); err != nil {
		return nil, err
	}
	return pack, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	jobID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/packs/jobs/"), "/")
	if jobID == "" {
		http.NotFound(w, r)
		return
	}

	job, ok := s.jobs.GetJob(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handlePackActions dispatches /api/packs/{id} and /api/packs/{id}/chat.
func (s *Server) handlePackActions(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/packs/"), "/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handlePackByID(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "chat":
		s.handleChat(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handlePackByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		pack, err := s.store.GetPack(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, packJSON(pack))

	case http.MethodDelete:
		if err := s.store.DeletePack(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

type chatRequest struct {
	Question string            `json:"question"`
	History  []models.ChatTurn `json:"history"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, packID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	pack, err := s.store.GetPack(r.Context(), packID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	answer, err := s.tutor.Ask(r.Context(), pack.SourceText, payload.History, payload.Question)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

type quizRequest struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// handleQuiz generates a standalone quiz without persisting anything.
func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload quizRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	source, err := sourceFromFields(payload.Text, payload.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count := payload.Count
	if count <= 0 {
		count = 5
	}

	content, err := s.extractor.Extract(r.Context(), source)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	questions, err := s.quiz.GenerateQuiz(r.Context(), content, count)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	out := make([]map[string]any, 0, len(questions))
	for _, question := range questions {
		out = append(out, questionJSON(question))
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": out})
}

func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	cards, err := s.store.DueCards(r.Context(), time.Now().UTC(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(cards))
	for i := range cards {
		out = append(out, cardJSON(&cards[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": out})
}

type reviewRequest struct {
	Outcome   string `json:"outcome"`
	Rationale bool   `json:"rationale"`
}

func (s *Server) handleCardActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/cards/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "review" {
		http.NotFound(w, r)
		return
	}
	cardID := parts[0]

	var payload reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	outcome, err := srs.ParseOutcome(payload.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.reviews.ReviewCard(r.Context(), cardID, outcome, payload.Rationale)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	resp := map[string]any{"card": cardJSON(result.Card)}
	if result.Rationale != "" {
		resp["rationale"] = result.Rationale
	}
	writeJSON(w, http.StatusOK, resp)
}

type sourceRequest struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// parseSource builds an extraction source from either a JSON body (text or
// url) or a multipart upload (document file).
func parseSource(r *http.Request) (extract.Source, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("invalid multipart form")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file upload")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = mime.TypeByExtension(filepath.Ext(header.Filename))
		}
		return extract.DocumentSource{Data: data, MIME: mimeType}, nil
	}

	var payload sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid payload")
	}
	return sourceFromFields(payload.Text, payload.URL)
}

func sourceFromFields(text, url string) (extract.Source, error) {
	switch {
	case strings.TrimSpace(text) != "":
		return extract.TextSource{Text: text}, nil
	case strings.TrimSpace(url) != "":
		// VideoSource classifies the URL itself and falls through to the web
		// path when it is not a recognized video link.
		return extract.VideoSource{URL: strings.TrimSpace(url)}, nil
	default:
		return nil, fmt.Errorf("provide either text or url")
	}
}

const timeLayout = time.RFC3339

func packJSON(pack *models.StudyPack) map[string]any {
	cards := make([]map[string]any, 0, len(pack.Flashcards))
	for i := range pack.Flashcards {
		cards = append(cards, cardJSON(&pack.Flashcards[i]))
	}
	questions := make([]map[string]any, 0, len(pack.Quiz))
	for _, question := range pack.Quiz {
		questions = append(questions, questionJSON(question))
	}
	return map[string]any{
		"id":          pack.ID,
		"title":       pack.Title,
		"summary":     pack.Summary,
		"source_kind": pack.SourceKind,
		"flashcards":  cards,
		"quiz":        questions,
		"created_at":  pack.CreatedAt.Format(timeLayout),
	}
}

func cardJSON(card *models.Flashcard) map[string]any {
	return map[string]any{
		"id":            card.ID,
		"pack_id":       card.PackID,
		"front":         card.Front,
		"back":          card.Back,
		"last_reviewed": nullTimeToString(card.Review.LastReviewed),
		"next_review":   nullTimeToString(card.Review.NextReview),
		"ease_factor":   card.Review.EaseFactor,
		"repetitions":   card.Review.Repetitions,
		"interval_days": card.Review.IntervalDays,
	}
}

func questionJSON(question models.QuizQuestion) map[string]any {
	return map[string]any{
		"id":             question.ID,
		"question":       question.Question,
		"options":        question.Options,
		"correct_answer": question.CorrectAnswer,
	}
}

func nullTimeToString(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	formatted := t.Time.Format(timeLayout)
	return &formatted
}
