package http

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/domain/extract"
	"github.com/inkwell-ai/inkwell/internal/domain/recognition"
	"github.com/inkwell-ai/inkwell/internal/domain/workflow"
	"github.com/inkwell-ai/inkwell/internal/port/cache"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
	"github.com/inkwell-ai/inkwell/internal/service"
)

// Handlers holds all HTTP handler dependencies. Config is read through the
// holder on every request so a reload is picked up without a restart.
type Handlers struct {
	workflow    *service.WorkflowService
	recognition *service.RecognitionService
	review      *service.ReviewService
	registry    *provider.Registry
	cache       cache.Cache
	cfg         *config.Holder
}

// NewHandlers creates the handler set with all dependencies.
func NewHandlers(
	wf *service.WorkflowService,
	rec *service.RecognitionService,
	rev *service.ReviewService,
	registry *provider.Registry,
	c cache.Cache,
	cfg *config.Holder,
) *Handlers {
	return &Handlers{
		workflow:    wf,
		recognition: rec,
		review:      rev,
		registry:    registry,
		cache:       c,
		cfg:         cfg,
	}
}

// ProcessImage runs the full recognition-review workflow on an uploaded
// image (multipart form: file, model_name, review_model, preprocess,
// skip_review).
func (h *Handlers) ProcessImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxRequestBodySize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeError(w, http.StatusBadRequest, "file must be an image")
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	skipReview, _ := strconv.ParseBool(r.FormValue("skip_review"))
	preprocess := h.cfg.Get().Recognition.Preprocess
	if v, err := strconv.ParseBool(r.FormValue("preprocess")); err == nil {
		preprocess = v
	}
	result := h.workflow.ProcessImage(r.Context(), image,
		r.FormValue("model_name"), r.FormValue("review_model"), preprocess, skipReview)
	if result.Error != "" {
		writeError(w, http.StatusInternalServerError, result.Error)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type recognizeRequest struct {
	ImageBase64 string `json:"image_base64"`
	ModelName   string `json:"model_name"`
	Preprocess  *bool  `json:"preprocess"` // defaults to the configured value (true)
}

// Recognize runs recognition only (no review) on a base64-encoded image.
func (h *Handlers) Recognize(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[recognizeRequest](w, r)
	if !ok {
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil || len(image) == 0 {
		writeError(w, http.StatusBadRequest, "invalid base64 image")
		return
	}

	preprocess := h.cfg.Get().Recognition.Preprocess
	if req.Preprocess != nil {
		preprocess = *req.Preprocess
	}
	out, err := h.recognition.ProcessImage(r.Context(), image, req.ModelName, preprocess)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

type reviewRequest struct {
	Recognition *recognition.Result `json:"recognition"`
	ModelName   string              `json:"model_name"`
}

// Review audits a previously obtained recognition result.
func (h *Handlers) Review(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[reviewRequest](w, r)
	if !ok {
		return
	}
	if req.Recognition == nil {
		writeError(w, http.StatusBadRequest, "recognition is required")
		return
	}

	proc := h.review.ProcessRecognition(r.Context(), req.Recognition, req.ModelName)
	writeJSON(w, http.StatusOK, proc)
}

type validateTextRequest struct {
	Text string `json:"text"`
}

type validateTextResponse struct {
	Valid          bool              `json:"valid"`
	StructuredData map[string]string `json:"structured_data"`
}

// ValidateText runs the structured-field extractor over raw text. The text
// is valid when at least one field was recognized.
func (h *Handlers) ValidateText(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[validateTextRequest](w, r)
	if !ok {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	fields := extract.Fields(req.Text)
	writeJSON(w, http.StatusOK, validateTextResponse{
		Valid:          len(fields) > 0,
		StructuredData: fields,
	})
}

type humanReviewRequest struct {
	ImageHash        string                    `json:"image_hash"`
	RecognitionModel string                    `json:"recognition_model"`
	ReviewModel      string                    `json:"review_model"`
	Corrections      workflow.HumanCorrections `json:"corrections"`
}

// HumanReview merges human corrections into a cached workflow result and
// finalizes it.
func (h *Handlers) HumanReview(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[humanReviewRequest](w, r)
	if !ok {
		return
	}
	if req.ImageHash == "" {
		writeError(w, http.StatusBadRequest, "image_hash is required")
		return
	}

	key := cache.Key("workflow", req.ImageHash,
		modelLabel(req.RecognitionModel), modelLabel(req.ReviewModel))
	data, found, err := h.cache.Get(r.Context(), key)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "workflow result not found")
		return
	}

	var wf workflow.Result
	if err := json.Unmarshal(data, &wf); err != nil {
		writeInternalError(w, err)
		return
	}

	merged, err := h.workflow.HumanReview(r.Context(), &wf, req.Corrections)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, merged)
}

type availableModel struct {
	Name         string   `json:"name"`
	Provider     string   `json:"provider"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

type modelsResponse struct {
	Models             []availableModel `json:"models"`
	DefaultModel       string           `json:"default_model"`
	DefaultReviewModel string           `json:"default_review_model"`
}

// ListModels returns the models reachable with the current configuration.
// Hosted backends only appear when their API key is set.
func (h *Handlers) ListModels(w http.ResponseWriter, _ *http.Request) {
	cfg := h.cfg.Get()
	var models []availableModel

	for _, name := range cfg.Models.SupportedOllama {
		models = append(models, availableModel{
			Name:         name,
			Provider:     provider.BackendOllama,
			Description:  "Local Ollama model: " + name,
			Capabilities: []string{"image_recognition", "text_processing"},
		})
	}

	if cfg.Providers.GroqAPIKey != "" {
		models = append(models,
			availableModel{
				Name:         "llama-3-8b",
				Provider:     provider.BackendGroq,
				Description:  "Groq LLaMA 3 8B model",
				Capabilities: []string{"text_processing"},
			},
			availableModel{
				Name:         "llama-3-70b",
				Provider:     provider.BackendGroq,
				Description:  "Groq LLaMA 3 70B model",
				Capabilities: []string{"text_processing"},
			},
		)
	}

	if cfg.Providers.ClaudeAPIKey != "" {
		models = append(models,
			availableModel{
				Name:         "claude-3-haiku",
				Provider:     provider.BackendAnthropic,
				Description:  "Claude 3 Haiku model",
				Capabilities: []string{"text_processing"},
			},
			availableModel{
				Name:         "claude-3-sonnet",
				Provider:     provider.BackendAnthropic,
				Description:  "Claude 3 Sonnet model",
				Capabilities: []string{"text_processing"},
			},
		)
	}

	if cfg.Providers.OpenAIAPIKey != "" {
		models = append(models,
			availableModel{
				Name:         "gpt-4o",
				Provider:     provider.BackendOpenAI,
				Description:  "GPT-4o model",
				Capabilities: []string{"text_processing"},
			},
			availableModel{
				Name:         "gpt-3.5-turbo",
				Provider:     provider.BackendOpenAI,
				Description:  "GPT-3.5 Turbo model",
				Capabilities: []string{"text_processing"},
			},
		)
	}

	writeJSON(w, http.StatusOK, modelsResponse{
		Models:             models,
		DefaultModel:       cfg.Models.Default,
		DefaultReviewModel: cfg.Models.DefaultReview,
	})
}

type testModelRequest struct {
	ModelName string `json:"model_name"`
	Text      string `json:"text"`
}

// TestModel sends a free-form prompt through the backend a model resolves
// to, for connectivity checks.
func (h *Handlers) TestModel(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[testModelRequest](w, r)
	if !ok {
		return
	}
	if req.ModelName == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "model_name and text are required")
		return
	}

	backend := h.registry.Resolve(req.ModelName)
	reply, err := backend.Generate(r.Context(), provider.Request{
		Model:       req.ModelName,
		Prompt:      req.Text,
		Temperature: h.cfg.Get().Recognition.Temperature,
	})
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"backend":         backend.Name(),
		"text":            reply.Text,
		"confidence":      reply.Confidence,
		"structured_data": reply.StructuredData,
	})
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.cfg.Get().Logging.Service,
	})
}

// modelLabel is the cache key label for an unspecified model.
func modelLabel(model string) string {
	if model == "" {
		return "default"
	}
	return model
}
