package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/straja-ai/emotion/internal/config"
)

// ONNX runs a locally exported sequence-classification model. The model
// directory holds model.onnx, vocab.txt and the label names in config.json
// (id2label) or label_map.json.
type ONNX struct {
	model     string
	dir       string
	tokenizer *WordPiece
	labels    []string
	seqLen    int

	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

// ResolveModelDir maps a model identifier such as
// "savasy/bert-base-turkish-sentiment-cased" to its directory below modelsDir.
func ResolveModelDir(modelsDir, modelID string) (string, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return "", errors.New("model id is empty")
	}
	if slices.Contains(strings.Split(filepath.ToSlash(id), "/"), "..") {
		return "", fmt.Errorf("model id %q escapes models dir", modelID)
	}
	return filepath.Join(modelsDir, filepath.FromSlash(id)), nil
}

func NewONNX(cfg config.ONNXConfig, modelID string) (*ONNX, error) {
	dir, err := ResolveModelDir(cfg.ModelsDir, modelID)
	if err != nil {
		return nil, err
	}
	seqLen := cfg.SeqLen
	if seqLen <= 0 {
		seqLen = 128
	}

	modelPath := filepath.Join(dir, "model.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: model file missing at %s: %v", ErrUnavailable, modelPath, err)
	}

	labels, err := loadLabels(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: load labels: %v", ErrUnavailable, err)
	}

	lower := readLowerCase(filepath.Join(dir, "tokenizer_config.json"), !isCasedModel(modelID))
	tok, err := LoadWordPiece(filepath.Join(dir, "vocab.txt"), lower)
	if err != nil {
		return nil, fmt.Errorf("%w: load tokenizer: %v", ErrUnavailable, err)
	}

	if err := initRuntime(cfg.SharedLibraryPath, dir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m := &ONNX{
		model:     modelID,
		dir:       dir,
		tokenizer: tok,
		labels:    labels,
		seqLen:    seqLen,
	}
	if err := m.openSession(modelPath); err != nil {
		m.destroy()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	log.Info().
		Str("model", modelID).
		Str("dir", dir).
		Strs("labels", labels).
		Int("seq_len", seqLen).
		Msg("onnx classifier loaded")
	return m, nil
}

func (m *ONNX) openSession(modelPath string) error {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("inspect model: %w", err)
	}
	if len(outputs) == 0 {
		return errors.New("model declares no outputs")
	}

	shape := ort.NewShape(1, int64(m.seqLen))
	if m.inputIDs, err = ort.NewEmptyTensor[int64](shape); err != nil {
		return fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	if m.attentionMask, err = ort.NewEmptyTensor[int64](shape); err != nil {
		return fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	if m.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(m.labels)))); err != nil {
		return fmt.Errorf("allocate output tensor: %w", err)
	}

	inputNames := []string{"input_ids", "attention_mask"}
	inputValues := []ort.Value{m.inputIDs, m.attentionMask}
	for _, in := range inputs {
		if in.Name == "token_type_ids" {
			if m.tokenTypeIDs, err = ort.NewEmptyTensor[int64](shape); err != nil {
				return fmt.Errorf("allocate token_type_ids tensor: %w", err)
			}
			inputNames = append(inputNames, in.Name)
			inputValues = append(inputValues, m.tokenTypeIDs)
		}
	}

	m.session, err = ort.NewAdvancedSession(
		modelPath,
		inputNames,
		[]string{outputs[0].Name},
		inputValues,
		[]ort.Value{m.output},
		nil,
	)
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}
	return nil
}

func (m *ONNX) Model() string   { return m.model }
func (m *ONNX) Backend() string { return "onnx" }

func (m *ONNX) Classify(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	ids, attn := m.tokenizer.Encode(text, m.seqLen)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return Prediction{}, fmt.Errorf("%w: session closed", ErrUnavailable)
	}
	copy(m.inputIDs.GetData(), ids)
	copy(m.attentionMask.GetData(), attn)
	if m.tokenTypeIDs != nil {
		clear(m.tokenTypeIDs.GetData())
	}

	if err := m.session.Run(); err != nil {
		return Prediction{}, fmt.Errorf("onnx run: %w", err)
	}

	probs := softmax(m.output.GetData())
	best := argmax(probs)
	if best < 0 || best >= len(m.labels) {
		return Prediction{}, malformed("model produced %d logits for %d labels", len(probs), len(m.labels))
	}
	return Prediction{Label: m.labels[best], Score: probs[best]}, nil
}

func (m *ONNX) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroy()
	return nil
}

func (m *ONNX) destroy() {
	if m.session != nil {
		_ = m.session.Destroy()
		m.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{m.inputIDs, m.attentionMask, m.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if m.output != nil {
		_ = m.output.Destroy()
	}
	m.inputIDs, m.attentionMask, m.tokenTypeIDs, m.output = nil, nil, nil, nil
}

var runtimeOnce struct {
	sync.Mutex
	done bool
}

func initRuntime(libPath, modelDir string) error {
	runtimeOnce.Lock()
	defer runtimeOnce.Unlock()
	if runtimeOnce.done || ort.IsInitialized() {
		runtimeOnce.done = true
		return nil
	}

	lib := resolveSharedLibraryPath(libPath, modelDir)
	if lib == "" {
		return errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(lib)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	runtimeOnce.done = true
	return nil
}

// resolveSharedLibraryPath prefers the configured path, then probes common
// install locations.
func resolveSharedLibraryPath(configured, modelDir string) string {
	if p := strings.TrimSpace(configured); p != "" {
		return p
	}

	names := []string{
		"libonnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// loadLabels reads id2label from config.json, falling back to label_map.json
// (either a JSON array or an index-keyed object).
func loadLabels(dir string) ([]string, error) {
	if data, err := os.ReadFile(filepath.Join(dir, "config.json")); err == nil {
		var cfg struct {
			ID2Label map[string]string `json:"id2label"`
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.json: %w", err)
		}
		if len(cfg.ID2Label) > 0 {
			return indexedLabels(cfg.ID2Label)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "label_map.json"))
	if err != nil {
		return nil, fmt.Errorf("no id2label in config.json and no label_map.json: %w", err)
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("label_map.json: %w", err)
	}
	return indexedLabels(m)
}

func indexedLabels(m map[string]string) ([]string, error) {
	if len(m) == 0 {
		return nil, errors.New("label map is empty")
	}
	out := make([]string, len(m))
	for k, v := range m {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, err)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

func isCasedModel(modelID string) bool {
	id := strings.ToLower(modelID)
	return strings.Contains(id, "cased") && !strings.Contains(id, "uncased")
}

func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := float64(logits[0])
	for _, l := range logits[1:] {
		maxLogit = math.Max(maxLogit, float64(l))
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(xs []float64) int {
	best := -1
	for i, x := range xs {
		if best < 0 || x > xs[best] {
			best = i
		}
	}
	return best
}
