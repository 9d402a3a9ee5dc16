package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"tweetgen-go/textgen"
)

// Device selects where the ONNX session runs.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ONNXOptions configures an ONNXRunner.
type ONNXOptions struct {
	ModelPath   string
	LibraryPath string // onnxruntime shared library; empty uses the system default
	Device      Device
	Threads     int

	// VocabSize and ContextLength are used when the graph does not fix them
	VocabSize     int
	ContextLength int
}

var (
	envMu    sync.Mutex
	envUsers int
)

// acquireEnvironment initializes the process-wide ONNX Runtime environment
// on first use.
func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envUsers == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	envUsers++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	envUsers--
	if envUsers == 0 && ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}

// ONNXRunner implements textgen.ModelRunner with ONNX Runtime. The session
// is created once; every step recomputes the whole sequence.
type ONNXRunner struct {
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	vocabSize   int
	contextLen  int
	device      Device
	logger      *zerolog.Logger
	closeOnce   sync.Once
	closeResult error
}

// NewONNXRunner loads the model at opts.ModelPath.
func NewONNXRunner(opts ONNXOptions, logger *zerolog.Logger) (*ONNXRunner, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Device == "" {
		opts.Device = DeviceAuto
	}

	if err := acquireEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	r, err := newONNXRunner(opts, logger)
	if err != nil {
		releaseEnvironment()
		return nil, err
	}
	return r, nil
}

func newONNXRunner(opts ONNXOptions, logger *zerolog.Logger) (*ONNXRunner, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", opts.ModelPath, err)
	}

	inputNames, err := selectInputs(inputs)
	if err != nil {
		return nil, err
	}

	vocabSize := opts.VocabSize
	hasLogits := false
	for _, out := range outputs {
		if out.Name != "logits" {
			continue
		}
		hasLogits = true
		if dims := out.Dimensions; len(dims) == 3 && dims[2] > 0 {
			vocabSize = int(dims[2])
		}
	}
	if !hasLogits {
		return nil, errors.New("model has no \"logits\" output")
	}
	if vocabSize <= 0 {
		return nil, errors.New("vocab size is not fixed by the graph and was not configured")
	}

	session, device, err := createSession(opts, inputNames, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("model", opts.ModelPath).
		Str("device", string(device)).
		Strs("inputs", inputNames).
		Int("vocab", vocabSize).
		Msg("ONNX session ready")

	return &ONNXRunner{
		session:    session,
		inputNames: inputNames,
		vocabSize:  vocabSize,
		contextLen: opts.ContextLength,
		device:     device,
		logger:     logger,
	}, nil
}

// selectInputs keeps input_ids and, when the graph takes it, attention_mask
func selectInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	var hasIDs, hasMask bool
	for _, in := range inputs {
		switch in.Name {
		case "input_ids":
			hasIDs = true
		case "attention_mask":
			hasMask = true
		default:
			return nil, fmt.Errorf("unsupported model input %q (export without past key values)", in.Name)
		}
	}
	if !hasIDs {
		return nil, errors.New("model has no \"input_ids\" input")
	}
	if hasMask {
		return []string{"input_ids", "attention_mask"}, nil
	}
	return []string{"input_ids"}, nil
}

func createSession(opts ONNXOptions, inputNames []string, logger *zerolog.Logger) (*ort.DynamicAdvancedSession, Device, error) {
	if opts.Device != DeviceCPU {
		session, err := newSession(opts, inputNames, true)
		if err == nil {
			return session, DeviceCUDA, nil
		}
		if opts.Device == DeviceCUDA {
			return nil, "", fmt.Errorf("failed to create CUDA session: %w", err)
		}
		logger.Warn().Err(err).Msg("CUDA unavailable, falling back to CPU")
	}

	session, err := newSession(opts, inputNames, false)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}
	return session, DeviceCPU, nil
}

func newSession(opts ONNXOptions, inputNames []string, cuda bool) (*ort.DynamicAdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
			return nil, fmt.Errorf("failed to set threads: %w", err)
		}
	}

	if cuda {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to create CUDA options: %w", err)
		}
		defer cudaOptions.Destroy()

		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return nil, fmt.Errorf("failed to enable CUDA: %w", err)
		}
	}

	return ort.NewDynamicAdvancedSession(opts.ModelPath, inputNames, []string{"logits"}, options)
}

// Run recomputes the whole sequence and returns the last position's logits
func (r *ONNXRunner) Run(ctx context.Context, seq *textgen.Sequence) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqLen := len(seq.TokenIDs)
	if seqLen == 0 {
		return nil, fmt.Errorf("sequence %d has no tokens", seq.SeqID)
	}

	shape := ort.NewShape(1, int64(seqLen))
	ids := make([]int64, seqLen)
	for i, id := range seq.TokenIDs {
		ids[i] = int64(id)
	}

	inputIDs, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputIDs.Destroy()

	inputs := []ort.Value{inputIDs}
	if len(r.inputNames) == 2 {
		mask := make([]int64, seqLen)
		for i := range mask {
			mask[i] = 1
		}
		attentionMask, err := ort.NewTensor(shape, mask)
		if err != nil {
			return nil, fmt.Errorf("failed to create attention mask: %w", err)
		}
		defer attentionMask.Destroy()
		inputs = append(inputs, attentionMask)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(r.vocabSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := r.session.Run(inputs, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := output.GetData()
	last := make([]float32, r.vocabSize)
	copy(last, data[(seqLen-1)*r.vocabSize:seqLen*r.vocabSize])
	return last, nil
}

// Release is a no-op; the runner keeps no per-sequence state
func (r *ONNXRunner) Release(seq *textgen.Sequence) {}

// VocabSize returns the vocabulary size
func (r *ONNXRunner) VocabSize() int {
	return r.vocabSize
}

// ContextLength returns the configured context length
func (r *ONNXRunner) ContextLength() int {
	return r.contextLen
}

// Device returns the device the session runs on
func (r *ONNXRunner) Device() Device {
	return r.device
}

// Close destroys the session and, for the last runner, the environment
func (r *ONNXRunner) Close() error {
	r.closeOnce.Do(func() {
		r.closeResult = errors.Join(r.session.Destroy(), releaseEnvironment())
	})
	return r.closeResult
}
