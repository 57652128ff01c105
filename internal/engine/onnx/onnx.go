// Package onnx runs ONNX models through ONNX Runtime on 2-D float32 inputs.
package onnx

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hejijunhao/autotag/internal/model"
)

// DefaultLibraryName is looked up next to the model when no library path is
// configured.
const DefaultLibraryName = "libonnxruntime.so"

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// Session wraps a DynamicAdvancedSession with a single named input and output.
type Session struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	inputDims  []int64
}

// Open loads the model at modelPath. Empty node names select the model's
// first input or output. libPath may be empty, in which case the runtime
// library is expected next to the model file.
func Open(modelPath, libPath, inputName, outputName string) (*Session, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), DefaultLibraryName)
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info %s: %w", modelPath, err)
	}
	in, err := resolve(inputs, inputName, "input")
	if err != nil {
		return nil, fmt.Errorf("onnx: %s: %w", modelPath, err)
	}
	out, err := resolve(outputs, outputName, "output")
	if err != nil {
		return nil, fmt.Errorf("onnx: %s: %w", modelPath, err)
	}
	if len(in.Dimensions) != 2 {
		return nil, fmt.Errorf("onnx: %s: expected 2-D input %q, got %v", modelPath, in.Name, in.Dimensions)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{in.Name},
		[]string{out.Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session for %s: %w", modelPath, err)
	}

	return &Session{
		session:    session,
		inputName:  in.Name,
		outputName: out.Name,
		inputDims:  append([]int64(nil), in.Dimensions...),
	}, nil
}

// resolve finds the tensor called name. Graph names exported from TensorFlow
// often carry a ":0" suffix, so that form is accepted too.
func resolve(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, fmt.Errorf("model has no %ss", kind)
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name || info.Name == name+":0" {
			return info, nil
		}
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return ort.InputOutputInfo{}, fmt.Errorf("no %s named %q (have %s)", kind, name, strings.Join(names, ", "))
}

// InputDims returns the declared input dimensions; -1 marks a dynamic axis.
func (s *Session) InputDims() []int64 {
	return s.inputDims
}

// Run feeds m as a [rows, cols] tensor and returns the output flattened to
// [batch, rest]. The input data is not modified.
func (s *Session) Run(m model.Matrix) (model.Matrix, error) {
	if m.Rows == 0 {
		return model.Matrix{}, errors.New("onnx: empty input")
	}
	in, err := ort.NewTensor(ort.NewShape(int64(m.Rows), int64(m.Cols)), m.Data)
	if err != nil {
		return model.Matrix{}, fmt.Errorf("onnx: failed to create %s tensor: %w", s.inputName, err)
	}
	defer in.Destroy()

	// A nil output is allocated by the runtime; its shape is only known after Run.
	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return model.Matrix{}, fmt.Errorf("onnx: inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return model.Matrix{}, fmt.Errorf("onnx: output %s is not a float32 tensor", s.outputName)
	}
	rows, cols, err := flatten(tensor.GetShape())
	if err != nil {
		return model.Matrix{}, fmt.Errorf("onnx: output %s: %w", s.outputName, err)
	}

	// Copy data out before the tensor is destroyed.
	src := tensor.GetData()
	data := make([]float32, len(src))
	copy(data, src)
	return model.NewMatrix(rows, cols, data)
}

// flatten collapses every axis after the first into one.
func flatten(shape ort.Shape) (int, int, error) {
	if len(shape) == 0 {
		return 0, 0, errors.New("scalar output")
	}
	cols := int64(1)
	for _, d := range shape[1:] {
		if d < 0 {
			return 0, 0, fmt.Errorf("unresolved dimension in %v", shape)
		}
		cols *= d
	}
	return int(shape[0]), int(cols), nil
}

// Close releases the session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	return s.session.Destroy()
}
