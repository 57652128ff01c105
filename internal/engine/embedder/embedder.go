package embedder

import (
	"fmt"

	"github.com/hejijunhao/autotag/internal/engine/onnx"
	"github.com/hejijunhao/autotag/internal/model"
)

// Embedder produces a feature matrix (one row per audio segment) from mono
// samples.
type Embedder interface {
	Embed(samples []float32) (model.Matrix, error)
	Close() error
}

// ONNXEmbedder frames raw audio into fixed-size windows and runs them through
// an ONNX feature-extraction model in a single batch.
type ONNXEmbedder struct {
	session  *onnx.Session
	frameLen int
	hop      int
}

// New loads the embedding model. The model must take a [batch, frame] input
// with a fixed frame length; consecutive frames overlap by half.
func New(modelPath, libPath, inputNode, outputNode string) (*ONNXEmbedder, error) {
	sess, err := onnx.Open(modelPath, libPath, inputNode, outputNode)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	frameLen := sess.InputDims()[1]
	if frameLen <= 0 {
		sess.Close()
		return nil, fmt.Errorf("embedder: model input has dynamic frame length %v", sess.InputDims())
	}

	hop := int(frameLen) / 2
	if hop == 0 {
		hop = 1
	}
	return &ONNXEmbedder{session: sess, frameLen: int(frameLen), hop: hop}, nil
}

// FrameLen returns the number of samples per model input frame.
func (e *ONNXEmbedder) FrameLen() int {
	return e.frameLen
}

// Embed produces one embedding row per frame.
func (e *ONNXEmbedder) Embed(samples []float32) (model.Matrix, error) {
	if len(samples) == 0 {
		return model.Matrix{}, fmt.Errorf("embedder: no samples")
	}
	data, n := frames(samples, e.frameLen, e.hop)
	batch, err := model.NewMatrix(n, e.frameLen, data)
	if err != nil {
		return model.Matrix{}, fmt.Errorf("embedder: %w", err)
	}

	out, err := e.session.Run(batch)
	if err != nil {
		return model.Matrix{}, fmt.Errorf("embedder: %w", err)
	}
	return out, nil
}

// Close releases ONNX Runtime resources.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		return e.session.Close()
	}
	return nil
}
