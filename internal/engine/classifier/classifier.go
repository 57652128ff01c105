package classifier

import (
	"fmt"

	"github.com/hejijunhao/autotag/internal/engine/onnx"
	"github.com/hejijunhao/autotag/internal/model"
)

// Scorer maps a feature matrix to a segment x output score matrix.
type Scorer interface {
	Score(features model.Matrix) (model.Matrix, error)
	Close() error
}

// ONNXScorer runs a classification or regression head over embeddings.
type ONNXScorer struct {
	session *onnx.Session
}

// New loads a scoring model reading inputNode and producing outputNode.
func New(modelPath, libPath, inputNode, outputNode string) (*ONNXScorer, error) {
	sess, err := onnx.Open(modelPath, libPath, inputNode, outputNode)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	return &ONNXScorer{session: sess}, nil
}

// Score returns one row of scores per feature row. features is only read.
func (s *ONNXScorer) Score(features model.Matrix) (model.Matrix, error) {
	if dims := s.session.InputDims(); dims[1] > 0 && int(dims[1]) != features.Cols {
		return model.Matrix{}, fmt.Errorf("classifier: model expects %d features per segment, got %d", dims[1], features.Cols)
	}
	out, err := s.session.Run(features)
	if err != nil {
		return model.Matrix{}, fmt.Errorf("classifier: %w", err)
	}
	if out.Rows != features.Rows {
		return model.Matrix{}, fmt.Errorf("classifier: %d score rows for %d segments", out.Rows, features.Rows)
	}
	return out, nil
}

// Close releases ONNX Runtime resources.
func (s *ONNXScorer) Close() error {
	if s.session != nil {
		return s.session.Close()
	}
	return nil
}
