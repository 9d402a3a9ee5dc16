package gpt2

import (
	"fmt"
	"math"
)

// Tensor represents a multi-dimensional array in row-major order
type Tensor struct {
	Data  []float32
	Shape []int
}

// NewTensor creates a new tensor with given shape
func NewTensor(shape ...int) *Tensor {
	return &Tensor{
		Data:  make([]float32, numElements(shape)),
		Shape: shape,
	}
}

func numElements(shape []int) int {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return size
}

// Size returns total number of elements
func (t *Tensor) Size() int {
	return numElements(t.Shape)
}

func (t *Tensor) checkShape(name string, shape ...int) error {
	if len(t.Shape) != len(shape) {
		return fmt.Errorf("%s: expected shape %v, got %v", name, shape, t.Shape)
	}
	for i := range shape {
		if t.Shape[i] != shape[i] {
			return fmt.Errorf("%s: expected shape %v, got %v", name, shape, t.Shape)
		}
	}
	return nil
}

// linear computes x @ w + b for rows of x. x is [rows, in], w is [in, out]
// (GPT-2 Conv1D layout) and b is [out].
func linear(x []float32, rows int, w, b *Tensor) []float32 {
	in, out := w.Shape[0], w.Shape[1]
	result := make([]float32, rows*out)

	for r := 0; r < rows; r++ {
		dst := result[r*out : (r+1)*out]
		if b != nil {
			copy(dst, b.Data)
		}
		src := x[r*in : (r+1)*in]
		for k, xv := range src {
			if xv == 0 {
				continue
			}
			row := w.Data[k*out : (k+1)*out]
			for j, wv := range row {
				dst[j] += xv * wv
			}
		}
	}

	return result
}

// layerNorm normalizes each row of x in place
func layerNorm(x []float32, rows int, weight, bias *Tensor, eps float32) {
	hidden := len(weight.Data)
	for r := 0; r < rows; r++ {
		row := x[r*hidden : (r+1)*hidden]

		mean := float32(0)
		for _, v := range row {
			mean += v
		}
		mean /= float32(hidden)

		variance := float32(0)
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= float32(hidden)

		std := float32(math.Sqrt(float64(variance + eps)))
		for j, v := range row {
			row[j] = (v-mean)/std*weight.Data[j] + bias.Data[j]
		}
	}
}

// gelu applies the tanh approximation used by GPT-2, in place
func gelu(x []float32) {
	const c = 0.7978845608028654 // sqrt(2/pi)
	for i, v := range x {
		inner := c * float64(v+0.044715*v*v*v)
		x[i] = 0.5 * v * (1 + float32(math.Tanh(inner)))
	}
}

// softmax normalizes x in place
func softmax(x []float32) {
	maxVal := x[0]
	for _, v := range x[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	sum := float32(0)
	for i, v := range x {
		e := float32(math.Exp(float64(v - maxVal)))
		x[i] = e
		sum += e
	}

	for i := range x {
		x[i] /= sum
	}
}
