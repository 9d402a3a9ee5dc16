package gpt2

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/schollz/progressbar/v3"
)

// TensorInfo describes a tensor in safetensors format
type TensorInfo struct {
	Dtype  string   `json:"dtype"`
	Shape  []int    `json:"shape"`
	Offset [2]int64 `json:"data_offsets"`
}

// maxHeaderSize guards against reading garbage as a header length
const maxHeaderSize = 100 << 20

// ReadSafetensors decodes every tensor in a safetensors file to float32.
// When progress is non-nil a bar is drawn on it while tensors are converted.
func ReadSafetensors(path string, progress io.Writer) (map[string]*Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseSafetensors(data, progress)
}

// ParseSafetensors decodes an in-memory safetensors blob.
func ParseSafetensors(data []byte, progress io.Writer) (map[string]*Tensor, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors data too short (%d bytes)", len(data))
	}

	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > maxHeaderSize || 8+headerSize > uint64(len(data)) {
		return nil, fmt.Errorf("invalid safetensors header size %d", headerSize)
	}
	headerBytes := data[8 : 8+headerSize]
	tensorData := data[8+headerSize:]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	names := make([]string, 0, len(raw))
	metadata := make(map[string]TensorInfo, len(raw))
	for name, msg := range raw {
		if name == "__metadata__" {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, fmt.Errorf("failed to parse tensor info for %s: %w", name, err)
		}
		metadata[name] = info
		names = append(names, name)
	}
	sort.Strings(names)

	var bar *progressbar.ProgressBar
	if progress != nil {
		bar = progressbar.NewOptions(len(names),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("Loading weights"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	tensors := make(map[string]*Tensor, len(names))
	for _, name := range names {
		t, err := decodeTensor(tensorData, metadata[name])
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		tensors[name] = t
		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		bar.Finish()
	}

	return tensors, nil
}

func decodeTensor(data []byte, info TensorInfo) (*Tensor, error) {
	n := numElements(info.Shape)

	var width int
	switch info.Dtype {
	case "F32":
		width = 4
	case "F16", "BF16":
		width = 2
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", info.Dtype)
	}

	start, end := info.Offset[0], info.Offset[1]
	if start < 0 || end < start || end > int64(len(data)) || end-start != int64(n*width) {
		return nil, fmt.Errorf("invalid data offsets [%d, %d] for %d x %s", start, end, n, info.Dtype)
	}
	raw := data[start:end]

	out := make([]float32, n)
	switch info.Dtype {
	case "F32":
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "F16":
		for i := range out {
			out[i] = float32FromFloat16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case "BF16":
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(raw[i*2:])) << 16)
		}
	}

	shape := make([]int, len(info.Shape))
	copy(shape, info.Shape)
	return &Tensor{Data: out, Shape: shape}, nil
}

func float32FromFloat16(bits uint16) float32 {
	sign := uint32(bits>>15) & 1
	exp := uint32(bits>>10) & 0x1F
	frac := uint32(bits & 0x3FF)

	switch {
	case exp == 0:
		if frac == 0 {
			return math.Float32frombits(sign << 31)
		}
		// subnormal
		exp = 127 - 14
		for frac&0x400 == 0 {
			frac <<= 1
			exp--
		}
		frac &= 0x3FF
	case exp == 0x1F:
		exp = 0xFF
	default:
		exp += 127 - 15
	}

	return math.Float32frombits(sign<<31 | exp<<23 | frac<<13)
}

// WriteSafetensors encodes tensors as an F32 safetensors file.
func WriteSafetensors(w io.Writer, tensors map[string]*Tensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]TensorInfo, len(names))
	var offset int64
	for _, name := range names {
		size := int64(len(tensors[name].Data) * 4)
		header[name] = TensorInfo{
			Dtype:  "F32",
			Shape:  tensors[name].Shape,
			Offset: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(headerBytes); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, name := range names {
		for _, v := range tensors[name].Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}

	return nil
}
