package bridge

import (
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

var (
	framePrefix = []byte("data: ")
	frameSuffix = []byte("\n\n")
)

// EncodeFrame renders msg as a single event frame: "data: <json>\n\n".
// Compact JSON never contains a raw newline, so a frame cannot be split
// by a line-oriented reader. Messages holding NaN or an infinity have no
// JSON form and fail with ErrEncodingFailure.
func EncodeFrame(msg *structpb.Struct) ([]byte, error) {
	if err := checkFinite(msg.GetFields()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodingFailure, err)
	}
	payload, err := json.Marshal(msg.AsMap())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodingFailure, err)
	}

	frame := make([]byte, 0, len(framePrefix)+len(payload)+len(frameSuffix))
	frame = append(frame, framePrefix...)
	frame = append(frame, payload...)
	frame = append(frame, frameSuffix...)
	return frame, nil
}

func checkFinite(fields map[string]*structpb.Value) error {
	for k, v := range fields {
		if err := checkValue(v); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	return nil
}

func checkValue(v *structpb.Value) error {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return fmt.Errorf("non-finite number %v", k.NumberValue)
		}
	case *structpb.Value_StructValue:
		return checkFinite(k.StructValue.GetFields())
	case *structpb.Value_ListValue:
		for i, item := range k.ListValue.GetValues() {
			if err := checkValue(item); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	}
	return nil
}
