// Package convert maps timer values to and from protobuf well-known types.
package convert

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/tasktime/internal/timer"
)

// StatusToProto encodes s as a Struct with the JSON field names of timer.Status.
func StatusToProto(s timer.Status) (*structpb.Struct, error) {
	return toStruct(s)
}

// StatusFromProto decodes a Struct produced by StatusToProto.
func StatusFromProto(st *structpb.Struct) (timer.Status, error) {
	var s timer.Status
	if err := fromStruct(st, &s); err != nil {
		return timer.Status{}, fmt.Errorf("status: %w", err)
	}
	return s, nil
}

// EventToProto encodes e as a Struct.
func EventToProto(e timer.Event) (*structpb.Struct, error) {
	return toStruct(e)
}

// EventFromProto decodes a Struct produced by EventToProto.
func EventFromProto(st *structpb.Struct) (timer.Event, error) {
	var e timer.Event
	if err := fromStruct(st, &e); err != nil {
		return timer.Event{}, fmt.Errorf("event: %w", err)
	}
	return e, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct goes through encoding/json so int64 fields decode from Struct's doubles.
func fromStruct(st *structpb.Struct, v any) error {
	if st == nil {
		return errors.New("nil struct")
	}
	b, err := json.Marshal(st.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
