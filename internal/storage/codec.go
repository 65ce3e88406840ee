package storage

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"
)

// Codec converts items to and from the bytes a Backend stores.
type Codec[T any] interface {
	Marshal(item T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// JSONCodec encodes items with encoding/json.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Marshal(item T) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return data, nil
}

func (JSONCodec[T]) Unmarshal(data []byte) (T, error) {
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return item, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, nil
}

// YAMLCodec encodes items with gopkg.in/yaml.v3. Payloads stay readable
// when inspecting the database by hand.
type YAMLCodec[T any] struct{}

func (YAMLCodec[T]) Marshal(item T) ([]byte, error) {
	data, err := yaml.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return data, nil
}

func (YAMLCodec[T]) Unmarshal(data []byte) (T, error) {
	var item T
	if err := yaml.Unmarshal(data, &item); err != nil {
		return item, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, nil
}

// ProtoCodec encodes protobuf messages in wire format. New must return an
// empty message to decode into.
type ProtoCodec[T proto.Message] struct {
	New func() T
}

func (c ProtoCodec[T]) Marshal(item T) ([]byte, error) {
	data, err := proto.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return data, nil
}

func (c ProtoCodec[T]) Unmarshal(data []byte) (T, error) {
	item := c.New()
	if err := proto.Unmarshal(data, item); err != nil {
		return item, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, nil
}
