// Package schema resolves the protobuf message type that frame payloads decode into.
package schema

import (
	"os"

	"github.com/norasector/radiostream/pkg/stream"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	// Well-known types are always resolvable without a descriptor set.
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

// Resolve returns a factory for messageName. If descriptorSetPath is set the type is
// built dynamically from that FileDescriptorSet, otherwise it must be linked into the binary.
func Resolve(descriptorSetPath, messageName string) (stream.MessageFactory, error) {
	mt, err := resolveType(descriptorSetPath, protoreflect.FullName(messageName))
	if err != nil {
		return nil, err
	}
	return func() proto.Message {
		return mt.New().Interface()
	}, nil
}

func resolveType(descriptorSetPath string, name protoreflect.FullName) (protoreflect.MessageType, error) {
	if !name.IsValid() {
		return nil, errors.Errorf("invalid message name %q", name)
	}

	if descriptorSetPath == "" {
		mt, err := protoregistry.GlobalTypes.FindMessageByName(name)
		if err != nil {
			return nil, errors.Wrapf(err, "message type %s", name)
		}
		return mt, nil
	}

	files, err := LoadDescriptorSet(descriptorSetPath)
	if err != nil {
		return nil, err
	}
	desc, err := files.FindDescriptorByName(name)
	if err != nil {
		return nil, errors.Wrapf(err, "message type %s", name)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, errors.Errorf("%s is not a message", name)
	}
	return dynamicpb.NewMessageType(md), nil
}

// LoadDescriptorSet reads a binary FileDescriptorSet, as written by
// protoc --include_imports --descriptor_set_out.
func LoadDescriptorSet(path string) (*protoregistry.Files, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading descriptor set")
	}

	var fds descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(contents, &fds); err != nil {
		return nil, errors.Wrapf(err, "error unmarshaling descriptor set %s", path)
	}

	files, err := protodesc.NewFiles(&fds)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid descriptor set %s", path)
	}
	return files, nil
}
