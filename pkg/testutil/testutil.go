package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"go.uber.org/mock/gomock"

	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// RequireEqualProto asserts that the two passed protocol buffer
// messages are equal.
//
// Because maps in protocol buffers aren't serialized deterministically
// (and can be embedded into google.protobuf.Any values), this function
// falls back to doing a string comparison upon failure.
func RequireEqualProto(t *testing.T, want, got proto.Message) {
	t.Helper()
	if !proto.Equal(want, got) {
		wantStr := mustMarshalToString(t, want)
		gotStr := mustMarshalToString(t, got)
		if wantStr != gotStr {
			t.Fatalf("Not equal:\nWant:\n\n%s\n\nGot:\n\n%s", wantStr, gotStr)
		}
	}
}

// RequireEqualStatus asserts that two grpc Statuses are equal.
func RequireEqualStatus(t *testing.T, want, got error) {
	t.Helper()
	RequireEqualProto(t, status.Convert(want).Proto(), status.Convert(got).Proto())
}

type eqProtoMatcher struct {
	t     *testing.T
	proto proto.Message
}

// EqProto is a gomock matcher for proto equality.
func EqProto(t *testing.T, proto proto.Message) gomock.Matcher {
	return &eqProtoMatcher{
		t:     t,
		proto: proto,
	}
}

func (m *eqProtoMatcher) Matches(x any) bool {
	p, ok := x.(proto.Message)
	if !ok {
		return false
	}
	if proto.Equal(m.proto, p) {
		return true
	}
	return mustMarshalToString(m.t, m.proto) == mustMarshalToString(m.t, p)
}

func (m *eqProtoMatcher) String() string {
	return fmt.Sprintf("is equal to proto %v", m.proto)
}

func mustMarshalToString(t *testing.T, p proto.Message) string {
	t.Helper()
	json, err := protojson.MarshalOptions{Multiline: true}.Marshal(p)
	require.NoError(t, err, "Failed to marshal %v", p)
	return string(json)
}
