package rpc

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridfed/hginventory/internal/inventorytest"
	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

func TestResponseStatuses(t *testing.T) {
	tests := []struct {
		name   string
		result types.Result[*types.Folder]
		status types.Status
	}{
		{"ok", types.OKResult(&types.Folder{Name: "root"}), types.StatusOK},
		{"not found", types.NotFoundResult[*types.Folder](), types.StatusNotFound},
		{"rejected", types.RejectedResult[*types.Folder](), types.StatusRejected},
		{"failed", types.FailedResult[*types.Folder](stderrors.New("disk full")), types.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := NewResponse(tt.result)
			require.NoError(t, err)

			got, err := DecodeResult[*types.Folder](resp)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			if tt.status == types.StatusOK {
				assert.Equal(t, "root", got.Value.Name)
			} else {
				assert.Nil(t, got.Value)
			}
		})
	}
}

func TestDecodeFailedCarriesRemoteError(t *testing.T) {
	resp := &Response{Status: "failed", Error: "database locked"}
	got, err := DecodeResult[bool](resp)
	require.NoError(t, err)
	assert.False(t, got.Value)
	assert.True(t, stderrors.Is(got.Err, errors.NewError(errors.ErrCodeRemoteStatus, "")))
	assert.Contains(t, got.Err.Error(), "database locked")
}

func TestDecodeMalformed(t *testing.T) {
	_, err := DecodeResult[int](&Response{Status: "maybe"})
	assert.True(t, stderrors.Is(err, errors.NewError(errors.ErrCodeDecodeFailed, "")))

	_, err = DecodeResult[int](&Response{Status: "ok", Value: []byte(`"seven"`)})
	assert.True(t, stderrors.Is(err, errors.NewError(errors.ErrCodeDecodeFailed, "")))
}

func TestDecodeEmptySliceIsPreserved(t *testing.T) {
	resp, err := NewResponse(types.OKResult([]*types.Item{}))
	require.NoError(t, err)
	got, err := DecodeResult[[]*types.Item](resp)
	require.NoError(t, err)
	assert.NotNil(t, got.Value)
	assert.Empty(t, got.Value)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	svc := inventorytest.NewMockService("local")
	user := uuid.New()
	root := svc.SeedRoot(user)

	resp, err := Dispatch(ctx, svc, VerbGetRootFolder, &Request{User: user})
	require.NoError(t, err)
	got, err := DecodeResult[*types.Folder](resp)
	require.NoError(t, err)
	assert.Equal(t, root.ID, got.Value.ID)
	assert.Equal(t, 1, svc.Calls("GetRootFolder"))

	_, err = Dispatch(ctx, svc, Verb("fly"), &Request{})
	assert.True(t, stderrors.Is(err, errors.NewError(errors.ErrCodeUnknownVerb, "")))
}
