package upstream

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/specialistvlad/gridworker/internal/data"
	"github.com/specialistvlad/gridworker/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Succeeds(t *testing.T) {
	// Arrange
	st := newTestState(t)
	h := NewHandler(st)
	control := &stubControl{id: "conn-1"}

	// Act
	returned, err := h.Register(context.Background(), wire.RegisterRequest{
		Version:       ProtocolVersion,
		SubworkerID:   42,
		SubworkerType: "py-worker",
	}, control)

	// Assert
	require.NoError(t, err)
	entry, ok := st.Subworkers().Get(42)
	require.True(t, ok)
	assert.Equal(t, "py-worker", entry.TypeName)
	assert.Same(t, control, entry.Control)
	assert.Equal(t, st.WorkDir().SubworkerDir(42), entry.WorkDir)
	assert.Same(t, entry, returned)

	own, ok := h.Entry()
	require.True(t, ok)
	assert.Same(t, entry, own)
}

func TestRegister_ProtocolMismatch(t *testing.T) {
	// Arrange
	st := newTestState(t)
	h := NewHandler(st)
	h.version = 7

	// Act
	entry, err := h.Register(context.Background(), wire.RegisterRequest{
		Version:       6,
		SubworkerID:   42,
		SubworkerType: "py-worker",
	}, &stubControl{id: "conn-1"})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocolMismatch)
	var mismatch *ProtocolMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 7, mismatch.Expected)
	assert.Equal(t, 6, mismatch.Got)
	assert.Equal(t, "invalid subworker protocol; expected = 7, got = 6", err.Error())
	assert.Nil(t, entry)

	assert.Equal(t, 0, st.Subworkers().Len())
	_, ok := h.Entry()
	assert.False(t, ok)
}

func TestRegister_TwiceOnSameConnection(t *testing.T) {
	st := newTestState(t)
	h := NewHandler(st)
	control := &stubControl{id: "conn-1"}
	req := wire.RegisterRequest{Version: ProtocolVersion, SubworkerID: 1, SubworkerType: "a"}
	mustRegister(t, h, req, control)

	req.SubworkerID = 2
	_, err := h.Register(context.Background(), req, control)

	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, []int{1}, st.Subworkers().IDs())
}

func TestRegister_DuplicateIDAcrossConnections(t *testing.T) {
	st := newTestState(t)
	req := wire.RegisterRequest{Version: ProtocolVersion, SubworkerID: 5, SubworkerType: "a"}
	first := &stubControl{id: "first"}
	mustRegister(t, NewHandler(st), req, first)

	second := NewHandler(st)
	_, err := second.Register(context.Background(), req, &stubControl{id: "second"})

	require.Error(t, err)
	entry, ok := st.Subworkers().Get(5)
	require.True(t, ok)
	assert.Same(t, first, entry.Control)
	_, registered := second.Entry()
	assert.False(t, registered)
}

func TestRegister_ConcurrentDistinctIDs(t *testing.T) {
	st := newTestState(t)
	const n = 32

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h := NewHandler(st)
			_, err := h.Register(context.Background(), wire.RegisterRequest{
				Version: ProtocolVersion, SubworkerID: id, SubworkerType: "w",
			}, &stubControl{id: "c"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, st.Subworkers().Len())
}

func TestConnectionLost_AbortPolicy(t *testing.T) {
	// Arrange
	st := newTestState(t)
	var aborted error
	h := NewHandler(st, WithAbort(func(err error) { aborted = err }))
	mustRegister(t, h, wire.RegisterRequest{
		Version: ProtocolVersion, SubworkerID: 3, SubworkerType: "py-worker",
	}, &stubControl{id: "conn"})

	// Act
	h.ConnectionLost(context.Background(), "transport close")

	// Assert
	require.Error(t, aborted)
	assert.ErrorIs(t, aborted, ErrConnectionLost)
	assert.Contains(t, aborted.Error(), "transport close")
}

func TestConnectionLost_DefaultAbortPanics(t *testing.T) {
	st := newTestState(t)
	h := NewHandler(st)
	mustRegister(t, h, wire.RegisterRequest{
		Version: ProtocolVersion, SubworkerID: 3, SubworkerType: "py-worker",
	}, &stubControl{id: "conn"})

	assert.Panics(t, func() { h.ConnectionLost(context.Background(), "gone") })
}

func TestConnectionLost_UnregisterPolicy(t *testing.T) {
	// Arrange
	st := newTestState(t)
	h := NewHandler(st,
		WithDisconnectPolicy(PolicyUnregister),
		WithAbort(func(err error) { t.Fatalf("abort must not be called: %v", err) }),
	)
	mustRegister(t, h, wire.RegisterRequest{
		Version: ProtocolVersion, SubworkerID: 3, SubworkerType: "py-worker",
	}, &stubControl{id: "conn"})

	// Act
	h.ConnectionLost(context.Background(), "transport close")

	// Assert
	assert.Equal(t, 0, st.Subworkers().Len())
	_, ok := h.Entry()
	assert.False(t, ok)
}

func TestConnectionLost_UnregisteredIsNoop(t *testing.T) {
	st := newTestState(t)
	h := NewHandler(st, WithAbort(func(err error) { t.Fatalf("abort must not be called: %v", err) }))

	h.ConnectionLost(context.Background(), "closed before register")

	assert.Equal(t, 0, st.Subworkers().Len())
}

func TestHandlerLocalize_RequiresRegistration(t *testing.T) {
	h := NewHandler(newTestState(t))

	_, err := h.Localize(context.Background(), wire.LocalData{Type: data.Blob, Storage: wire.MemoryStorage{Bytes: []byte{1}}})

	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestParseDisconnectPolicy(t *testing.T) {
	testCases := []struct {
		in      string
		want    DisconnectPolicy
		wantErr bool
	}{
		{in: "", want: PolicyAbort},
		{in: "abort", want: PolicyAbort},
		{in: " Unregister ", want: PolicyUnregister},
		{in: "ignore", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDisconnectPolicy(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRegister_CreatesSubworkerDir(t *testing.T) {
	st := newTestState(t)
	h := NewHandler(st)

	mustRegister(t, h, wire.RegisterRequest{
		Version: ProtocolVersion, SubworkerID: 9, SubworkerType: "w",
	}, &stubControl{id: "c"})

	info, err := os.Stat(st.WorkDir().SubworkerDir(9))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDeregister_IgnoresAbortPolicy(t *testing.T) {
	st := newTestState(t)
	h := NewHandler(st, WithAbort(func(err error) { t.Fatalf("abort must not be called: %v", err) }))
	mustRegister(t, h, wire.RegisterRequest{
		Version: ProtocolVersion, SubworkerID: 4, SubworkerType: "w",
	}, &stubControl{id: "c"})

	h.Deregister(context.Background())
	h.ConnectionLost(context.Background(), "server shutting down")

	assert.Equal(t, 0, st.Subworkers().Len())
}

func TestRegister_ReturnsEntryAfterConnectionLost(t *testing.T) {
	// Arrange
	st := newTestState(t)
	h := NewHandler(st, WithDisconnectPolicy(PolicyUnregister))

	// Act
	entry, err := h.Register(context.Background(), wire.RegisterRequest{
		Version: ProtocolVersion, SubworkerID: 6, SubworkerType: "w",
	}, &stubControl{id: "c"})
	h.ConnectionLost(context.Background(), "transport close")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, st.WorkDir().SubworkerDir(6), entry.WorkDir)
	_, ok := h.Entry()
	assert.False(t, ok)
}
