package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDialFailsOnUnresolvableHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Dial(ctx, "this-host-does-not-exist.invalid")
	require.Error(t, err)
}

func TestCloseIsIdempotentAndRecordsReason(t *testing.T) {
	tr := &Transport{closed: make(chan struct{})}
	reason := context.Canceled

	tr.Close(reason)
	tr.Close(context.DeadlineExceeded) // second call must be a no-op

	require.ErrorIs(t, tr.Err(), reason)
	select {
	case <-tr.CloseNotify():
	default:
		t.Fatal("expected CloseNotify channel to be closed")
	}
}

func TestWriteAfterCloseWithNilConnErrors(t *testing.T) {
	tr := &Transport{closed: make(chan struct{}), host: "example.invalid"}
	tr.Close(nil)
	err := tr.Write([]byte("x"))
	require.Error(t, err)
}
