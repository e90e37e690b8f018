package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/kiln/pkg/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Encoder serializes a unit into the binary form a Host accepts.
type Encoder func(u *unit.Unit) ([]byte, error)

// RunHostContract runs a suite of tests to verify that a Host implementation
// adheres to the defined interface contract.
func RunHostContract(t *testing.T, newHost func() Host, encode Encoder) {
	ctx := context.Background()

	entry := &unit.Unit{
		Name:    "contract/Entry",
		Methods: []unit.Method{{Name: "main", Params: []string{"kiln/lang/String"}, Flags: unit.FlagStatic}},
	}

	t.Run("Root Is Native", func(t *testing.T) {
		host := newHost()
		typ, err := host.Resolve(unit.Root)
		require.NoError(t, err)
		assert.Equal(t, unit.BinaryName(unit.Root), typ.Name())
		assert.Empty(t, typ.Super())

		info, ok := host.Describe(unit.BinaryName(unit.Root))
		require.True(t, ok)
		assert.False(t, info.Interface)
	})

	t.Run("Resolve Unknown", func(t *testing.T) {
		host := newHost()
		_, err := host.Resolve("contract/DoesNotExist")
		assert.True(t, errors.Is(err, ErrTypeNotFound), "expected ErrTypeNotFound, got %v", err)
	})

	t.Run("Define And Invoke", func(t *testing.T) {
		host := newHost()
		bin, err := encode(entry)
		require.NoError(t, err)

		typ, err := host.Define("root", "contract.Entry", bin)
		require.NoError(t, err)
		assert.Equal(t, "contract.Entry", typ.Name())
		assert.Equal(t, "root", typ.Domain())
		assert.Equal(t, unit.Root, typ.Super())

		assert.NoError(t, host.Invoke(ctx, typ, []string{"a"}))
	})

	t.Run("Define Twice In One Domain", func(t *testing.T) {
		host := newHost()
		bin, err := encode(entry)
		require.NoError(t, err)

		_, err = host.Define("root", "contract.Entry", bin)
		require.NoError(t, err)
		_, err = host.Define("root", "contract.Entry", bin)
		assert.Error(t, err, "a second definition under the same name must fail")

		_, err = host.Define("other", "contract.Entry", bin)
		assert.NoError(t, err, "the same name may be defined in another domain")
	})

	t.Run("Missing Resource", func(t *testing.T) {
		host := newHost()
		rc, ok := host.Resource("contract/missing.txt")
		assert.False(t, ok)
		assert.Nil(t, rc)
	})
}
