package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angriff36/manifest/internal/model"
)

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	def := &Definition{Entity: "Recipe", Command: "update"}
	require.NoError(t, reg.Register(def))

	got, err := reg.Resolve("Recipe", "update")
	require.NoError(t, err)
	require.Same(t, def, got)
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Definition{Entity: "Recipe", Command: "update"}))

	err := reg.Register(&Definition{Entity: "Recipe", Command: "update"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsEmptyNames(t *testing.T) {
	reg := NewRegistry()
	require.Error(t, reg.Register(&Definition{Entity: "", Command: "update"}))
	require.Error(t, reg.Register(&Definition{Entity: "Recipe", Command: ""}))
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("Recipe", "vanish")
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrUnknownCommand))
	require.Contains(t, err.Error(), "Recipe.vanish")
}

func TestRegistryMustRegisterPanics(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{Entity: "Recipe", Command: "update"})
	require.Panics(t, func() {
		reg.MustRegister(&Definition{Entity: "Recipe", Command: "update"})
	})
}

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{Entity: "Recipe", Command: "update"})
	reg.MustRegister(&Definition{Entity: "Menu", Command: "activate"})

	pairs := reg.Commands()
	require.Len(t, pairs, 2)
	require.Contains(t, pairs, struct{ Entity, Command string }{"Recipe", "update"})
	require.Contains(t, pairs, struct{ Entity, Command string }{"Menu", "activate"})
}
